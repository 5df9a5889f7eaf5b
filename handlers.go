package main

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"jira-capacity-sync/auth"
	configpkg "jira-capacity-sync/config"
	"jira-capacity-sync/database"
	"jira-capacity-sync/utils"
)

// planHandler serves the local planning model: synced work items, the
// project/phase/assignment collections, and the reference data the
// assignment suggester matches against.
type planHandler struct {
	store         database.Store
	configService *configpkg.Service
}

func newPlanHandler(store database.Store, configService *configpkg.Service) *planHandler {
	return &planHandler{store: store, configService: configService}
}

// RegisterRoutes registers planning routes
func (h *planHandler) RegisterRoutes(router *mux.Router, authService *auth.Service) {
	items := router.PathPrefix("/api/connections/{id}/items").Subrouter()
	items.Use(utils.CORSMiddleware)
	items.Use(authService.Middleware)
	items.HandleFunc("", h.ListItems).Methods("GET", "OPTIONS")
	items.HandleFunc("/{itemId}/mapping", h.UpdateMapping).Methods("PUT", "OPTIONS")

	plan := router.PathPrefix("/api/plan").Subrouter()
	plan.Use(utils.CORSMiddleware)
	plan.Use(authService.Middleware)
	plan.HandleFunc("/projects", h.ListProjects).Methods("GET", "OPTIONS")
	plan.HandleFunc("/phases", h.ListPhases).Methods("GET", "OPTIONS")
	plan.HandleFunc("/assignments", h.ListAssignments).Methods("GET", "OPTIONS")
	plan.HandleFunc("/members", h.ListMembers).Methods("GET", "OPTIONS")
	plan.HandleFunc("/members", h.ReplaceMembers).Methods("PUT", "OPTIONS")
	plan.HandleFunc("/quarters", h.ListQuarters).Methods("GET", "OPTIONS")
	plan.HandleFunc("/quarters", h.ReplaceQuarters).Methods("PUT", "OPTIONS")
}

// ListItems returns the stored work items of one connection.
func (h *planHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.RequireAuth(w, r)
	if !ok {
		return
	}

	conn, err := h.configService.GetConnection(user.UserID, mux.Vars(r)["id"])
	if err != nil {
		utils.SendNotFound(w, "Connection not found")
		return
	}

	items, err := h.store.GetWorkItems(conn.ID)
	if err != nil {
		utils.SendInternalError(w, "Failed to load work items")
		return
	}

	utils.SendSuccess(w, items, "Work items retrieved successfully")
}

type mappingRequest struct {
	MappedProjectID *string `json:"mapped_project_id"`
	MappedPhaseID   *string `json:"mapped_phase_id"`
	MappedMemberID  *string `json:"mapped_member_id"`
}

// UpdateMapping lets the user re-point an item's project, phase or member
// mapping by hand. Manual edits survive later syncs just like automatic
// ones, and an item cleared of every mapping becomes removable again.
func (h *planHandler) UpdateMapping(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.RequireAuth(w, r)
	if !ok {
		return
	}

	conn, err := h.configService.GetConnection(user.UserID, mux.Vars(r)["id"])
	if err != nil {
		utils.SendNotFound(w, "Connection not found")
		return
	}

	var req mappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendBadRequest(w, "Invalid request body")
		return
	}

	item, err := h.store.GetWorkItem(conn.ID, mux.Vars(r)["itemId"])
	if err != nil {
		utils.SendNotFound(w, "Work item not found")
		return
	}

	if req.MappedProjectID != nil {
		item.MappedProjectID = *req.MappedProjectID
	}
	if req.MappedPhaseID != nil {
		item.MappedPhaseID = *req.MappedPhaseID
	}
	if req.MappedMemberID != nil {
		item.MappedMemberID = *req.MappedMemberID
	}

	if err := h.store.SaveWorkItem(conn.ID, item); err != nil {
		utils.SendInternalError(w, "Failed to save work item")
		return
	}

	utils.SendSuccess(w, item, "Mapping updated successfully")
}

// ListProjects returns the user's projects, synced and manual alike.
func (h *planHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.RequireAuth(w, r)
	if !ok {
		return
	}

	projects, err := h.store.GetProjects(user.UserID)
	if err != nil {
		utils.SendInternalError(w, "Failed to load projects")
		return
	}

	utils.SendSuccess(w, projects, "Projects retrieved successfully")
}

// ListPhases returns all phases across the user's projects.
func (h *planHandler) ListPhases(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.RequireAuth(w, r)
	if !ok {
		return
	}

	phases, err := h.store.GetPhases(user.UserID)
	if err != nil {
		utils.SendInternalError(w, "Failed to load phases")
		return
	}

	utils.SendSuccess(w, phases, "Phases retrieved successfully")
}

// ListAssignments returns the user's assignments.
func (h *planHandler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.RequireAuth(w, r)
	if !ok {
		return
	}

	assignments, err := h.store.GetAssignments(user.UserID)
	if err != nil {
		utils.SendInternalError(w, "Failed to load assignments")
		return
	}

	utils.SendSuccess(w, assignments, "Assignments retrieved successfully")
}

// ListMembers returns the team member roster.
func (h *planHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.RequireAuth(w, r)
	if !ok {
		return
	}

	members, err := h.store.GetTeamMembers(user.UserID)
	if err != nil {
		utils.SendInternalError(w, "Failed to load team members")
		return
	}

	utils.SendSuccess(w, members, "Team members retrieved successfully")
}

// ReplaceMembers replaces the roster wholesale. Members without an id get
// one assigned.
func (h *planHandler) ReplaceMembers(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.RequireAuth(w, r)
	if !ok {
		return
	}

	var members []database.TeamMember
	if err := json.NewDecoder(r.Body).Decode(&members); err != nil {
		utils.SendBadRequest(w, "Invalid request body")
		return
	}
	for i := range members {
		if members[i].ID == "" {
			members[i].ID = uuid.New().String()
		}
		members[i].UserID = user.UserID
	}

	if err := h.store.ReplaceTeamMembers(user.UserID, members); err != nil {
		utils.SendInternalError(w, "Failed to save team members")
		return
	}

	utils.SendSuccess(w, members, "Team members saved successfully")
}

// ListQuarters returns the sprint calendar.
func (h *planHandler) ListQuarters(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.RequireAuth(w, r)
	if !ok {
		return
	}

	quarters, err := h.store.GetQuarters(user.UserID)
	if err != nil {
		utils.SendInternalError(w, "Failed to load quarters")
		return
	}

	utils.SendSuccess(w, quarters, "Quarters retrieved successfully")
}

// ReplaceQuarters replaces the sprint calendar wholesale.
func (h *planHandler) ReplaceQuarters(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.RequireAuth(w, r)
	if !ok {
		return
	}

	var quarters []database.Quarter
	if err := json.NewDecoder(r.Body).Decode(&quarters); err != nil {
		utils.SendBadRequest(w, "Invalid request body")
		return
	}
	for i := range quarters {
		if quarters[i].ID == "" {
			quarters[i].ID = uuid.New().String()
		}
		quarters[i].UserID = user.UserID
	}

	if err := h.store.ReplaceQuarters(user.UserID, quarters); err != nil {
		utils.SendInternalError(w, "Failed to save quarters")
		return
	}

	utils.SendSuccess(w, quarters, "Quarters saved successfully")
}
