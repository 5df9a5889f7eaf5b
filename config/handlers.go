package config

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"jira-capacity-sync/auth"
	"jira-capacity-sync/utils"
)

type Handler struct {
	service *Service
}

// NewHandler creates a new configuration handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers connection configuration routes
func (h *Handler) RegisterRoutes(router *mux.Router, authService *auth.Service) {
	routes := router.PathPrefix("/api/connections").Subrouter()
	routes.Use(utils.CORSMiddleware)
	routes.Use(authService.Middleware)

	routes.HandleFunc("", h.List).Methods("GET", "OPTIONS")
	routes.HandleFunc("", h.Create).Methods("POST", "OPTIONS")
	routes.HandleFunc("/{id}", h.Get).Methods("GET", "OPTIONS")
	routes.HandleFunc("/{id}", h.Update).Methods("PUT", "OPTIONS")
	routes.HandleFunc("/{id}", h.Delete).Methods("DELETE", "OPTIONS")
	routes.HandleFunc("/{id}/test", h.Test).Methods("POST", "OPTIONS")
}

// List returns the user's connections.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.RequireAuth(w, r)
	if !ok {
		return
	}

	connections, err := h.service.GetConnections(user.UserID)
	if err != nil {
		utils.SendInternalError(w, "Failed to load connections")
		return
	}

	utils.SendSuccess(w, connections, "Connections retrieved successfully")
}

// Create adds a new connection.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.RequireAuth(w, r)
	if !ok {
		return
	}

	var req ConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendBadRequest(w, "Invalid request body")
		return
	}

	conn, err := h.service.CreateConnection(user.UserID, req)
	if err != nil {
		utils.SendValidationError(w, err.Error())
		return
	}

	utils.SendCreated(w, conn, "Connection created successfully")
}

// Get returns one connection.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.RequireAuth(w, r)
	if !ok {
		return
	}

	conn, err := h.service.GetConnection(user.UserID, mux.Vars(r)["id"])
	if err != nil {
		utils.SendNotFound(w, "Connection not found")
		return
	}

	utils.SendSuccess(w, conn, "Connection retrieved successfully")
}

// Update modifies an existing connection.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.RequireAuth(w, r)
	if !ok {
		return
	}

	var req ConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendBadRequest(w, "Invalid request body")
		return
	}

	conn, err := h.service.UpdateConnection(user.UserID, mux.Vars(r)["id"], req)
	if err != nil {
		if err == ErrAccessDenied {
			utils.SendForbidden(w, "Access denied")
			return
		}
		utils.SendValidationError(w, err.Error())
		return
	}

	utils.SendSuccess(w, conn, "Connection updated successfully")
}

// Delete removes a connection.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.RequireAuth(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteConnection(user.UserID, mux.Vars(r)["id"]); err != nil {
		utils.SendNotFound(w, "Connection not found")
		return
	}

	utils.SendSuccess(w, nil, "Connection deleted successfully")
}

// Test probes the tracker with the connection's credentials.
func (h *Handler) Test(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.RequireAuth(w, r)
	if !ok {
		return
	}

	result, err := h.service.TestConnection(r.Context(), user.UserID, mux.Vars(r)["id"])
	if err != nil {
		utils.SendError(w, http.StatusBadGateway, "CONNECTION_TEST_FAILED", "Connection test failed", err.Error())
		return
	}

	utils.SendSuccess(w, result, "Connection test succeeded")
}
