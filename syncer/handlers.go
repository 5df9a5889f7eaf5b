package syncer

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"jira-capacity-sync/auth"
	"jira-capacity-sync/database"
	"jira-capacity-sync/jira"
	"jira-capacity-sync/utils"
)

type Handler struct {
	service   *Service
	wsManager *WebSocketManager
}

// NewHandler creates a new sync handler
func NewHandler(service *Service, wsManager *WebSocketManager) *Handler {
	return &Handler{
		service:   service,
		wsManager: wsManager,
	}
}

// RegisterRoutes registers sync routes
func (h *Handler) RegisterRoutes(router *mux.Router, authService *auth.Service) {
	routes := router.PathPrefix("/api/connections/{id}/sync").Subrouter()
	routes.Use(utils.CORSMiddleware)
	routes.Use(authService.Middleware)

	routes.HandleFunc("/preview", h.Preview).Methods("POST", "OPTIONS")
	routes.HandleFunc("/apply", h.Apply).Methods("POST", "OPTIONS")
	routes.HandleFunc("", h.SyncNow).Methods("POST", "OPTIONS")
	routes.HandleFunc("/history", h.History).Methods("GET", "OPTIONS")

	router.HandleFunc("/api/ws", h.WebSocket)
}

// Preview computes and caches a diff without writing.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.RequireAuth(w, r)
	if !ok {
		return
	}

	preview, err := h.service.Preview(r.Context(), user.UserID, mux.Vars(r)["id"])
	if err != nil {
		h.sendSyncError(w, err)
		return
	}

	utils.SendSuccess(w, preview, "Sync preview computed")
}

type applyRequest struct {
	PreviewID string `json:"preview_id"`
}

// Apply runs the confirmed write phase of a previewed sync.
func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.RequireAuth(w, r)
	if !ok {
		return
	}

	var req applyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PreviewID == "" {
		utils.SendBadRequest(w, "preview_id is required")
		return
	}

	result, err := h.service.Apply(r.Context(), user.UserID, mux.Vars(r)["id"], req.PreviewID)
	if err != nil {
		if errors.Is(err, ErrPreviewExpired) {
			utils.SendError(w, http.StatusGone, "PREVIEW_EXPIRED", "Sync preview expired, request a new one", "")
			return
		}
		h.sendSyncError(w, err)
		return
	}

	utils.SendSuccess(w, result, "Sync applied successfully")
}

// SyncNow previews and applies in one call.
func (h *Handler) SyncNow(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.RequireAuth(w, r)
	if !ok {
		return
	}

	result, err := h.service.Sync(r.Context(), user.UserID, mux.Vars(r)["id"])
	if err != nil {
		h.sendSyncError(w, err)
		return
	}

	utils.SendSuccess(w, result, "Sync completed successfully")
}

// History returns the connection's recent sync outcomes.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.RequireAuth(w, r)
	if !ok {
		return
	}

	history, err := h.service.History(user.UserID, mux.Vars(r)["id"])
	if err != nil {
		utils.SendNotFound(w, "Connection not found")
		return
	}

	utils.SendSuccess(w, history, "Sync history retrieved")
}

// WebSocket upgrades the request for live sync notifications. The route is
// unauthenticated; when no claims are present the user id comes from the
// user_id query parameter instead.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	userID := 0
	if claims, ok := auth.GetUserFromContext(r); ok {
		userID = claims.UserID
	}
	h.wsManager.HandleWebSocket(w, r, userID)
}

// sendSyncError maps the fetch error taxonomy onto HTTP responses.
func (h *Handler) sendSyncError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, jira.ErrNoTypesEnabled):
		utils.SendBadRequest(w, err.Error())
	case errors.Is(err, jira.ErrInvalidCredentials):
		utils.SendError(w, http.StatusBadGateway, "TRACKER_AUTH_FAILED", "Tracker rejected the configured credentials", err.Error())
	case errors.Is(err, jira.ErrForbidden):
		utils.SendError(w, http.StatusBadGateway, "TRACKER_FORBIDDEN", "Tracker denied access to the project", err.Error())
	case errors.Is(err, jira.ErrNotFound):
		utils.SendError(w, http.StatusBadGateway, "TRACKER_NOT_FOUND", "Tracker project or endpoint not found", err.Error())
	case errors.Is(err, database.ErrAccessDenied):
		utils.SendForbidden(w, "Access denied")
	default:
		utils.SendInternalError(w, err.Error())
	}
}
