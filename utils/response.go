package utils

import (
	"encoding/json"
	"net/http"
	"time"
)

// APIResponse represents a standardized API response
type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Error     *ErrorInfo  `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ErrorInfo represents error information
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// SendJSON sends a JSON response with the given status code
func SendJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// SendSuccess sends a successful response
func SendSuccess(w http.ResponseWriter, data interface{}, message string) {
	response := APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	}
	SendJSON(w, http.StatusOK, response)
}

// SendCreated sends a created response (201)
func SendCreated(w http.ResponseWriter, data interface{}, message string) {
	response := APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	}
	SendJSON(w, http.StatusCreated, response)
}

// SendError sends an error response
func SendError(w http.ResponseWriter, statusCode int, code, message, details string) {
	response := APIResponse{
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
			Details: details,
		},
		Timestamp: time.Now(),
	}
	SendJSON(w, statusCode, response)
}

// SendBadRequest sends a bad request error (400)
func SendBadRequest(w http.ResponseWriter, message string) {
	SendError(w, http.StatusBadRequest, "BAD_REQUEST", message, "")
}

// SendUnauthorized sends an unauthorized error (401)
func SendUnauthorized(w http.ResponseWriter, message string) {
	SendError(w, http.StatusUnauthorized, "UNAUTHORIZED", message, "")
}

// SendForbidden sends a forbidden error (403)
func SendForbidden(w http.ResponseWriter, message string) {
	SendError(w, http.StatusForbidden, "FORBIDDEN", message, "")
}

// SendNotFound sends a not found error (404)
func SendNotFound(w http.ResponseWriter, message string) {
	SendError(w, http.StatusNotFound, "NOT_FOUND", message, "")
}

// SendConflict sends a conflict error (409)
func SendConflict(w http.ResponseWriter, message string) {
	SendError(w, http.StatusConflict, "CONFLICT", message, "")
}

// SendInternalError sends an internal server error (500)
func SendInternalError(w http.ResponseWriter, message string) {
	SendError(w, http.StatusInternalServerError, "INTERNAL_ERROR", message, "")
}

// SendValidationError sends a validation error with details
func SendValidationError(w http.ResponseWriter, details string) {
	SendError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Request validation failed", details)
}

// CORSMiddleware adds CORS headers
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
