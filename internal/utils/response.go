package utils

import (
	"net/http"
	"time"

	"github.com/go-chi/render"
)

type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func SuccessResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	}
}

func ErrorResponse(message, error string) APIResponse {
	return APIResponse{
		Success:   false,
		Message:   message,
		Error:     error,
		Timestamp: time.Now(),
	}
}

// WriteJSON renders v as JSON with the given status code.
func WriteJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

func WriteSuccess(w http.ResponseWriter, r *http.Request, status int, message string, data interface{}) {
	WriteJSON(w, r, status, SuccessResponse(message, data))
}

func WriteError(w http.ResponseWriter, r *http.Request, status int, message, detail string) {
	WriteJSON(w, r, status, ErrorResponse(message, detail))
}
