package pass_api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	accountsdb "ms-passes/internal/accounts/db"
	accounts "ms-passes/internal/accounts/service"
	"ms-passes/internal/auth"
	"ms-passes/internal/models"
	"ms-passes/internal/passes/layout"
	passes "ms-passes/internal/passes/service"
	"ms-passes/internal/utils"
)

type CreateEventRequest struct {
	Name        string  `json:"name" form:"name" validate:"required"`
	Date        string  `json:"date" form:"date" validate:"required"`
	Sponsors    string  `json:"sponsors" form:"sponsors"`
	TotalPasses int     `json:"total_passes" form:"total_passes" validate:"gte=0"`
	MaxUses     int     `json:"max_uses" form:"max_uses" validate:"gte=1"`
	QRWidth     float64 `json:"qr_width" form:"qr_width" validate:"gte=0"`
	QRHeight    float64 `json:"qr_height" form:"qr_height" validate:"gte=0"`
}

type CreateUserRequest struct {
	Username string `json:"username" form:"username" validate:"required"`
	Password string `json:"password" form:"password" validate:"required"`
	Role     string `json:"role" form:"role" validate:"required,oneof=admin worker client"`
}

type AdminDashboard struct {
	Events []models.Event `json:"events"`
	Users  []models.User  `json:"users"`
}

type EventDetails struct {
	Event     *models.Event `json:"event"`
	Passes    []models.Pass `json:"passes"`
	Remaining int           `json:"remaining"`
}

func (h *Handler) AdminDashboard(w http.ResponseWriter, r *http.Request) {
	events, err := h.PassService.ListEvents(r.Context())
	if err != nil {
		utils.WriteError(w, r, http.StatusInternalServerError, "Failed to list events", err.Error())
		return
	}
	users, err := h.UserService.ListUsers(r.Context())
	if err != nil {
		utils.WriteError(w, r, http.StatusInternalServerError, "Failed to list users", err.Error())
		return
	}
	utils.WriteSuccess(w, r, http.StatusOK, "Admin dashboard", AdminDashboard{Events: events, Users: users})
}

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req CreateEventRequest
	if !h.decode(w, r, &req) {
		return
	}

	event := &models.Event{
		Name:        req.Name,
		Date:        req.Date,
		Sponsors:    req.Sponsors,
		TotalPasses: req.TotalPasses,
		MaxUses:     req.MaxUses,
		QRWidth:     req.QRWidth,
		QRHeight:    req.QRHeight,
	}
	err := h.PassService.CreateEvent(r.Context(), event)
	if errors.Is(err, passes.ErrInvalidEvent) {
		utils.WriteError(w, r, http.StatusBadRequest, "Invalid event", err.Error())
		return
	}
	if err != nil {
		h.Logger.Error("PASS", fmt.Sprintf("Failed to create event: %v", err))
		utils.WriteError(w, r, http.StatusInternalServerError, "Failed to create event", err.Error())
		return
	}
	utils.WriteSuccess(w, r, http.StatusCreated, "Event created successfully", event)
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "eventId")
	if !ok {
		return
	}

	event, err := h.PassService.GetEvent(r.Context(), id)
	if err != nil {
		h.writeEventError(w, r, err)
		return
	}
	list, err := h.PassService.ListPasses(r.Context(), id)
	if err != nil {
		h.writeEventError(w, r, err)
		return
	}
	remaining, err := h.PassService.RemainingForEvent(r.Context(), id)
	if err != nil {
		h.writeEventError(w, r, err)
		return
	}
	utils.WriteSuccess(w, r, http.StatusOK, "Event", EventDetails{Event: event, Passes: list, Remaining: remaining})
}

func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "eventId")
	if !ok {
		return
	}
	if err := h.PassService.DeleteEvent(r.Context(), id); err != nil {
		h.writeEventError(w, r, err)
		return
	}
	utils.WriteSuccess(w, r, http.StatusOK, "Event deleted", nil)
}

func (h *Handler) GeneratePasses(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "eventId")
	if !ok {
		return
	}

	result, err := h.PassService.GeneratePasses(r.Context(), id)
	var genErr *passes.GenerationError
	if errors.As(err, &genErr) {
		resp := utils.ErrorResponse("Pass code space exhausted", err.Error())
		resp.Data = result
		utils.WriteJSON(w, r, http.StatusConflict, resp)
		return
	}
	if err != nil {
		h.writeEventError(w, r, err)
		return
	}
	utils.WriteSuccess(w, r, http.StatusOK, "Passes generated", result)
}

// DownloadSheet generates any missing passes and sends the printable sheet.
func (h *Handler) DownloadSheet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "eventId")
	if !ok {
		return
	}

	policy := h.DefaultLayout
	if name := r.URL.Query().Get("layout"); name != "" {
		var err error
		if policy, err = layout.ParsePolicy(name); err != nil {
			utils.WriteError(w, r, http.StatusBadRequest, "Invalid layout", err.Error())
			return
		}
	}

	var buf bytes.Buffer
	filename, err := h.PassService.ExportSheet(r.Context(), id, policy, &buf)
	if err != nil {
		var genErr *passes.GenerationError
		switch {
		case errors.As(err, &genErr):
			utils.WriteError(w, r, http.StatusConflict, "Pass code space exhausted", err.Error())
		case errors.Is(err, layout.ErrCellTooLarge):
			utils.WriteError(w, r, http.StatusUnprocessableEntity, "QR cell does not fit on the page", err.Error())
		default:
			h.writeEventError(w, r, err)
		}
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.Logger.Error("API", fmt.Sprintf("Failed to send sheet of event %d: %v", id, err))
	}
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.UserService.CreateUser(r.Context(), req.Username, req.Password, models.Role(req.Role))
	switch {
	case errors.Is(err, accountsdb.ErrDuplicateUsername):
		utils.WriteError(w, r, http.StatusConflict, "Username already exists", err.Error())
	case errors.Is(err, accounts.ErrInvalidUser):
		utils.WriteError(w, r, http.StatusBadRequest, "Invalid user", err.Error())
	case err != nil:
		h.Logger.Error("ACCOUNTS", fmt.Sprintf("Failed to create user: %v", err))
		utils.WriteError(w, r, http.StatusInternalServerError, "Failed to create user", err.Error())
	default:
		utils.WriteSuccess(w, r, http.StatusCreated, fmt.Sprintf("%s created successfully", user.Role), user)
	}
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "userId")
	if !ok {
		return
	}
	if p, _ := auth.PrincipalFrom(r.Context()); p.UserID == id {
		utils.WriteError(w, r, http.StatusConflict, "Cannot delete yourself", "log in as another admin to delete this account")
		return
	}

	err := h.UserService.DeleteUser(r.Context(), id)
	if errors.Is(err, accountsdb.ErrNotFound) {
		utils.WriteError(w, r, http.StatusNotFound, "User not found", err.Error())
		return
	}
	if err != nil {
		utils.WriteError(w, r, http.StatusInternalServerError, "Failed to delete user", err.Error())
		return
	}
	utils.WriteSuccess(w, r, http.StatusOK, "User deleted", nil)
}

func (h *Handler) writeEventError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, passes.ErrEventNotFound) {
		utils.WriteError(w, r, http.StatusNotFound, "Event not found", err.Error())
		return
	}
	h.Logger.Error("API", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
	utils.WriteError(w, r, http.StatusInternalServerError, "Internal error", err.Error())
}
