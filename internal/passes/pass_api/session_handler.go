package pass_api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	accounts "ms-passes/internal/accounts/service"
	"ms-passes/internal/auth"
	"ms-passes/internal/models"
	"ms-passes/internal/utils"
)

type LoginRequest struct {
	Username string `json:"username" form:"username" validate:"required"`
	Password string `json:"password" form:"password" validate:"required"`
}

type LoginResponse struct {
	Token     string      `json:"token"`
	Username  string      `json:"username"`
	Role      models.Role `json:"role"`
	Redirect  string      `json:"redirect"`
	ExpiresAt time.Time   `json:"expires_at"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.UserService.Authenticate(r.Context(), req.Username, req.Password)
	if errors.Is(err, accounts.ErrInvalidCredentials) {
		utils.WriteError(w, r, http.StatusUnauthorized, "Invalid credentials", err.Error())
		return
	}
	if err != nil {
		h.Logger.Error("AUTH", fmt.Sprintf("Login failed: %v", err))
		utils.WriteError(w, r, http.StatusInternalServerError, "Login failed", err.Error())
		return
	}

	token, principal, err := h.Auth.Tokens.Issue(user)
	if err != nil {
		h.Logger.Error("AUTH", fmt.Sprintf("Failed to issue session: %v", err))
		utils.WriteError(w, r, http.StatusInternalServerError, "Login failed", err.Error())
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.Auth.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  principal.ExpiresAt,
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	h.Logger.Info("AUTH", fmt.Sprintf("%s logged in as %s", user.Username, user.Role))
	utils.WriteSuccess(w, r, http.StatusOK, "Logged in", LoginResponse{
		Token:     token,
		Username:  user.Username,
		Role:      user.Role,
		Redirect:  user.Role.LandingPath(),
		ExpiresAt: principal.ExpiresAt,
	})
}

// Logout revokes the current session, if any, and clears the cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if p, err := h.Auth.Authenticate(r); err == nil {
		if err := h.Auth.Revocations.Revoke(r.Context(), p.TokenID, p.ExpiresAt); err != nil {
			h.Logger.Error("AUTH", fmt.Sprintf("Failed to revoke session of %s: %v", p.Username, err))
			utils.WriteError(w, r, http.StatusInternalServerError, "Logout failed", err.Error())
			return
		}
		h.Logger.Info("AUTH", fmt.Sprintf("%s logged out", p.Username))
	} else if !errors.Is(err, auth.ErrMissingToken) {
		h.Logger.Debug("AUTH", fmt.Sprintf("Logout without a valid session: %v", err))
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.Auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	utils.WriteSuccess(w, r, http.StatusOK, "Logged out", map[string]string{"redirect": "/login"})
}
