package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"ms-storefront/internal/admin"
	"ms-storefront/internal/auth"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
	"ms-storefront/internal/utils"
)

type SessionService interface {
	Login(ctx context.Context, username, password string) (*models.LoginResult, error)
	Validate(ctx context.Context, token string) (*models.AdminAccount, error)
	Logout(ctx context.Context, token string) error
}

type Handler struct {
	Service      SessionService
	Logger       *logger.Logger
	CookieName   string
	CookieSecure bool
}

type loginResponse struct {
	Success bool                `json:"success"`
	User    models.AdminSummary `json:"user"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", "Username and password required")
		return
	}

	result, err := h.Service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, admin.ErrMissingCredentials):
			utils.WriteError(w, http.StatusBadRequest, "Login failed", "Username and password required")
		case errors.Is(err, admin.ErrInvalidCredentials):
			utils.WriteError(w, http.StatusUnauthorized, "Login failed", "Invalid credentials")
		case errors.Is(err, admin.ErrTooManyAttempts):
			utils.WriteError(w, http.StatusTooManyRequests, "Login failed", "Too many login attempts")
		default:
			h.Logger.Error("API", "Login failed: "+err.Error())
			utils.WriteError(w, http.StatusInternalServerError, "Login failed", "Login failed")
		}
		return
	}

	maxAge := int(time.Until(result.ExpiresAt).Round(time.Second).Seconds())
	http.SetCookie(w, auth.SessionCookie(h.CookieName, result.Token, maxAge, h.CookieSecure))

	h.Logger.Info("API", "Admin logged in: "+result.User.Username)
	utils.WriteJSON(w, http.StatusOK, loginResponse{Success: true, User: result.User})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if token, err := auth.ExtractSessionToken(r, h.CookieName); err == nil {
		if err := h.Service.Logout(r.Context(), token); err != nil {
			h.Logger.Error("API", "Logout failed: "+err.Error())
			utils.WriteError(w, http.StatusInternalServerError, "Logout failed", "Logout failed")
			return
		}
	}

	http.SetCookie(w, auth.ClearedSessionCookie(h.CookieName, h.CookieSecure))
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Logged out", nil))
}

// Check reports the current session, answering 401 when there is none.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	token, err := auth.ExtractSessionToken(r, h.CookieName)
	if err != nil {
		utils.WriteError(w, http.StatusUnauthorized, "Not authenticated", "Unauthorized")
		return
	}

	account, err := h.Service.Validate(r.Context(), token)
	if err != nil {
		utils.WriteError(w, http.StatusUnauthorized, "Not authenticated", "Unauthorized")
		return
	}

	utils.WriteJSON(w, http.StatusOK, loginResponse{Success: true, User: account.Summary()})
}
