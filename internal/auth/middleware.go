package auth

import (
	"context"
	"net/http"

	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
	"ms-storefront/internal/utils"
)

type contextKey string

const adminKey contextKey = "admin"

type SessionValidator interface {
	Validate(ctx context.Context, token string) (*models.AdminAccount, error)
}

// RequireSession rejects requests without a live admin session and stores the account in the context.
func RequireSession(validator SessionValidator, cookieName string, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := ExtractSessionToken(r, cookieName)
			if err != nil {
				utils.WriteError(w, http.StatusUnauthorized, "Unauthorized", err.Error())
				return
			}

			account, err := validator.Validate(r.Context(), token)
			if err != nil {
				log.Debug("AUTH", "Rejected request with invalid or expired session: "+r.URL.Path)
				utils.WriteError(w, http.StatusUnauthorized, "Unauthorized", "invalid or expired session")
				return
			}

			ctx := context.WithValue(r.Context(), adminKey, account)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminFromContext returns the authenticated account, or nil outside RequireSession.
func AdminFromContext(ctx context.Context) *models.AdminAccount {
	if account, ok := ctx.Value(adminKey).(*models.AdminAccount); ok {
		return account
	}
	return nil
}
