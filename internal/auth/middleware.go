package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"ms-passes/internal/logger"
	"ms-passes/internal/models"
	"ms-passes/internal/utils"
)

// UserChecker confirms that the user a token was issued to still exists.
type UserChecker interface {
	UserExists(ctx context.Context, id int64) (bool, error)
}

// Authenticator resolves the session token of a request into a Principal.
type Authenticator struct {
	Tokens      *TokenIssuer
	Revocations RevocationStore
	// Users is optional; when set, tokens of deleted users stop working at once.
	Users       UserChecker
	CookieName  string
	Logger      *logger.Logger
}

func NewAuthenticator(tokens *TokenIssuer, revocations RevocationStore, cookieName string, log *logger.Logger) *Authenticator {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Authenticator{Tokens: tokens, Revocations: revocations, CookieName: cookieName, Logger: log}
}

// Authenticate returns the principal of the request or one of ErrMissingToken,
// ErrInvalidToken, ErrRevokedToken and ErrUnknownUser.
func (a *Authenticator) Authenticate(r *http.Request) (Principal, error) {
	raw, err := ExtractTokenFromRequest(r, a.CookieName)
	if err != nil {
		return Principal{}, err
	}

	p, err := a.Tokens.Parse(raw)
	if err != nil {
		return Principal{}, err
	}

	revoked, err := a.Revocations.IsRevoked(r.Context(), p.TokenID)
	if err != nil {
		return Principal{}, err
	}
	if revoked {
		return Principal{}, ErrRevokedToken
	}

	if a.Users != nil {
		exists, err := a.Users.UserExists(r.Context(), p.UserID)
		if err != nil {
			return Principal{}, err
		}
		if !exists {
			return Principal{}, ErrUnknownUser
		}
	}
	return p, nil
}

// Middleware rejects unauthenticated requests with 401 and stores the principal in the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := a.Authenticate(r)
		if err != nil {
			status := http.StatusUnauthorized
			if !isSessionError(err) {
				a.Logger.Error("AUTH", fmt.Sprintf("Session check failed: %v", err))
				status = http.StatusInternalServerError
			} else {
				a.Logger.LogSecurity("UNAUTHENTICATED", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
			}
			utils.WriteError(w, r, status, "Authentication required", err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

func isSessionError(err error) bool {
	return errors.Is(err, ErrMissingToken) || errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrRevokedToken) || errors.Is(err, ErrUnknownUser)
}

// RequireRole lets only principals with one of the roles through; others get 403.
// It must run after Middleware.
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok {
				utils.WriteError(w, r, http.StatusUnauthorized, "Authentication required", ErrMissingToken.Error())
				return
			}
			if !slices.Contains(roles, p.Role) {
				utils.WriteError(w, r, http.StatusForbidden, "Forbidden", fmt.Sprintf("role %s may not access %s", p.Role, r.URL.Path))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
