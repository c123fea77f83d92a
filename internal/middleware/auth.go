// Package middleware содержит HTTP middleware маркетплейса.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/marketplace/internal/auth"
	"github.com/mmeshcher/marketplace/internal/model"
)

type contextKey string

const accountKey contextKey = "account"

const bearerPrefix = "bearer "

// Authorizer проверяет токен и возвращает актуальную учётную запись.
type Authorizer interface {
	Authorize(ctx context.Context, token string) (*model.Account, error)
}

// SessionGuard пропускает только запросы с действующим bearer-токеном.
type SessionGuard struct {
	authorizer Authorizer
	logger     *zap.Logger
}

// NewSessionGuard создаёт SessionGuard.
func NewSessionGuard(authorizer Authorizer, logger *zap.Logger) *SessionGuard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionGuard{authorizer: authorizer, logger: logger}
}

// Middleware проверяет заголовок Authorization и добавляет учётную запись в контекст запроса.
// Клиент не узнаёт причину отказа, она пишется в лог.
func (g *SessionGuard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			g.logger.Debug("request rejected", zap.String("reason", "missing_token"), zap.String("path", r.URL.Path))
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		account, err := g.authorizer.Authorize(r.Context(), token)
		if err != nil {
			var authErr *auth.Error
			if errors.As(err, &authErr) {
				g.logger.Debug("request rejected", zap.String("reason", string(authErr.Reason)), zap.String("path", r.URL.Path))
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			g.logger.Error("session check failed", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		ctx := context.WithValue(r.Context(), accountKey, account)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) <= len(bearerPrefix) || !strings.EqualFold(h[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(h[len(bearerPrefix):])
	return token, token != ""
}

// WithAccount кладёт учётную запись в контекст.
func WithAccount(ctx context.Context, a *model.Account) context.Context {
	return context.WithValue(ctx, accountKey, a)
}

// AccountFromContext извлекает учётную запись из контекста запроса.
func AccountFromContext(ctx context.Context) (*model.Account, bool) {
	a, ok := ctx.Value(accountKey).(*model.Account)
	return a, ok && a != nil
}

// RequireRole пропускает только учётные записи с одной из ролей roles.
func RequireRole(roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			a, ok := AccountFromContext(r.Context())
			if !ok {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			for _, role := range roles {
				if a.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
}

// RequireActiveVendor пропускает только одобренных продавцов.
func RequireActiveVendor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a, ok := AccountFromContext(r.Context())
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		if !a.IsActiveVendor() {
			http.Error(w, "vendor account is not active", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
