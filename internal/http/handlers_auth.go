package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"kuberx/internal/log"
)

type userContextKey struct{}

// UserFromContext returns the authenticated username, if any.
func UserFromContext(ctx context.Context) string {
	u, _ := ctx.Value(userContextKey{}).(string)
	return u
}

type loginResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.auth == nil {
		ErrorResponse(http.StatusNotFound, "authentication is disabled").Write(w)
		return
	}
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	username := p.Get("username")
	token, exp, err := s.auth.Login(username, p.Get("password"))
	if err != nil {
		log.FromContext(r.Context()).WithComponent(log.ComponentAuth).
			WarnContext(r.Context(), "Login failed", log.FieldUser, username)
		ErrorFor(r.Context(), err).Write(w)
		return
	}
	log.FromContext(r.Context()).WithComponent(log.ComponentAuth).
		InfoContext(r.Context(), "Login succeeded", log.FieldUser, username)
	NewJSONResponse().JSON(loginResponse{Token: token, TokenType: "Bearer", ExpiresAt: exp}).Write(w)
}

// requireToken rejects requests without a valid bearer token. It passes
// everything through when authentication is disabled.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.auth == nil {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			ErrorResponse(http.StatusUnauthorized, "missing bearer token").
				Header("WWW-Authenticate", `Bearer realm="kuberx"`).
				Write(w)
			return
		}
		user, err := s.auth.Verify(strings.TrimSpace(token))
		if err != nil {
			ErrorFor(r.Context(), err).
				Header("WWW-Authenticate", `Bearer realm="kuberx", error="invalid_token"`).
				Write(w)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey{}, user)
		ctx = context.WithValue(ctx, log.LoggerContextKey, log.FromContext(ctx).With(log.FieldUser, user))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
