package handlers

import (
	"context"
	"net/http"
	"strings"

	"todoapp/internal/auth"
	"todoapp/internal/models"
)

type claimsKey struct{}

// RequireAuth rejects requests without a valid bearer token and stores the
// token's claims in the request context.
func (h *Handlers) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			respondError(w, http.StatusUnauthorized, "authorization header is required")
			return
		}

		claims, err := h.auth.Authenticate(strings.TrimSpace(token))
		if err != nil {
			respondError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// claimsFrom returns the claims stored by RequireAuth.
func claimsFrom(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey{}).(*auth.Claims)
	return claims
}

func userID(r *http.Request) int64 {
	if c := claimsFrom(r.Context()); c != nil {
		return c.UserID
	}
	return 0
}

// Register creates an account.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.respondErr(w, r, err)
		return
	}

	resp, err := h.auth.Register(r.Context(), req)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// Login signs a user in.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.respondErr(w, r, err)
		return
	}

	resp, err := h.auth.Login(r.Context(), req)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// Me returns the signed-in user.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.Me(r.Context(), userID(r))
	if err != nil {
		h.respondErr(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, user)
}

// ValidateToken answers 200 for any token that got past RequireAuth.
func (h *Handlers) ValidateToken(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, struct {
		Message string `json:"message"`
		IsValid bool   `json:"is_valid"`
	}{Message: "Token is valid", IsValid: true})
}
