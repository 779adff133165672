package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/example/ec-order-service/internal/auth"
	"github.com/example/ec-order-service/internal/infrastructure/store"
)

// AuthHandlers issues access tokens. Account management beyond login is
// owned by the excluded auth subsystem.
type AuthHandlers struct {
	users      store.UserStore
	jwtService *auth.JWTService
}

func NewAuthHandlers(users store.UserStore, jwtService *auth.JWTService) *AuthHandlers {
	return &AuthHandlers{users: users, jwtService: jwtService}
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the issued token and its expiry.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      UserView  `json:"user"`
}

// UserView represents user data in responses
type UserView struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// Login checks credentials and issues a JWT.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	u, err := h.users.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			respondError(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		respondError(w, "login failed", http.StatusInternalServerError)
		return
	}

	if !auth.CheckPassword(req.Password, u.PasswordHash) {
		respondError(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	token, expiresAt, err := h.jwtService.GenerateToken(u.ID, u.Email, u.Role)
	if err != nil {
		respondError(w, "login failed", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "access_token",
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})

	respondJSON(w, http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User: UserView{
			ID:    u.ID,
			Email: u.Email,
			Name:  u.Name,
			Role:  u.Role,
		},
	})
}
