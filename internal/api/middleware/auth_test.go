package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/ec-order-service/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTService() *auth.JWTService {
	return auth.NewJWTService("test-secret-key-that-is-long-enough", 15*time.Minute)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestExtractToken_FromHeader(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer abc123")

	assert.Equal(t, "abc123", ExtractToken(r))
}

func TestExtractToken_FromCookie(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "access_token", Value: "cookie-token"})

	assert.Equal(t, "cookie-token", ExtractToken(r))
}

func TestExtractToken_CookieWinsOverHeader(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "access_token", Value: "cookie-token"})
	r.Header.Set("Authorization", "Bearer header-token")

	assert.Equal(t, "cookie-token", ExtractToken(r))
}

func TestExtractToken_Missing(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	assert.Equal(t, "", ExtractToken(r))
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	svc := newTestJWTService()
	token, _, err := svc.GenerateToken("user-123", "test@example.com", auth.RoleCustomer)
	require.NoError(t, err)

	var gotClaims *auth.Claims
	handler := AuthMiddleware(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotClaims, _ = GetUserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, gotClaims)
	assert.Equal(t, "user-123", gotClaims.UserID)
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	handler := AuthMiddleware(newTestJWTService())(okHandler())

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	handler := AuthMiddleware(newTestJWTService())(okHandler())

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer garbage")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireRole_Allowed(t *testing.T) {
	handler := RequireRole(auth.RoleAdmin)(okHandler())

	claims := &auth.Claims{UserID: "user-123", Role: auth.RoleAdmin}
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(context.WithValue(r.Context(), UserContextKey, claims))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireRole_Forbidden(t *testing.T) {
	handler := RequireRole(auth.RoleAdmin)(okHandler())

	claims := &auth.Claims{UserID: "user-123", Role: auth.RoleCustomer}
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(context.WithValue(r.Context(), UserContextKey, claims))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireRole_NoClaims(t *testing.T) {
	handler := RequireRole(auth.RoleAdmin)(okHandler())

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetUserID(t *testing.T) {
	claims := &auth.Claims{UserID: "user-123", Role: auth.RoleCustomer}
	ctx := context.WithValue(context.Background(), UserContextKey, claims)

	assert.Equal(t, "user-123", GetUserID(ctx))
	assert.Equal(t, "", GetUserID(context.Background()))
}
