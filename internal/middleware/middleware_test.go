package middleware_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SscSPs/student_ledger/internal/middleware"
)

const secret = "middleware-test-secret"

func signToken(t *testing.T, key string, method jwt.SigningMethod, claims middleware.LedgerClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return token
}

func claimsFor(subject string, expiresIn time.Duration, roles ...string) middleware.LedgerClaims {
	return middleware.LedgerClaims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
		},
	}
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/whoami", append(handlers, func(c *gin.Context) {
		userID, _ := middleware.GetUserIDFromContext(c)
		c.JSON(http.StatusOK, gin.H{"user": userID, "roles": middleware.GetRolesFromContext(c)})
	})...)
	return r
}

func serve(r *gin.Engine, header string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodGet, "/whoami", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	r := newRouter(middleware.AuthMiddleware(secret))

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantError  string
	}{
		{"missing header", "", http.StatusUnauthorized, "Authorization header required"},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, "Authorization header format must be Bearer {token}"},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized, "Invalid token"},
		{"wrong secret", "Bearer " + signToken(t, "other", jwt.SigningMethodHS256, claimsFor("u-1", time.Hour)), http.StatusUnauthorized, "Invalid token"},
		{"expired", "Bearer " + signToken(t, secret, jwt.SigningMethodHS256, claimsFor("u-1", -time.Minute)), http.StatusUnauthorized, "Token has expired"},
		{"no subject", "Bearer " + signToken(t, secret, jwt.SigningMethodHS256, claimsFor("", time.Hour)), http.StatusUnauthorized, "Invalid token claims"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(r, tt.header)
			assert.Equal(t, tt.wantStatus, w.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantError, body["error"])
		})
	}

	t.Run("valid token", func(t *testing.T) {
		w := serve(r, "Bearer "+signToken(t, secret, jwt.SigningMethodHS256, claimsFor("u-1", time.Hour, middleware.RoleBursar)))
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"user":"u-1","roles":["bursar"]}`, w.Body.String())
	})
}

func TestRequireRole(t *testing.T) {
	r := newRouter(middleware.AuthMiddleware(secret), middleware.RequireRole(middleware.RoleBursar))

	w := serve(r, "Bearer "+signToken(t, secret, jwt.SigningMethodHS256, claimsFor("clerk", time.Hour, "clerk")))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = serve(r, "Bearer "+signToken(t, secret, jwt.SigningMethodHS256, claimsFor("bursar", time.Hour, "clerk", middleware.RoleBursar)))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimit_PerUser(t *testing.T) {
	limiter, err := middleware.NewRateLimiter("2-M")
	require.NoError(t, err)
	r := newRouter(middleware.AuthMiddleware(secret), middleware.RateLimit(limiter))

	alice := "Bearer " + signToken(t, secret, jwt.SigningMethodHS256, claimsFor("alice", time.Hour))
	bob := "Bearer " + signToken(t, secret, jwt.SigningMethodHS256, claimsFor("bob", time.Hour))

	assert.Equal(t, http.StatusOK, serve(r, alice).Code)
	assert.Equal(t, http.StatusOK, serve(r, alice).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, alice).Code)
	assert.Equal(t, http.StatusOK, serve(r, bob).Code)
}

func TestNewRateLimiter_BadFormat(t *testing.T) {
	_, err := middleware.NewRateLimiter("lots")
	assert.Error(t, err)
}

func TestStructuredLogging_RequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	r := newRouter(middleware.StructuredLoggingMiddleware(logger))

	req, _ := http.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("X-Request-ID", "retry-abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "retry-abc", w.Header().Get("X-Request-ID"))
	assert.Contains(t, buf.String(), `"request_id":"retry-abc"`)

	w = serve(r, "")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
