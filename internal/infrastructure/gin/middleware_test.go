package gin

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raulshma/tech-ticker-sub007/internal/infrastructure/logger"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, expiresAt time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "ops",
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func newTestServer(checks map[string]HealthChecker) *Server {
	b := NewServerBuilder("pricewatch-test", 0).
		WithLogger(logger.NewNop()).
		WithRoutes(func(r *gin.Engine) {
			api := ProtectedGroup(r, "/api/v1", testSecret)
			api.GET("/ping", func(c *gin.Context) {
				claims, _ := GetClaims(c)
				c.JSON(http.StatusOK, gin.H{"sub": claims.Subject})
			})
			r.GET("/panic", func(*gin.Context) { panic("boom") })
		})
	for name, check := range checks {
		b.WithHealthCheck(name, check)
	}
	return b.Build()
}

func TestJWTMiddleware(t *testing.T) {
	srv := newTestServer(nil)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing header", header: "", want: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", want: http.StatusUnauthorized},
		{name: "bad signature", header: "Bearer " + signToken(t, "other", time.Now().Add(time.Hour)), want: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + signToken(t, testSecret, time.Now().Add(-time.Hour)), want: http.StatusUnauthorized},
		{name: "valid", header: "Bearer " + signToken(t, testSecret, time.Now().Add(time.Hour)), want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			srv.Router().ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestHealthRoutes(t *testing.T) {
	srv := newTestServer(map[string]HealthChecker{
		"database": PingChecker(func(context.Context) error { return nil }),
		"redis":    PingChecker(func(context.Context) error { return errors.New("connection refused") }),
	})

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestRecoveryMiddleware(t *testing.T) {
	srv := newTestServer(nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
}
