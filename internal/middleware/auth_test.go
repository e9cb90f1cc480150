package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func signed(t *testing.T, method jwt.SigningMethod, key any, claims jwt.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestResolveActor(t *testing.T) {
	valid := jwt.RegisteredClaims{
		Subject:   "user_a",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	expired := jwt.RegisteredClaims{
		Subject:   "user_a",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}

	tests := []struct {
		name      string
		header    string
		wantActor string
	}{
		{name: "no header"},
		{name: "valid token", header: "Bearer " + signed(t, jwt.SigningMethodHS256, []byte(secret), valid), wantActor: "user_a"},
		{name: "wrong secret", header: "Bearer " + signed(t, jwt.SigningMethodHS256, []byte("other"), valid)},
		{name: "expired", header: "Bearer " + signed(t, jwt.SigningMethodHS256, []byte(secret), expired)},
		{name: "no subject", header: "Bearer " + signed(t, jwt.SigningMethodHS256, []byte(secret), jwt.RegisteredClaims{})},
		{name: "alg none", header: "Bearer " + signed(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, valid)},
		{name: "not bearer", header: "Basic dXNlcjpwYXNz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Use(ResolveActor(secret))
			app.Get("/", func(c *fiber.Ctx) error {
				id, _ := ActorID(c)
				ctxID, _ := c.UserContext().Value(ActorIDKey).(string)
				assert.Equal(t, id, ctxID)
				return c.SendString(id)
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			require.Equal(t, http.StatusOK, resp.StatusCode)

			buf := make([]byte, 64)
			n, _ := resp.Body.Read(buf)
			assert.Equal(t, tt.wantActor, string(buf[:n]))
		})
	}
}

func TestActorRequired(t *testing.T) {
	app := fiber.New()
	app.Use(ResolveActor(secret))
	app.Get("/", ActorRequired(), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusNoContent)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signed(t, jwt.SigningMethodHS256, []byte(secret),
		jwt.RegisteredClaims{Subject: "user_b"}))
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
