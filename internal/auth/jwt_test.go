package auth

import (
	"net/http/httptest"
	"testing"

	"emlak-backend/internal/config"
	"emlak-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-en-az-otuz-iki-karakter!"

func testConfig() *config.Config {
	return &config.Config{JWTSecret: testSecret}
}

func TestGenerateTokenRoundTrip(t *testing.T) {
	user := &models.User{ID: 7, Email: "mehmet@test.local", Role: models.RoleSalesperson}

	tokenStr, err := GenerateToken(testSecret, user)
	require.NoError(t, err)

	token, err := jwt.ParseWithClaims(tokenStr, &JWTCustomClaims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(testSecret), nil
	})
	require.NoError(t, err)
	require.True(t, token.Valid)

	claims := token.Claims.(*JWTCustomClaims)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, "mehmet@test.local", claims.Email)
	assert.Equal(t, models.RoleSalesperson, claims.Role)
}

func newProtectedApp(cfg *config.Config, extra ...fiber.Handler) *fiber.App {
	app := fiber.New()
	handlers := append([]fiber.Handler{JWTMiddleware(cfg)}, extra...)
	handlers = append(handlers, func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	app.Get("/secure", handlers...)
	return app
}

func TestJWTMiddleware(t *testing.T) {
	cfg := testConfig()
	app := newProtectedApp(cfg)

	t.Run("header eksik", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/secure", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("bozuk format", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/secure", nil)
		req.Header.Set("Authorization", "Token abc")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("yanlış secret ile imzalanmış token", func(t *testing.T) {
		user := &models.User{ID: 1, Role: models.RoleAdmin}
		tokenStr, err := GenerateToken("baska-bir-secret-en-az-otuz-iki-kr!", user)
		require.NoError(t, err)

		req := httptest.NewRequest("GET", "/secure", nil)
		req.Header.Set("Authorization", "Bearer "+tokenStr)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("geçerli token", func(t *testing.T) {
		user := &models.User{ID: 1, Role: models.RoleAdmin}
		tokenStr, err := GenerateToken(testSecret, user)
		require.NoError(t, err)

		req := httptest.NewRequest("GET", "/secure", nil)
		req.Header.Set("Authorization", "Bearer "+tokenStr)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})
}

func TestRequireRole(t *testing.T) {
	cfg := testConfig()
	app := newProtectedApp(cfg, RequireRole(models.RoleAdmin))

	t.Run("danışman admin ucuna giremez", func(t *testing.T) {
		user := &models.User{ID: 2, Role: models.RoleSalesperson}
		tokenStr, err := GenerateToken(testSecret, user)
		require.NoError(t, err)

		req := httptest.NewRequest("GET", "/secure", nil)
		req.Header.Set("Authorization", "Bearer "+tokenStr)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	})

	t.Run("admin girer", func(t *testing.T) {
		user := &models.User{ID: 1, Role: models.RoleAdmin}
		tokenStr, err := GenerateToken(testSecret, user)
		require.NoError(t, err)

		req := httptest.NewRequest("GET", "/secure", nil)
		req.Header.Set("Authorization", "Bearer "+tokenStr)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})
}
