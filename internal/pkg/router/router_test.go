package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreflightAcknowledgedWithCORSHeaders(t *testing.T) {
	app := fiber.New()
	NewApiRouter().InstallRouter(app)

	req := httptest.NewRequest(http.MethodOptions, "/api/createBill", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestNonPostMethodRejected(t *testing.T) {
	app := fiber.New()
	NewApiRouter().InstallRouter(app)

	req := httptest.NewRequest(http.MethodGet, "/api/paymentCallback", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusMethodNotAllowed, resp.StatusCode)
}
