package server_test

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"history-forwarder/core/server"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	app := server.New(server.Config{ApiKey: "secret"}, zap.NewNop())
	app.Get("/private", func(c *fiber.Ctx) error { return c.SendString("ok") })

	tests := []struct {
		name   string
		path   string
		key    string
		status int
	}{
		{"Health is public", "/health", "", 200},
		{"Missing key", "/private", "", 401},
		{"Wrong key", "/private", "nope", 401},
		{"Valid key", "/private", "secret", 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.NotEmpty(t, resp.Header.Get("X-Ray-ID"))
		})
	}

	t.Run("Health body", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
		require.NoError(t, err)
		var body map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "ok", body["status"])
	})
}
