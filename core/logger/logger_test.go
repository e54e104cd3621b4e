package logger

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestNew tests level and format selection.
func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		enabled zapcore.Level
		wantErr bool
	}{
		{"Debug", Config{Level: "debug", Format: "console"}, zapcore.DebugLevel, false},
		{"Info", Config{Level: "info", Format: "json"}, zapcore.InfoLevel, false},
		{"Warn", Config{Level: "warn"}, zapcore.WarnLevel, false},
		{"Invalid", Config{Level: "loud"}, zapcore.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(&tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, l.Core().Enabled(tt.enabled))
			assert.False(t, l.Core().Enabled(tt.enabled-1))
		})
	}
}

// TestWithRayID tests that the request id is attached when present.
func TestWithRayID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	app := fiber.New()
	app.Get("/with", func(c *fiber.Ctx) error {
		c.Locals("ray_id", "abc")
		WithRayID(base, c).Info("with")
		return nil
	})
	app.Get("/without", func(c *fiber.Ctx) error {
		WithRayID(base, c).Info("without")
		return nil
	})

	_, err := app.Test(httptest.NewRequest("GET", "/with", nil))
	require.NoError(t, err)
	_, err = app.Test(httptest.NewRequest("GET", "/without", nil))
	require.NoError(t, err)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "abc", entries[0].ContextMap()["ray_id"])
	assert.NotContains(t, entries[1].ContextMap(), "ray_id")
}
