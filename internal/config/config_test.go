package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir()) // no .env around

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, uint16(8085), cfg.HttpServerPort)
	assert.Equal(t, 256, cfg.WsSendBuffer)
	assert.Equal(t, int64(65536), cfg.WsReadLimit)
	assert.Empty(t, cfg.WsAllowedOrigins)
	assert.False(t, cfg.ActivityLogEnabled)
	assert.False(t, cfg.PresenceMirrorEnabled)
	assert.Equal(t, 10*time.Second, cfg.PresenceMirrorInterval)
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HTTP_SERVER_PORT", "9090")
	t.Setenv("WS_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("PRESENCE_MIRROR_ENABLED", "true")
	t.Setenv("PRESENCE_MIRROR_INTERVAL", "3s")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, uint16(9090), cfg.HttpServerPort)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.WsAllowedOrigins)
	assert.True(t, cfg.PresenceMirrorEnabled)
	assert.Equal(t, 3*time.Second, cfg.PresenceMirrorInterval)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Run("port below range", func(t *testing.T) {
		t.Setenv("HTTP_SERVER_PORT", "80")
		_, err := LoadConfig()
		require.Error(t, err)
	})
	t.Run("zero send buffer", func(t *testing.T) {
		t.Setenv("WS_SEND_BUFFER", "0")
		_, err := LoadConfig()
		require.Error(t, err)
	})
	t.Run("unparsable duration", func(t *testing.T) {
		t.Setenv("PRESENCE_MIRROR_INTERVAL", "soon")
		_, err := LoadConfig()
		require.Error(t, err)
	})
}
