package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8085, cfg.Server.Port)
	assert.Equal(t, "/ws", cfg.WebSocket.Path)
	assert.Equal(t, 30*time.Second, cfg.WebSocket.PingInterval)
	assert.Equal(t, 60*time.Second, cfg.WebSocket.PongWait)
	assert.Equal(t, int64(65536), cfg.WebSocket.MaxMessageSize)
	assert.Equal(t, 256, cfg.WebSocket.SendBufferSize)
	assert.False(t, cfg.Classroom.EnforceHostControls)
	assert.False(t, cfg.Events.Enabled)
	assert.Equal(t, "redis", cfg.Events.PubSub.Driver)
	assert.Equal(t, "classroom-signal", cfg.Log.ServiceName)
}

func TestLoadFileAndEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := t.TempDir()

	yaml := `
server:
  port: 9000
websocket:
  path: /signal
  pong_wait: 20s
  ping_interval: 45s
  allowed_origins:
    - https://school.example
classroom:
  enforce_host_controls: true
webrtc:
  ice_servers:
    - urls: ["turn:turn.example:3478"]
      username: u
      credential: p
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))
	t.Setenv("PORT", "9100")
	t.Setenv("EVENTS_ENABLED", "true")
	t.Setenv("PUBSUB_DRIVER", "kafka")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "/signal", cfg.WebSocket.Path)
	assert.Equal(t, 20*time.Second, cfg.WebSocket.PongWait)
	assert.Equal(t, 18*time.Second, cfg.WebSocket.PingInterval)
	assert.Equal(t, []string{"https://school.example"}, cfg.WebSocket.AllowedOrigins)
	assert.True(t, cfg.Classroom.EnforceHostControls)
	assert.True(t, cfg.Events.Enabled)
	assert.Equal(t, "kafka", cfg.Events.PubSub.Driver)
	require.Len(t, cfg.WebRTC.ICEServers, 1)
	assert.Equal(t, "u", cfg.WebRTC.ICEServers[0].Username)
}
