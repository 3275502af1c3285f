package config

import (
	"testing"

	"github.com/pion/logging"
	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"CAMERA_SERVER", "HOST", "PORT", "RECORD_DIR", "ICE_SERVERS", "AUDIO_DIRECTION", "LOG_LEVEL", "ENVIRONMENT", "CAMERA"} {
		t.Setenv(k, "")
	}

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3600", cfg.ServerURL)
	assert.Equal(t, "0.0.0.0:8000", cfg.Addr())
	assert.Empty(t, cfg.RecordDir)
	assert.Empty(t, cfg.ICEServers)
	assert.Equal(t, webrtc.RTPTransceiverDirectionSendrecv, cfg.AudioDirection)
	assert.Equal(t, logging.LogLevelInfo, cfg.LogLevel)
	assert.False(t, cfg.Production())
}

func TestLoadEnvAndFlags(t *testing.T) {
	t.Setenv("CAMERA_SERVER", "http://cams.local:9000/")
	t.Setenv("PORT", "9100")
	t.Setenv("ICE_SERVERS", "stun:stun.l.google.com:19302, ,stun:stun1.example.com:3478")
	t.Setenv("ENVIRONMENT", "production")

	cfg, err := Load([]string{"-audio", "recvonly", "-log-level", "debug", "-camera", "/dev/video0"})
	require.NoError(t, err)
	assert.Equal(t, "http://cams.local:9000", cfg.ServerURL)
	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, []string{"stun:stun.l.google.com:19302", "stun:stun1.example.com:3478"}, cfg.ICEServers)
	assert.Equal(t, webrtc.RTPTransceiverDirectionRecvonly, cfg.AudioDirection)
	assert.Equal(t, logging.LogLevelDebug, cfg.LogLevel)
	assert.Equal(t, "/dev/video0", cfg.Camera)
	assert.True(t, cfg.Production())
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bad server scheme", []string{"-server", "ftp://cams"}},
		{"server without host", []string{"-server", "localhost"}},
		{"bad port", []string{"-port", "0"}},
		{"bad audio", []string{"-audio", "sendonly"}},
		{"bad level", []string{"-log-level", "loud"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(tc.args)
			assert.Error(t, err)
		})
	}
}
