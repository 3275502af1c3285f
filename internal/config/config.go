package config

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/pion/logging"
	"github.com/pion/webrtc/v3"
)

// Config holds everything the panel process needs at startup.
type Config struct {
	// ServerURL is the base URL of the camera streaming server.
	ServerURL string
	Host      string
	Port      int
	// RecordDir receives one file per remote track. Empty disables recording.
	RecordDir  string
	ICEServers []string
	// AudioDirection is the direction of the audio transceiver offered to the server.
	AudioDirection webrtc.RTPTransceiverDirection
	LogLevel       logging.LogLevel
	Environment    string
	// Camera is selected right after discovery when non-empty.
	Camera string
}

// Addr is the panel listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Production reports whether the panel runs in production mode.
func (c *Config) Production() bool {
	return c.Environment == "production"
}

// Load parses args (without the program name). Every flag falls back to its
// environment variable, then to a built-in default.
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("campanel", flag.ContinueOnError)
	server := fs.String("server", getEnv("CAMERA_SERVER", "http://localhost:3600"), "camera server base URL")
	host := fs.String("host", getEnv("HOST", "0.0.0.0"), "panel bind host")
	port := fs.Int("port", getEnvInt("PORT", 8000), "panel bind port")
	recordDir := fs.String("record-dir", getEnv("RECORD_DIR", ""), "directory for recorded tracks (empty disables)")
	ice := fs.String("ice", getEnv("ICE_SERVERS", ""), "comma-separated ICE server URLs")
	audio := fs.String("audio", getEnv("AUDIO_DIRECTION", "sendrecv"), "audio transceiver direction: sendrecv or recvonly")
	level := fs.String("log-level", getEnv("LOG_LEVEL", "info"), "log level: disabled, error, warn, info, debug, trace")
	env := fs.String("env", getEnv("ENVIRONMENT", "development"), "environment: development or production")
	camera := fs.String("camera", getEnv("CAMERA", ""), "camera to select at startup")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := &Config{
		ServerURL:   strings.TrimRight(*server, "/"),
		Host:        *host,
		Port:        *port,
		RecordDir:   *recordDir,
		ICEServers:  splitList(*ice),
		Environment: *env,
		Camera:      *camera,
	}

	u, err := url.Parse(cfg.ServerURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid camera server URL %q", *server)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d", cfg.Port)
	}
	switch strings.ToLower(*audio) {
	case "sendrecv":
		cfg.AudioDirection = webrtc.RTPTransceiverDirectionSendrecv
	case "recvonly":
		cfg.AudioDirection = webrtc.RTPTransceiverDirectionRecvonly
	default:
		return nil, fmt.Errorf("invalid audio direction %q", *audio)
	}
	if cfg.LogLevel, err = ParseLevel(*level); err != nil {
		return nil, err
	}
	return cfg, nil
}

var errUnknownLevel = errors.New("unknown log level")

// ParseLevel maps a level name onto pion's logging levels.
func ParseLevel(s string) (logging.LogLevel, error) {
	switch strings.ToLower(s) {
	case "disabled", "off":
		return logging.LogLevelDisabled, nil
	case "error":
		return logging.LogLevelError, nil
	case "warn", "warning":
		return logging.LogLevelWarn, nil
	case "info", "":
		return logging.LogLevelInfo, nil
	case "debug":
		return logging.LogLevelDebug, nil
	case "trace":
		return logging.LogLevelTrace, nil
	}
	return logging.LogLevelDisabled, fmt.Errorf("%w %q", errUnknownLevel, s)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		var x int
		if _, err := fmt.Sscanf(v, "%d", &x); err == nil {
			return x
		}
	}
	return def
}
