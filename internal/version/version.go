package version

// Build metadata injected via -ldflags at build time, e.g.
//
//	go build -ldflags "-X campanel/internal/version.BuildNumber=42 -X campanel/internal/version.GitCommit=abc123"
var (
	// BuildNumber is a monotonically increasing string set by the build script.
	BuildNumber = "0"
	// GitCommit is the short commit hash if available; may be "unknown".
	GitCommit = "unknown"
)

// String returns a concise version string for logs and /health.
func String() string {
	if GitCommit == "unknown" || GitCommit == "" {
		return "build " + BuildNumber
	}
	return "build " + BuildNumber + " (" + GitCommit + ")"
}

// UserAgent is sent on every request to the camera server.
func UserAgent() string {
	return "campanel/" + BuildNumber
}
