// Package version holds build-time version information for ctxasm.
package version

import "runtime"

// Overridable at build time:
// go build -ldflags "-X ctxasm/internal/version.Version=1.0.0 -X ctxasm/internal/version.Commit=abc123"
var (
	Version   = "0.3.0"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// Info returns the version, suffixed with the short commit when known.
func Info() string {
	if Commit != "unknown" && len(Commit) > 7 {
		return Version + " (" + Commit[:7] + ")"
	}
	return Version
}

// Full returns complete version information.
func Full() string {
	return "ctxasm version " + Version + "\n" +
		"Commit: " + Commit + "\n" +
		"Built: " + BuildDate + "\n" +
		"Go: " + runtime.Version()
}

// UserAgent is sent by outbound HTTP clients.
func UserAgent() string {
	return "ctxasm/" + Version
}
