// Package version holds the build identity reported by the CLI, the
// language server handshake and SCIP index metadata.
package version

// Set at build time:
// go build -ldflags "-X nixlsp/internal/version.Version=0.3.0 -X nixlsp/internal/version.Commit=abc123"
var (
	Version   = "0.3.0"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// Name is the program name sent to clients and recorded as the SCIP tool.
const Name = "nixlsp"

// Info returns the version with a short commit suffix when known.
func Info() string {
	if Commit != "unknown" && len(Commit) > 7 {
		return Version + " (" + Commit[:7] + ")"
	}
	return Version
}

// Full returns complete version information
func Full() string {
	return Name + " version " + Version + "\n" +
		"Commit: " + Commit + "\n" +
		"Built: " + BuildDate
}
