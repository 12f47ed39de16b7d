// Package version carries the dispatcher's build identity.
//
// Variables are set at build time via ldflags:
//
//	go build -ldflags "-X github.com/rickgao/qchat-dispatch/internal/version.Version=1.0.0 \
//	                   -X github.com/rickgao/qchat-dispatch/internal/version.Commit=$(git rev-parse --short HEAD) \
//	                   -X github.com/rickgao/qchat-dispatch/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" \
//	    ./cmd/dispatcher
package version

// Set via ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Info is the build identity as reported on /health.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

// Get returns the current build identity.
func Get() Info {
	return Info{Version: Version, Commit: Commit, BuildTime: BuildTime}
}

// String returns "version (commit) built time".
func String() string {
	return Version + " (" + Commit + ") built " + BuildTime
}
