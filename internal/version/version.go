package version

import (
	"runtime"
	"runtime/debug"
)

// Version is set by -ldflags "-X github.com/lockaudit/lockaudit/internal/version.Version=v1.2.3".
// When empty the module version from build info is used.
var Version = ""

// Swappable for testing
var readBuildInfo = debug.ReadBuildInfo

// BuildVersion returns the release version, or "dev" if unavailable.
func BuildVersion() string {
	if Version != "" {
		return Version
	}
	info, ok := readBuildInfo()
	if !ok {
		return "dev"
	}
	if info.Main.Version == "" || info.Main.Version == "(devel)" {
		return "dev"
	}
	return info.Main.Version
}

// Commit is the VCS revision stamped by the go tool, if any
func Commit() string {
	info, ok := readBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			return s.Value
		}
	}
	return ""
}

// UserAgent for outbound HTTP requests
func UserAgent() string {
	return "lockaudit/" + BuildVersion()
}

// Info is printed by `lockaudit version --json`
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

func Get() Info {
	return Info{
		Version:   BuildVersion(),
		Commit:    Commit(),
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}
