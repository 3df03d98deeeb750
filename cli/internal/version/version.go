package version

import (
	"fmt"
	"runtime"
)

var (
	// Version is the version of the CLI
	Version = "0.1.0"
	// BuildDate is the build date
	BuildDate = "unknown"
	// GitCommit is the git commit hash
	GitCommit = "unknown"
)

// Info holds version information
type Info struct {
	Version   string `yaml:"version"`
	BuildDate string `yaml:"buildDate"`
	GitCommit string `yaml:"gitCommit"`
	GoVersion string `yaml:"goVersion"`
	Platform  string `yaml:"platform"`
	// Providers lists the database providers commands are generated for
	Providers []string `yaml:"providers"`
}

// Get returns version information
func Get() Info {
	return Info{
		Version:   Version,
		BuildDate: BuildDate,
		GitCommit: GitCommit,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
		Providers: []string{"postgresql", "mysql", "sqlite", "sqlserver"},
	}
}

// String returns a formatted version string
func (i Info) String() string {
	return fmt.Sprintf("relquery version %s (%s %s)", i.Version, i.Platform, i.GoVersion)
}
