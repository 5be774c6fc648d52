package version

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/vibesql/connector/internal/database"
)

// Version information
// These can be overridden at build time using ldflags
var (
	// Version is the semantic version of the connector
	Version = "0.3.0"

	// GitCommit is the git commit hash
	GitCommit = "dev"

	// BuildDate is the date the binary was built
	BuildDate = "unknown"

	// GoVersion is the version of Go used to build the binary
	GoVersion = runtime.Version()
)

// Info contains all version information
type Info struct {
	Version   string
	GitCommit string
	BuildDate string
	GoVersion string
	OS        string
	Arch      string
	Drivers   []string
}

// Get returns the version information of the running binary
func Get() Info {
	drivers := make([]string, 0, len(database.SupportedDrivers()))
	for _, d := range database.SupportedDrivers() {
		drivers = append(drivers, string(d))
	}

	return Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		Drivers:   drivers,
	}
}

// String returns a one-line version string
func (i Info) String() string {
	return fmt.Sprintf("Connector %s (commit: %s, built: %s, go: %s, %s/%s)",
		i.Version, i.GitCommit, i.BuildDate, i.GoVersion, i.OS, i.Arch)
}

// Short returns the version only
func (i Info) Short() string {
	return i.Version
}

// Full returns a detailed multi-line version string
func (i Info) Full() string {
	drivers := "none"
	if len(i.Drivers) > 0 {
		drivers = strings.Join(i.Drivers, ", ")
	}

	return fmt.Sprintf(`Connector Version Information:
  Version:    %s
  Git Commit: %s
  Build Date: %s
  Go Version: %s
  OS/Arch:    %s/%s
  Drivers:    %s`,
		i.Version,
		i.GitCommit,
		i.BuildDate,
		i.GoVersion,
		i.OS,
		i.Arch,
		drivers,
	)
}
