// Package buildinfo holds build-time metadata that is not user-configurable.
package buildinfo

import (
	"fmt"
	"runtime/debug"
)

// UnknownValue is reported for metadata the build did not set.
const UnknownValue = "unknown"

// Set with -ldflags "-X github.com/tphakala/birdnet-listener/internal/buildinfo.Version=..."
var (
	Version   = ""
	BuildDate = ""
)

// Context describes the running binary.
type Context struct {
	Version   string
	BuildDate string
	Revision  string
}

// Get returns the metadata of the running binary. Values not injected at
// link time fall back to the module build info, then to UnknownValue.
func Get() Context {
	ctx := Context{Version: Version, BuildDate: BuildDate}

	if info, ok := debug.ReadBuildInfo(); ok {
		if ctx.Version == "" && info.Main.Version != "" && info.Main.Version != "(devel)" {
			ctx.Version = info.Main.Version
		}
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				ctx.Revision = s.Value
			case "vcs.time":
				if ctx.BuildDate == "" {
					ctx.BuildDate = s.Value
				}
			}
		}
	}
	return ctx.withDefaults()
}

func (c Context) withDefaults() Context {
	if c.Version == "" {
		c.Version = UnknownValue
	}
	if c.BuildDate == "" {
		c.BuildDate = UnknownValue
	}
	if len(c.Revision) > 12 {
		c.Revision = c.Revision[:12]
	}
	return c
}

// String formats the metadata for --version output.
func (c Context) String() string {
	if c.Revision == "" {
		return fmt.Sprintf("%s (built %s)", c.Version, c.BuildDate)
	}
	return fmt.Sprintf("%s (built %s, rev %s)", c.Version, c.BuildDate, c.Revision)
}
