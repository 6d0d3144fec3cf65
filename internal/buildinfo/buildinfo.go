// Package buildinfo reports how the running binary was built.
package buildinfo

import (
	"fmt"
	"runtime/debug"
	"strings"
)

// Info is the subset of debug.BuildInfo printed by the version command.
type Info struct {
	Version  string
	Revision string
	Modified bool
	Tags     string
}

// Read returns the build information, with "dev" standing in for a
// missing module version.
func Read() Info {
	info, ok := debug.ReadBuildInfo()
	if !ok || info == nil {
		return Info{Version: "dev"}
	}
	return fromBuildInfo(info)
}

func fromBuildInfo(info *debug.BuildInfo) Info {
	out := Info{Version: info.Main.Version}
	if out.Version == "" || out.Version == "(devel)" {
		out.Version = "dev"
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "-tags":
			out.Tags = setting.Value
		case "vcs.revision":
			out.Revision = setting.Value
		case "vcs.modified":
			out.Modified = setting.Value == "true"
		}
	}
	return out
}

// String renders "v1.2.3 (abcdef0-dirty, tags: foo)".
func (i Info) String() string {
	var extra []string
	if i.Revision != "" {
		rev := i.Revision
		if len(rev) > 7 {
			rev = rev[:7]
		}
		if i.Modified {
			rev += "-dirty"
		}
		extra = append(extra, rev)
	}
	if i.Tags != "" {
		extra = append(extra, "tags: "+i.Tags)
	}
	if len(extra) == 0 {
		return i.Version
	}
	return fmt.Sprintf("%s (%s)", i.Version, strings.Join(extra, ", "))
}
