package version

import (
	"encoding/json"
	"strings"

	"github.com/fatih/color"
)

// Version information for the jitkit CLI.
// These variables can be overridden at build time via -ldflags.

var (
	versionMajorColor = color.New(color.FgYellow, color.Bold)
	versionMinorColor = color.New(color.FgGreen, color.Bold)
	versionPatchColor = color.New(color.FgBlue, color.Bold)

	// Version is the semantic version of the CLI.
	Version = "0.1.0-dev"

	// GitCommit is an optional git commit hash.
	GitCommit = ""

	// GitMessage is an optional git commit message.
	GitMessage = ""

	// BuildDate is an optional build date in ISO-8601.
	BuildDate = ""
)

// Info is the machine-readable build description.
type Info struct {
	Version    string `json:"version"`
	GitCommit  string `json:"git_commit,omitempty"`
	GitMessage string `json:"git_message,omitempty"`
	BuildDate  string `json:"build_date,omitempty"`
}

// Current snapshots the build variables.
func Current() Info {
	return Info{Version: Version, GitCommit: GitCommit, GitMessage: GitMessage, BuildDate: BuildDate}
}

// JSON renders the info as indented JSON.
func (i Info) JSON() (string, error) {
	b, err := json.MarshalIndent(i, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Colored paints major, minor and patch of a semantic version; anything it
// cannot split is returned unchanged. Coloring follows color.NoColor.
func Colored(v string) string {
	core, suffix := v, ""
	if i := strings.IndexAny(v, "-+"); i >= 0 {
		core, suffix = v[:i], v[i:]
	}
	parts := strings.Split(core, ".")
	if len(parts) != 3 {
		return v
	}
	return versionMajorColor.Sprint(parts[0]) + "." +
		versionMinorColor.Sprint(parts[1]) + "." +
		versionPatchColor.Sprint(parts[2]) + suffix
}

// Pretty is the human-readable form printed by `jitkit version`.
func (i Info) Pretty() string {
	var sb strings.Builder
	sb.WriteString("jitkit ")
	sb.WriteString(Colored(i.Version))
	if i.GitCommit != "" {
		sb.WriteString("\ncommit: ")
		sb.WriteString(i.GitCommit)
		if i.GitMessage != "" {
			sb.WriteString(" (")
			sb.WriteString(i.GitMessage)
			sb.WriteString(")")
		}
	}
	if i.BuildDate != "" {
		sb.WriteString("\nbuilt:  ")
		sb.WriteString(i.BuildDate)
	}
	return sb.String()
}
