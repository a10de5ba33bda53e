// Package version resolves the build version for banners and User-Agent
// strings.
package version

import (
	"runtime/debug"
	"strings"
	"time"
)

const fallbackModule = "pkt.systems/zotmcp"

// buildVersion is set via -ldflags "-X pkt.systems/zotmcp/internal/version.buildVersion=...".
var buildVersion = ""

// Current returns the best available version string: the linker-injected
// value, the module version from build info, or a VCS pseudo-version.
func Current() string {
	if v := strings.TrimSpace(buildVersion); v != "" {
		return v
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "v0.0.0-unknown"
	}
	if v := strings.TrimSpace(info.Main.Version); v != "" && v != "(devel)" {
		return v
	}
	var revision, stamp string
	dirty := false
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.time":
			stamp = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if revision == "" || stamp == "" {
		return "v0.0.0-unknown"
	}
	at, err := time.Parse(time.RFC3339, stamp)
	if err != nil {
		return "v0.0.0-unknown"
	}
	if len(revision) > 12 {
		revision = revision[:12]
	}
	v := "v0.0.0-" + at.UTC().Format("20060102150405") + "-" + revision
	if dirty {
		v += "+dirty"
	}
	return v
}

// Module returns this binary's module path from build info.
func Module() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		if path := strings.TrimSpace(info.Main.Path); path != "" {
			return path
		}
	}
	return fallbackModule
}
