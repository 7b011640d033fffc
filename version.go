package main

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// Build information, set via -ldflags at release time.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// normalizeVersion ensures a version string has the "v" prefix semver expects.
func normalizeVersion(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}

// displayVersion returns the canonical semver form of v, or v unchanged when
// it is not a release version such as "dev".
func displayVersion(v string) string {
	n := normalizeVersion(v)
	if !semver.IsValid(n) {
		return v
	}
	return semver.Canonical(n)
}

// versionString formats the build information for -version.
func versionString() string {
	s := fmt.Sprintf("silentcmd %s (commit %s, built %s)", displayVersion(Version), Commit, BuildTime)
	if semver.Prerelease(normalizeVersion(Version)) != "" {
		s += " prerelease"
	}
	return s
}
