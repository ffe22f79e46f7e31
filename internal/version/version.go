package version

import (
	"fmt"
	"regexp"
	"strings"
)

// Header carries the build version of a relay in its WebSocket upgrade
// response so dialing peers can warn about mismatched builds.
const Header = "X-Pagedesigner-Version"

var version = "dev"

// String returns the build version for the current binary.
func String() string {
	return version
}

// ForTesting overrides the version string and returns a cleanup function
// that restores the original value. Must not be called concurrently.
func ForTesting(v string) func() {
	original := version
	version = v
	return func() { version = original }
}

// gitDescribeSuffix matches the trailing "-N-gHASH" added by git describe.
var gitDescribeSuffix = regexp.MustCompile(`-\d+-g[0-9a-f]+$`)

func normalizeVersion(v string) string {
	v = strings.TrimPrefix(v, "v")
	return gitDescribeSuffix.ReplaceAllString(v, "")
}

// FormatVersion ensures a "v" prefix for release versions. "dev" and
// empty strings are returned as-is.
func FormatVersion(v string) string {
	if v == "" || v == "dev" {
		return v
	}
	if strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}

// CheckRelayVersion compares the local build with the version a relay
// reported. It returns a warning when they differ and an empty string
// when they match or either side is a development build.
func CheckRelayVersion(relayVersion string) string {
	local := version
	if relayVersion == "" || local == "" {
		return ""
	}
	if local == "dev" || relayVersion == "dev" {
		return ""
	}
	if normalizeVersion(local) == normalizeVersion(relayVersion) {
		return ""
	}
	return fmt.Sprintf(
		"WARNING: pagedesigner %s connected to relay %s, envelopes may not match",
		FormatVersion(local), FormatVersion(relayVersion),
	)
}
