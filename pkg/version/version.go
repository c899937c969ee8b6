// Package version exposes the build version stamped in at link time.
package version

// version is overridden via -ldflags at release build time.
var version = "dev"

// GetVersion returns the current build version.
func GetVersion() string {
	return version
}
