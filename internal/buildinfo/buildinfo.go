package buildinfo

import "runtime/debug"

var version = "dev"

// SetVersion lets build scripts override the reported version.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Version returns the release version, falling back to the module
// version embedded by the Go toolchain.
func Version() string {
	if version != "dev" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}
