// Package version holds the release version stamped into binaries and
// server identities.
package version

// Version is overridable at build time via -ldflags.
var Version = "0.1.0"
