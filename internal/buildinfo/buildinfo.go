// Package buildinfo holds the values stamped into a vaultimg binary at link
// time via -ldflags, the way the teacher's internal/env package does for
// digler.
package buildinfo

// AppName is the program name used as the CLI root command and recorded as
// the manifest creator package.
const AppName = "vaultimg"

// Version, CommitHash, and BuildTime default to placeholders and are meant
// to be overridden with -ldflags "-X ...=..." at build time.
var (
	Version    = "dev"
	CommitHash = "unknown"
	BuildTime  = "unknown"
)
