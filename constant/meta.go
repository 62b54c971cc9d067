// Package constant defines immutable application-level identifiers and configuration defaults.
package constant

const (
	// Bramble is the canonical application identifier used for filesystem paths and CLI branding.
	Bramble = "bramble"

	// Version is the current application semantic version string.
	Version = "0.1.0"
)

// Build metadata, overridden at link time through -ldflags.
var (
	Revision = "dev"
	BuiltAt  = "unknown"
	BuiltBy  = "unknown"
)
