// Package version exposes build metadata for the device binaries.
//
// Version, Commit and BuildTime are injected at build time via ldflags.
// Every binary logs Line(name) at startup and carries a `version` subcommand.
package version
