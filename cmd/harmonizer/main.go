// Package main provides the entry point for the harmonizer CLI tool.
package main

import "github.com/crosspoll/harmonizer/cmd/harmonizer/cmd"

// Version information populated by goreleaser.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
	builtBy = "unknown"
)

func main() {
	cmd.Execute(version, commit, date, builtBy)
}
