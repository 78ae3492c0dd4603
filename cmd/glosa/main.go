// Package main provides the entry point for the glosa CLI tool.
package main

import "github.com/labops/glosa/cmd/glosa/cmd"

// Version information populated by goreleaser.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cmd.Execute(version, commit, date)
}
