// Package main is the entry point for the cliparr application.
package main

import (
	"os"

	"github.com/jmylchreest/cliparr/cmd/cliparr/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
