// Package main is the entry point for the mixarr engine.
package main

import (
	"os"

	"github.com/jmylchreest/mixarr/cmd/mixarr/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
