// Package main is the entry point for the cloudmask CLI.
package main

import (
	"os"

	"cloudmask/cmd/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
