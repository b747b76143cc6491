// Package main is the entry point for the port-dues CLI.
package main

import (
	"os"

	"port-dues/cmd/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
