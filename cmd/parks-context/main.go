// Package main is the entry point for the parks-context server.
package main

import (
	"os"

	"github.com/i474232898/parks-context/cmd/parks-context/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
