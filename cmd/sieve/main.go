// Package main is the entry point for the sieve CLI.
package main

import (
	"os"

	"github.com/use-agent/sieve/cmd/sieve/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
