// Package main is the entry point for the prkeeper CLI.
package main

import (
	"os"

	"github.com/prkeeper/prkeeper/cmd/prkeeper/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
