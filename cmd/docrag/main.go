// Package main provides the entry point for the docrag CLI.
package main

import (
	"os"

	"github.com/vibhup/docrag/cmd/docrag/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
