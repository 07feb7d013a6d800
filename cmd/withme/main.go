// Package main is the entry point for the withme CLI.
package main

import (
	"os"

	"github.com/withme/withme/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
