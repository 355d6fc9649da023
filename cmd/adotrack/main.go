// Package main is the adotrack entry point.
package main

import (
	"os"

	"github.com/adotrack/adotrack/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
