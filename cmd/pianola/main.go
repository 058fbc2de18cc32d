// Package main is the entry point for the pianola application.
package main

import (
	"os"

	"github.com/jmylchreest/pianola/cmd/pianola/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
