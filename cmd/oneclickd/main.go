// Package main is the entry point for the oneclickd daemon.
package main

import (
	"os"

	"github.com/tqa24/oneclick-subtitles-generator-sub003/cmd/oneclickd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
