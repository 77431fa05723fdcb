// Package main provides the entry point for the vcsmeta CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/Sumatoshi-tech/vcsmeta/cmd/vcsmeta/commands"
	"github.com/Sumatoshi-tech/vcsmeta/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	err := commands.NewRootCommand().Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
