// Package main provides the entry point for the playground CLI.
package main

import (
	"fmt"
	"os"

	"github.com/schallerala/unifr-master-ilids-prompt-engineering-playground-client/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
