// Package main is the entry point for the conform CLI.
package main

import (
	"os"

	"github.com/AndreyAkinshin/conform/internal/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
