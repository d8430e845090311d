package main

import (
	"os"

	"github.com/reconctl/reconctl/internal/cmd"
)

// version is overridden at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(cmd.RunWithArgs(os.Args[1:], version))
}
