package main

import (
	"os"

	"github.com/Caia-Tech/caia-scribe/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
