package main

import (
	"os"

	"github.com/Windi-Fikriyansyah/localserve/internal/cli"
)

func main() {
	if err := cli.BuildCLI().Execute(); err != nil {
		os.Exit(1)
	}
}
