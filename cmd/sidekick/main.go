package main

import (
	"os"

	"sidekick/cmd/sidekick/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
