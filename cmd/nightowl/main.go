package main

import (
	"os"

	"github.com/haoqf/nightowl/cmd/nightowl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
