package main

import (
	"os"

	"github.com/psantana5/usher/cmd/usher/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
