package main

import (
	"os"

	chronoscmder "github.com/misaka-coder/chronos/cmd/chronos"
)

func main() {
	cmd := chronoscmder.NewChronosCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
