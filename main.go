package main

import (
	"os"

	"github.com/spigell/edge-shortlister/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
