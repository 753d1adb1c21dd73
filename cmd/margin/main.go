package main

import (
	"os"

	"github.com/rustyeddy/margin/cmd/margin/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
