package main

import (
	"os"

	"github.com/monsters-club/lounge/internal/command"
)

func main() {
	// Commands report their own errors.
	if err := command.Execute(); err != nil {
		os.Exit(1)
	}
}
