package main

import (
	"os"

	"github.com/wonny/vnvalue/cmd/vnval/commands"
)

// main is the entry point for the vnval CLI
// ⭐ Single CLI entry point: go run ./cmd/vnval [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
