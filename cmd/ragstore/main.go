// Command ragstore is the entry point for the ragstore document search CLI.
// It ingests documents into a local embedding store and retrieves
// diversity-aware passages for retrieval-augmented generation.
package main

import (
	"fmt"
	"os"

	"github.com/recoveryos/ragstore-go/cmd/ragstore/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
