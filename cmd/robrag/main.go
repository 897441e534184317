// Command robrag is the entry point for the personal knowledge assistant.
// It provides a CLI interface (via Cobra) and an optional HTTP server with
// a streaming question-answering API.
package main

import (
	"fmt"
	"os"

	"github.com/mysticfalconvt/rob-rag-sub000/cmd/robrag/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
