// Command docqa ingests documents into a vector store and answers questions
// grounded in them, over HTTP, MCP or the command line.
package main

import (
	"fmt"
	"os"

	"github.com/calque-ai/docqa/cmd/docqa/commands"
)

// Set by the release build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersion(version, commit, date)

	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
