// ABOUTME: Entry point for the engage CLI and MCP server
// ABOUTME: Hands argument parsing to the cobra command tree in cli
package main

import (
	"fmt"
	"os"

	"github.com/harperreed/engage/cli"
)

const version = "0.1.0"

func main() {
	if err := cli.Execute(version); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
