// Command tinydb is a non-interactive batch CLI over the tinydb facade:
// run a SQL script against a database file, or print its SHOW STATS row.
// It is a scriptable wrapper, not a REPL — no line-editing, no
// continuation prompts, no interactive session.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
