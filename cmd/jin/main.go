// Command jin is the CLI entrypoint: a thin cobra wrapper over the core
// engine packages under internal/. It carries no business logic of its
// own — every operation here is argument parsing, environment wiring, and
// result rendering.
package main

import (
	"fmt"
	"os"

	"github.com/dabstractor/jin/internal/jinerr"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if hint := jinerr.Hint(err); hint != "" {
			fmt.Fprintf(os.Stderr, "hint: %s\n", hint)
		}
		os.Exit(1)
	}
}
