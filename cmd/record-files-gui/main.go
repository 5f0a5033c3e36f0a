// record-files-gui shows a record's file list in a desktop window.
//
// Usage: record-files-gui [--config path] [--env-file path]
package main

import (
	"fmt"
	"os"

	"github.com/rescale/record-files/internal/gui"
)

func main() {
	if err := gui.Run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
