// record-files manages the files attached to a record from the command line.
package main

import (
	"os"

	"github.com/rescale/record-files/internal/cli"
)

func main() {
	// cobra has already printed the error
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
