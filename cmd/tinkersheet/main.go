// Command tinkersheet serves and publishes markdown documents with embedded
// spreadsheet blocks.
package main

import (
	"os"

	"github.com/livetemplate/tinkersheet/cmd/tinkersheet/commands"
)

const version = "0.1.0-dev"

func main() {
	if err := commands.NewRootCmd(version).Execute(); err != nil {
		os.Exit(1)
	}
}
