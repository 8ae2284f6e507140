// Command recordmanager harvests and enriches metadata from OAI-PMH
// data sources.
package main

import (
	"fmt"
	"os"

	"github.com/mshroom/RecordManager/internal/cli"
)

func main() {
	root := cli.NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
