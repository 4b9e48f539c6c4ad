// Command ntctl serves, inspects and edits network table instances.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/ntcore/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ntctl:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
