// Command actionplan plans, runs and inspects action trees.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/actionplan/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
