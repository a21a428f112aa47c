package main

import (
	"fmt"
	"os"

	"github.com/astralblue/k3l-fcgraph-embeds/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fcembeds: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
