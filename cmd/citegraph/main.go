// Package main provides the citegraph command line tool.
//
// citegraph run walks the Papers with Code catalog and builds the citation
// graph, checkpointing the dataset after every page. citegraph stats prints
// the counters of a snapshot file and the page a resumed run starts from.
// citegraph migrate manages the schema of the optional PostgreSQL mirror.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	// A missing .env file is fine; the environment and config file still apply.
	_ = godotenv.Load()

	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "citegraph",
		Short:         "Build a citation graph from the Papers with Code catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCommand(), newStatsCommand(), newMigrateCommand())
	return root
}
