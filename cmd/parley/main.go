// Parley is a data-driven dialogue engine for text games.
// Usage: parley [--config file] play [--plain] [--script file] [--trace] [content_dir]
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "parley: %v\n", err)
		os.Exit(1)
	}
}

// rootOptions holds global flags for all commands.
type rootOptions struct {
	configPath string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "parley",
		Short:         "Parley - branching NPC conversations",
		Long:          "Play and validate dialogue content written in Lua or YAML.",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a YAML configuration file")

	cmd.AddCommand(newPlayCommand(opts))
	cmd.AddCommand(newValidateCommand(opts))
	cmd.AddCommand(newSavesCommand(opts))

	return cmd
}
