package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"hotpath/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "hotpath",
	Short: "Meta-tracing JIT engine demo and trace tools",
	Long:  `hotpath runs instrumented demo programs through the meta-tracing engine and inspects recorded traces`,
}

// main initializes the CLI by setting the command version, registering
// subcommands and persistent flags, and then executes the root command.
// If command execution returns an error, the process exits with status code 1.
func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("config", "", "path to a TOML configuration file")
	rootCmd.PersistentFlags().String("events", "", "event stream output path (\"-\" for stderr)")
	rootCmd.PersistentFlags().String("events-level", "", "event level (off|error|event|debug)")
	rootCmd.PersistentFlags().String("events-mode", "", "event storage mode (stream|ring|both)")
	rootCmd.PersistentFlags().String("events-format", "", "event format (auto|text|ndjson)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
