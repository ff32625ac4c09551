package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"hotpath/internal/ir"
)

var dumpCmd = &cobra.Command{
	Use:   "dump <trace-file>",
	Short: "Print a recorded trace dump as readable IR",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open trace dump: %w", err)
		}
		defer f.Close()

		t, err := ir.Decode(f)
		if err != nil {
			return err
		}
		return ir.Dump(cmd.OutOrStdout(), t)
	},
}
