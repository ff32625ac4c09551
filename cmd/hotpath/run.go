package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"hotpath/internal/mt"
)

var runCmd = &cobra.Command{
	Use:   "run [flags] <scenario>",
	Short: "Run an instrumented demo program through the engine",
	Long:  `Run one of the built-in demo scenarios through the meta-tracing engine. Use --list to see what is available.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runScenario,
}

func init() {
	runCmd.Flags().Uint32("hot-threshold", 0, "override the hot threshold")
	runCmd.Flags().Bool("serialise", false, "compile on the calling goroutine (deterministic)")
	runCmd.Flags().Bool("list", false, "list available scenarios")
	runCmd.Flags().String("dump-trace", "", "write each closed recording to FILE (inspect with 'hotpath dump')")
}

func runScenario(cmd *cobra.Command, args []string) error {
	if list, _ := cmd.Flags().GetBool("list"); list {
		for _, sc := range scenarios {
			fmt.Fprintf(cmd.OutOrStdout(), "%-12s %s\n", sc.name, sc.summary)
		}
		return nil
	}
	if len(args) != 1 {
		return fmt.Errorf("expected a scenario name (see --list)")
	}

	sc, ok := findScenario(args[0])
	if !ok {
		return fmt.Errorf("unknown scenario %q (see --list)", args[0])
	}

	cfg, tr, err := setupEvents(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = tr.Close() }()

	cfg.Engine.HotThreshold = sc.threshold
	if cmd.Flags().Changed("hot-threshold") {
		cfg.Engine.HotThreshold, _ = cmd.Flags().GetUint32("hot-threshold")
	}
	if serialise, _ := cmd.Flags().GetBool("serialise"); serialise {
		cfg.Engine.SerialiseCompilation = true
	}

	m, err := mt.New(cfg, tr)
	if err != nil {
		return err
	}
	if path, _ := cmd.Flags().GetString("dump-trace"); path != "" {
		m.SetTraceDump(path)
	}

	runErr := sc.run(cmd.OutOrStdout(), m)

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()
	if err := m.Shutdown(ctx); err != nil {
		return fmt.Errorf("engine shutdown: %w", err)
	}
	return runErr
}
