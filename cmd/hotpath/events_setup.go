package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"hotpath/internal/config"
	"hotpath/internal/events"
)

// setupEvents loads the configuration and initializes the event stream.
// Persistent flags override the file and environment values.
func setupEvents(cmd *cobra.Command) (config.Config, events.Tracer, error) {
	root := cmd.Root()

	configPath, err := root.PersistentFlags().GetString("config")
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("failed to get config flag: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, nil, err
	}

	if s, _ := root.PersistentFlags().GetString("events"); s != "" {
		cfg.Events.Output = s
		if cfg.Events.Level == "off" {
			cfg.Events.Level = "event"
		}
	}
	if s, _ := root.PersistentFlags().GetString("events-level"); s != "" {
		cfg.Events.Level = s
	}
	if s, _ := root.PersistentFlags().GetString("events-mode"); s != "" {
		cfg.Events.Mode = s
	}
	if s, _ := root.PersistentFlags().GetString("events-format"); s != "" {
		cfg.Events.Format = s
	}
	if err := cfg.Validate(); err != nil {
		return cfg, nil, err
	}

	evCfg, err := cfg.EventConfig()
	if err != nil {
		return cfg, nil, err
	}
	tr, err := events.New(evCfg)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, tr, nil
}
