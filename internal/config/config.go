// Package config holds engine and event-stream configuration. Configuration
// errors are rejected here, before any control-point call is made.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"

	"github.com/BurntSushi/toml"

	"hotpath/internal/events"
)

// Environment overrides, applied on top of file/flag values.
const (
	EnvHotThreshold         = "HOTPATH_HOT_THRESHOLD"
	EnvSerialiseCompilation = "HOTPATH_SERIALISE_COMPILATION"
	EnvEventLevel           = "HOTPATH_EVENT_LEVEL"
)

// DefaultHotThreshold is how many times a location must be reached before
// tracing begins. Zero means the very first call starts tracing.
const DefaultHotThreshold = 131

// DefaultTraceFailureThreshold is how many times tracing or compilation of a
// location may fail before the location is marked do-not-trace.
const DefaultTraceFailureThreshold = 5

// DefaultMaxTraceOps bounds recorded trace length; recording aborts beyond it.
const DefaultMaxTraceOps = 20000

// Engine configures the meta-tracer core.
type Engine struct {
	// HotThreshold is the hotness count at which tracing starts.
	HotThreshold uint32 `toml:"hot_threshold"`
	// SerialiseCompilation forces compilation on the goroutine that closed
	// the trace, which makes test runs deterministic.
	SerialiseCompilation bool `toml:"serialise_compilation"`
	// CompileWorkers caps concurrent background compilations.
	CompileWorkers int `toml:"compile_workers"`
	// TraceFailureThreshold is the give-up point for a failing location.
	TraceFailureThreshold uint16 `toml:"trace_failure_threshold"`
	// MaxTraceOps bounds recorded trace length.
	MaxTraceOps int `toml:"max_trace_ops"`
}

// Events configures the diagnostic event stream.
type Events struct {
	Level    string `toml:"level"`     // off|error|event|debug
	Mode     string `toml:"mode"`      // stream|ring|both
	Format   string `toml:"format"`    // auto|text|ndjson
	Output   string `toml:"output"`    // file path, "-" for stderr
	RingSize int    `toml:"ring_size"` // ring capacity
}

// Config is the root configuration.
type Config struct {
	Engine Engine `toml:"engine"`
	Events Events `toml:"events"`
}

// Default returns the configuration used when nothing is specified.
func Default() Config {
	return Config{
		Engine: Engine{
			HotThreshold:          DefaultHotThreshold,
			CompileWorkers:        max(1, runtime.GOMAXPROCS(0)-1),
			TraceFailureThreshold: DefaultTraceFailureThreshold,
			MaxTraceOps:           DefaultMaxTraceOps,
		},
		Events: Events{
			Level:  "off",
			Mode:   "stream",
			Format: "auto",
			Output: "-",
		},
	}
}

// Load reads a TOML config file over the defaults and applies environment
// overrides. An empty path skips the file and still applies the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		meta, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return cfg, fmt.Errorf("config %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return cfg, fmt.Errorf("config %s: unknown key %q", path, undecoded[0].String())
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if s, ok := os.LookupEnv(EnvHotThreshold); ok {
		v, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvHotThreshold, s, err)
		}
		c.Engine.HotThreshold = uint32(v)
	}
	if s, ok := os.LookupEnv(EnvSerialiseCompilation); ok {
		c.Engine.SerialiseCompilation = s == "1" || s == "true"
	}
	if s, ok := os.LookupEnv(EnvEventLevel); ok {
		c.Events.Level = s
	}
	return nil
}

// Validate rejects configurations the engine must never run with.
func (c *Config) Validate() error {
	if c.Engine.CompileWorkers < 1 {
		return fmt.Errorf("engine.compile_workers must be >= 1, got %d", c.Engine.CompileWorkers)
	}
	if c.Engine.TraceFailureThreshold < 1 {
		return fmt.Errorf("engine.trace_failure_threshold must be >= 1, got %d", c.Engine.TraceFailureThreshold)
	}
	if c.Engine.MaxTraceOps < 1 {
		return fmt.Errorf("engine.max_trace_ops must be >= 1, got %d", c.Engine.MaxTraceOps)
	}
	if _, err := events.ParseLevel(c.Events.Level); err != nil {
		return err
	}
	if _, err := events.ParseMode(c.Events.Mode); err != nil {
		return err
	}
	if _, err := events.ParseFormat(c.Events.Format); err != nil {
		return err
	}
	if c.Events.RingSize < 0 {
		return fmt.Errorf("events.ring_size must be >= 0, got %d", c.Events.RingSize)
	}
	return nil
}

// EventConfig converts the events section into an events.Config.
func (c *Config) EventConfig() (events.Config, error) {
	level, err := events.ParseLevel(c.Events.Level)
	if err != nil {
		return events.Config{}, err
	}
	mode, err := events.ParseMode(c.Events.Mode)
	if err != nil {
		return events.Config{}, err
	}
	format, err := events.ParseFormat(c.Events.Format)
	if err != nil {
		return events.Config{}, err
	}
	return events.Config{
		Level:      level,
		Mode:       mode,
		Format:     format,
		OutputPath: c.Events.Output,
		RingSize:   c.Events.RingSize,
	}, nil
}
