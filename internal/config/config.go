// Package config loads jitkit.toml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"jitkit/internal/layout"
	"jitkit/internal/trace"
)

// FileName is the configuration file looked up by Find.
const FileName = "jitkit.toml"

// Config mirrors jitkit.toml.
type Config struct {
	Target  TargetSection  `toml:"target"`
	Trace   TraceSection   `toml:"trace"`
	Engine  EngineSection  `toml:"engine"`
	Cache   CacheSection   `toml:"cache"`
	Natives NativesSection `toml:"natives"`

	// Path is the file the config was read from, empty for defaults.
	Path string `toml:"-"`
}

type TargetSection struct {
	Triple string `toml:"triple"`
}

type TraceSection struct {
	Level    string `toml:"level"`
	Mode     string `toml:"mode"`
	Format   string `toml:"format"`
	Output   string `toml:"output"`
	RingSize int    `toml:"ring_size"`
}

type EngineSection struct {
	MaxSteps int64 `toml:"max_steps"`
	MaxDepth int   `toml:"max_depth"`
}

type CacheSection struct {
	Dir string `toml:"dir"`
}

type NativesSection struct {
	Disabled []string `toml:"disabled"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Target: TargetSection{Triple: layout.X86_64LinuxGNU().Triple},
		Trace: TraceSection{
			Level:    "off",
			Mode:     "stream",
			Format:   "auto",
			Output:   "-",
			RingSize: 4096,
		},
	}
}

// Find walks up from startDir looking for jitkit.toml.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Load reads path over the defaults; keys the file leaves out keep their
// default values.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if meta.IsDefined("target", "triple") && strings.TrimSpace(cfg.Target.Triple) == "" {
		return Config{}, fmt.Errorf("%s: [target].triple is empty", path)
	}
	cfg.Path = path
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Discover loads the nearest jitkit.toml above startDir, or the defaults
// when there is none.
func Discover(startDir string) (Config, error) {
	path, ok, err := Find(startDir)
	if err != nil {
		return Config{}, err
	}
	if !ok {
		return Default(), nil
	}
	return Load(path)
}

// Validate checks every enumerated field.
func (c Config) Validate() error {
	if _, err := c.TargetLayout(); err != nil {
		return err
	}
	if _, err := c.TraceConfig(); err != nil {
		return err
	}
	if c.Engine.MaxSteps < 0 {
		return fmt.Errorf("[engine].max_steps must not be negative, got %d", c.Engine.MaxSteps)
	}
	if c.Engine.MaxDepth < 0 {
		return fmt.Errorf("[engine].max_depth must not be negative, got %d", c.Engine.MaxDepth)
	}
	return nil
}

// TargetLayout resolves [target].triple.
func (c Config) TargetLayout() (layout.Target, error) {
	t, err := layout.ParseTarget(c.Target.Triple)
	if err != nil {
		return layout.Target{}, fmt.Errorf("[target].triple: %w", err)
	}
	return t, nil
}

// TraceConfig converts [trace] into a tracer configuration.
func (c Config) TraceConfig() (trace.Config, error) {
	level, err := trace.ParseLevel(c.Trace.Level)
	if err != nil {
		return trace.Config{}, fmt.Errorf("[trace].level: %w", err)
	}
	mode, err := trace.ParseMode(c.Trace.Mode)
	if err != nil {
		return trace.Config{}, fmt.Errorf("[trace].mode: %w", err)
	}
	format, err := trace.ParseFormat(c.Trace.Format)
	if err != nil {
		return trace.Config{}, fmt.Errorf("[trace].format: %w", err)
	}
	if c.Trace.RingSize < 0 {
		return trace.Config{}, fmt.Errorf("[trace].ring_size must not be negative, got %d", c.Trace.RingSize)
	}
	return trace.Config{
		Level:      level,
		Mode:       mode,
		Format:     format,
		OutputPath: c.Trace.Output,
		RingSize:   c.Trace.RingSize,
	}, nil
}
