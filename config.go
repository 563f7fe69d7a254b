package newton

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"

	"github.com/germangb/newton-go/native"
	"github.com/germangb/newton-go/storage"
)

// Config controls world construction. The zero value (and a nil *Config)
// selects the defaults below. Everything here is fixed for the lifetime
// of the World; there is no runtime reconfiguration.
type Config struct {
	// Name tags the world in log output.
	Name string `toml:"name"`

	// Threads is the native solver thread count. 0 uses the hardware
	// concurrency reported by the runtime.
	Threads int `toml:"threads"`

	// SolverModel selects the constraint solver: 0 is the exact solver,
	// n > 0 the iterative solver with n linear passes.
	SolverModel int `toml:"solver_model"`

	// Broadphase selects the broadphase algorithm: "default" or
	// "persistent".
	Broadphase string `toml:"broadphase"`

	// Backend selects the handle registry layout: "dense" (default,
	// O(1) slab lookups, unspecified iteration order) or "ordered"
	// (deterministic insertion-order iteration).
	Backend string `toml:"backend"`

	// Logger receives world lifecycle and consistency-fault events.
	// Defaults to a no-op logger.
	Logger *zap.Logger `toml:"-"`
}

// LoadConfig reads a TOML world configuration. Missing keys keep their
// defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := defaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Name:       "newton",
		Broadphase: "default",
		Backend:    "dense",
	}
}

// normalized fills defaults into a caller-supplied config without
// mutating the caller's value.
func (c *Config) normalized() (Config, error) {
	cfg := Config{}
	if c != nil {
		cfg = *c
	}
	if cfg.Name == "" {
		cfg.Name = "newton"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Threads < 0 {
		return cfg, fmt.Errorf("thread count must be >= 0, got %d", cfg.Threads)
	}
	if cfg.SolverModel < 0 {
		return cfg, fmt.Errorf("solver model must be >= 0, got %d", cfg.SolverModel)
	}
	if _, err := cfg.backend(); err != nil {
		return cfg, err
	}
	if _, err := cfg.broadphase(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) backend() (storage.Backend, error) {
	return storage.ParseBackend(c.Backend)
}

func (c *Config) broadphase() (int32, error) {
	switch c.Broadphase {
	case "", "default":
		return native.BroadphaseDefault, nil
	case "persistent":
		return native.BroadphasePersistent, nil
	default:
		return 0, fmt.Errorf("unknown broadphase %q", c.Broadphase)
	}
}
