package config

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/ntcore/internal/engine"
	"github.com/roach88/ntcore/internal/nt"
	"github.com/roach88/ntcore/internal/store"
)

//go:embed schema.cue
var schemaCUE string

// Modes.
const (
	ModeStandalone = "standalone"
	ModeServer     = "server"
	ModeClient     = "client"
)

// Defaults applied by Load.
const (
	DefaultUpdateRate = 0.1
	DefaultLogLevel   = "info"
	MinUpdateRate     = 0.01
	MaxUpdateRate     = 1.0
)

// Config describes how an instance is set up.
type Config struct {
	Identity   string       `yaml:"identity" json:"identity,omitempty"`
	Mode       string       `yaml:"mode" json:"mode,omitempty"`
	Server     ServerConfig `yaml:"server" json:"server,omitempty"`
	Client     ClientConfig `yaml:"client" json:"client,omitempty"`
	UpdateRate float64      `yaml:"update_rate" json:"update_rate,omitempty"`
	LogLevel   string       `yaml:"log_level" json:"log_level,omitempty"`
}

type ServerConfig struct {
	ListenAddress string `yaml:"listen_address" json:"listen_address,omitempty"`
	Port          int    `yaml:"port" json:"port,omitempty"`
	PersistFile   string `yaml:"persist_file" json:"persist_file,omitempty"`
}

type ClientConfig struct {
	Servers []string `yaml:"servers" json:"servers,omitempty"`
	Team    int      `yaml:"team" json:"team,omitempty"`
	Port    int      `yaml:"port" json:"port,omitempty"`
}

// Default returns a standalone configuration with every default set.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeStandalone
	}
	if c.Server.Port == 0 {
		c.Server.Port = nt.DefaultPort
	}
	if c.Mode == ModeServer && c.Server.PersistFile == "" {
		c.Server.PersistFile = nt.DefaultPersistFile
	}
	if c.UpdateRate == 0 {
		c.UpdateRate = DefaultUpdateRate
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
}

// Load reads a configuration file, applies defaults and validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg *Config
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		cfg, err = ParseYAML(data)
	case ".cue":
		cfg, err = ParseCUE(path, data)
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}
	if err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid config %s: %w", path, errs)
	}
	return cfg, nil
}

// ParseYAML decodes YAML configuration data and applies defaults.
// Unknown fields are rejected.
func ParseYAML(data []byte) (*Config, error) {
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// ParseCUE compiles CUE configuration data, unifies it with the config
// schema and applies defaults. filename is used in error positions.
func ParseCUE(filename string, data []byte) (*Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue")).LookupPath(cue.ParsePath("#Config"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("config schema: %w", err)
	}

	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse CUE: %s", cueerrors.Details(err, nil))
	}

	v = schema.Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("failed to validate CUE: %s", cueerrors.Details(err, nil))
	}

	var cfg Config
	if err := v.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode CUE: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// ServerPorts resolves Client.Servers. A server without a port uses
// Client.Port.
func (c *Config) ServerPorts() ([]nt.ServerPort, error) {
	out := make([]nt.ServerPort, 0, len(c.Client.Servers))
	for _, s := range c.Client.Servers {
		sp, err := nt.ParseServer(s)
		if err != nil {
			return nil, err
		}
		if sp.Port == 0 {
			sp.Port = c.Client.Port
		}
		out = append(out, sp)
	}
	return out, nil
}

// Level returns the minimum level for engine log messages.
func (c *Config) Level() nt.LogLevel {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return engine.LogDebug
	case "warn", "warning":
		return engine.LogWarning
	case "error":
		return engine.LogError
	case "critical":
		return engine.LogCritical
	default:
		return engine.LogInfo
	}
}

// SlogLevel is Level for the process logger.
func (c *Config) SlogLevel() slog.Level {
	switch c.Level() {
	case engine.LogDebug:
		return slog.LevelDebug
	case engine.LogWarning:
		return slog.LevelWarn
	case engine.LogError, engine.LogCritical:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Apply configures inst: identity, update rate, then the network role.
// In standalone mode an existing Server.PersistFile is loaded.
func (c *Config) Apply(ctx context.Context, inst *nt.Instance) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if c.Identity != "" {
		inst.SetNetworkIdentity(c.Identity)
	}
	inst.SetUpdateRate(c.UpdateRate)

	switch c.Mode {
	case ModeServer:
		if err := inst.StartServer(
			nt.WithPersistFile(c.Server.PersistFile),
			nt.WithListenAddress(c.Server.ListenAddress),
			nt.WithPort(c.Server.Port),
		); err != nil {
			return fmt.Errorf("apply config: %w", err)
		}
		slog.Info("server started", "listen_address", c.Server.ListenAddress, "port", c.Server.Port)
	case ModeClient:
		if c.Client.Team > 0 {
			if err := inst.StartClientTeam(c.Client.Team, c.Client.Port); err != nil {
				return fmt.Errorf("apply config: %w", err)
			}
			slog.Info("client started", "team", c.Client.Team)
			return nil
		}
		servers, err := c.ServerPorts()
		if err != nil {
			return fmt.Errorf("apply config: %w", err)
		}
		if err := inst.StartClient(servers...); err != nil {
			return fmt.Errorf("apply config: %w", err)
		}
		slog.Info("client started", "servers", len(servers))
	default:
		if c.Server.PersistFile == "" || !store.Exists(c.Server.PersistFile) {
			return nil
		}
		warnings, err := inst.LoadPersistent(ctx, c.Server.PersistFile)
		if err != nil {
			return fmt.Errorf("apply config: %w", err)
		}
		for _, w := range warnings {
			slog.Warn("persist file", "path", c.Server.PersistFile, "warning", w)
		}
	}
	return nil
}
