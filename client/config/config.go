// Package config loads client settings from YAML.
package config

import (
	"os"
	"time"

	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"

	"github.com/DianaJonathan/timecapsule/actors/builtin"
	"github.com/DianaJonathan/timecapsule/client/chunk"
	"github.com/DianaJonathan/timecapsule/client/ledger"
	"github.com/DianaJonathan/timecapsule/client/session"
)

type PollConfig struct {
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
}

type Config struct {
	Network string `yaml:"network"`
	// Actor IDs of the capsule stores installed at genesis. The first one is used by the client.
	Stores          []uint64      `yaml:"stores"`
	BlockTime       time.Duration `yaml:"block_time"`
	MaxPayloadBytes int           `yaml:"max_payload_bytes"`
	SessionDuration time.Duration `yaml:"session_duration"`
	Poll            PollConfig    `yaml:"poll"`
	// Badger directory for chain state. Empty keeps state in memory.
	DataDir string `yaml:"data_dir,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		Network:         "capsulenet",
		Stores:          []uint64{builtin.FirstNonSingletonActorId},
		BlockTime:       2 * time.Second,
		MaxPayloadBytes: chunk.MaxPayloadBytes,
		SessionDuration: session.DefaultDuration,
		Poll: PollConfig{
			InitialInterval: ledger.DefaultPollPolicy.InitialInterval,
			MaxInterval:     ledger.DefaultPollPolicy.MaxInterval,
		},
	}
}

// Parse reads YAML over the defaults. Keys absent from data keep their default values.
func Parse(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, xerrors.Errorf("invalid config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, xerrors.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

func (c Config) Validate() error {
	if c.Network == "" {
		return xerrors.New("network must be set")
	}
	if len(c.Stores) == 0 {
		return xerrors.New("at least one capsule store is required")
	}
	for _, id := range c.Stores {
		if id < builtin.FirstNonSingletonActorId {
			return xerrors.Errorf("store id %d collides with a singleton actor", id)
		}
	}
	if c.MaxPayloadBytes <= 0 || c.MaxPayloadBytes > chunk.MaxPayloadBytes {
		return xerrors.Errorf("max_payload_bytes must be in 1..%d, got %d", chunk.MaxPayloadBytes, c.MaxPayloadBytes)
	}
	if c.BlockTime <= 0 || c.SessionDuration <= 0 {
		return xerrors.New("block_time and session_duration must be positive")
	}
	if c.Poll.InitialInterval <= 0 || c.Poll.MaxInterval < c.Poll.InitialInterval {
		return xerrors.Errorf("invalid poll intervals %s..%s", c.Poll.InitialInterval, c.Poll.MaxInterval)
	}
	return nil
}

func (c Config) PollPolicy() ledger.PollPolicy {
	return ledger.PollPolicy{InitialInterval: c.Poll.InitialInterval, MaxInterval: c.Poll.MaxInterval}
}

// Marshal renders the config as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
