package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/IEBH/statesync/host/natshost"
)

// FileConfig is the YAML file configuration for the service
type FileConfig struct {
	NATS   NATSConfig   `yaml:"nats"`
	Engine EngineConfig `yaml:"engine"`
	Stores []StoreSpec  `yaml:"stores"`
	HTTP   HTTPConfig   `yaml:"http"`
}

// NATSConfig holds the backing store connection settings
type NATSConfig struct {
	URL              string        `yaml:"url"`
	DocumentsBucket  string        `yaml:"documents_bucket"`
	MetadataBucket   string        `yaml:"metadata_bucket"`
	ProjectID        string        `yaml:"project_id"`
	UserID           string        `yaml:"user_id"`
	ConnectTimeout   time.Duration `yaml:"connect_timeout"`
	OperationTimeout time.Duration `yaml:"operation_timeout"`
}

// EngineConfig holds the sync engine settings
type EngineConfig struct {
	KeyPrefix        string        `yaml:"key_prefix"`
	PerUserState     bool          `yaml:"per_user_state"`
	AutoSaveInterval time.Duration `yaml:"auto_save_interval"`
}

// StoreSpec declares one observable store the service hosts
type StoreSpec struct {
	ID      string         `yaml:"id"`
	Initial map[string]any `yaml:"initial"`
}

// HTTPConfig holds the API server settings
type HTTPConfig struct {
	Listen          string        `yaml:"listen"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

func loadConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &FileConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(cfg)
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *FileConfig) {
	if cfg.NATS.DocumentsBucket == "" {
		cfg.NATS.DocumentsBucket = "statesync-docs"
	}
	if cfg.NATS.MetadataBucket == "" {
		cfg.NATS.MetadataBucket = "statesync-meta"
	}
	if cfg.Engine.KeyPrefix == "" {
		cfg.Engine.KeyPrefix = "statesync"
	}
	if cfg.HTTP.Listen == "" {
		cfg.HTTP.Listen = ":8080"
	}
	if cfg.HTTP.ShutdownTimeout <= 0 {
		cfg.HTTP.ShutdownTimeout = 10 * time.Second
	}
}

func validateConfig(cfg *FileConfig) error {
	if len(cfg.Stores) == 0 {
		return fmt.Errorf("config: at least one store required")
	}
	seen := make(map[string]bool, len(cfg.Stores))
	for i, spec := range cfg.Stores {
		if spec.ID == "" {
			return fmt.Errorf("config: stores[%d] has no id", i)
		}
		if seen[spec.ID] {
			return fmt.Errorf("config: duplicate store id %q", spec.ID)
		}
		seen[spec.ID] = true
	}

	// The NATS host config carries its own validation
	return cfg.natsConfig().Validate()
}

func (cfg *FileConfig) natsConfig() natshost.Config {
	return natshost.Config{
		URL:              cfg.NATS.URL,
		DocumentsBucket:  cfg.NATS.DocumentsBucket,
		MetadataBucket:   cfg.NATS.MetadataBucket,
		ProjectID:        cfg.NATS.ProjectID,
		UserID:           cfg.NATS.UserID,
		ConnectTimeout:   cfg.NATS.ConnectTimeout,
		OperationTimeout: cfg.NATS.OperationTimeout,
	}
}
