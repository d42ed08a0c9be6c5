package main

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"swarmguard/internal/redisq"
)

// config describes the swarmguardd YAML configuration.
type config struct {
	Policy string `yaml:"policy"`
	Broker string `yaml:"broker"`
	UI     string `yaml:"ui"`
	Redis  struct {
		Addr      string `yaml:"addr"`
		Password  string `yaml:"password"`
		DB        int    `yaml:"db"`
		KeyPrefix string `yaml:"key_prefix"`
	} `yaml:"redis"`
	Mongo struct {
		URI      string `yaml:"uri"`
		Database string `yaml:"database"`
	} `yaml:"mongo"`
	History struct {
		Path string `yaml:"path"`
	} `yaml:"history"`
	HTTP struct {
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"http"`
	Telemetry struct {
		Exporter string        `yaml:"exporter"`
		Interval time.Duration `yaml:"interval"`
	} `yaml:"telemetry"`
	Log struct {
		Level       string `yaml:"level"`
		Output      string `yaml:"output"`
		Development bool   `yaml:"development"`
	} `yaml:"log"`
}

// loadConfig reads and validates the configuration file.
func loadConfig(path string) (config, error) {
	var cfg config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	return parseConfig(data)
}

func parseConfig(data []byte) (config, error) {
	var cfg config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, err
	}
	applyDefaults(&cfg)
	return cfg, validateConfig(cfg)
}

func applyDefaults(cfg *config) {
	if cfg.Policy == "" {
		cfg.Policy = "swarmguard.yaml"
	}
	cfg.Broker = strings.ToLower(strings.TrimSpace(cfg.Broker))
	if cfg.Broker == "" {
		cfg.Broker = "redis"
	}
	if cfg.UI == "" {
		cfg.UI = "auto"
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = redisq.DefaultKeyPrefix
	}
	if cfg.Mongo.Database == "" {
		cfg.Mongo.Database = "swarmguard"
	}
	if cfg.Telemetry.Exporter == "" {
		cfg.Telemetry.Exporter = "none"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stderr"
	}
}

func validateConfig(cfg config) error {
	switch cfg.Broker {
	case "redis":
	case "mongo":
		if cfg.Mongo.URI == "" {
			return fmt.Errorf("mongo.uri is required when broker is mongo")
		}
	default:
		return fmt.Errorf("broker must be redis or mongo, got %q", cfg.Broker)
	}
	if cfg.Redis.DB < 0 {
		return fmt.Errorf("redis.db must be >= 0")
	}
	if cfg.Telemetry.Interval < 0 {
		return fmt.Errorf("telemetry.interval must be >= 0")
	}
	return nil
}
