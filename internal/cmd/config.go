package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the process configuration. Values come from the yaml file
// with environment variables taking precedence.
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Game struct {
		InitialTimeSec   int `yaml:"initial_time_sec"`
		SweepIntervalSec int `yaml:"sweep_interval_sec"`
	} `yaml:"game"`
	NATS struct {
		URL string `yaml:"url"`
	} `yaml:"nats"`
}

func loadConfig(path string) (*Config, error) {
	var config Config

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if v := os.Getenv("PORT"); v != "" {
		config.Server.Port = v
	}
	if config.Server.Port == "" {
		config.Server.Port = "8080"
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		config.NATS.URL = v
	}
	if config.Game.InitialTimeSec == 0 {
		config.Game.InitialTimeSec = 600
	}
	if config.Game.SweepIntervalSec == 0 {
		config.Game.SweepIntervalSec = 1
	}

	return &config, nil
}

func (c *Config) InitialTime() time.Duration {
	return time.Duration(c.Game.InitialTimeSec) * time.Second
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Game.SweepIntervalSec) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

