package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Auth struct {
		InactivityWindow string `yaml:"inactivity_window"` // default 1h
		CacheTTL         string `yaml:"cache_ttl"`         // default 30s
	} `yaml:"auth"`
	Sweep struct {
		FinalizeInterval string `yaml:"finalize_interval"` // default 1m
		CleanupInterval  string `yaml:"cleanup_interval"`  // default 1h
		LeaseTTL         string `yaml:"lease_ttl"`         // default 1m
	} `yaml:"sweep"`
	Questions struct {
		CacheTTL string `yaml:"cache_ttl"` // default 10m
	} `yaml:"questions"`
	Stats struct {
		// "questions" keeps the legacy completion-rate denominator,
		// "students" divides by active registered students
		CompletionDenominator string `yaml:"completion_denominator"`
	} `yaml:"stats"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
