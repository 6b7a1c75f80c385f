package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DefaultTTL    string        `yaml:"defaultTTL"`
	CollectionTTL string        `yaml:"collectionTTL"`
	HeaderName    string        `yaml:"headerName"`
	UserHeader    string        `yaml:"userHeader"`
	MaxDepth      int           `yaml:"maxDepth"`
	Routes        []ConfigRoute `yaml:"routes"`
}

type ConfigRoute struct {
	Path          string   `yaml:"path"`
	Method        string   `yaml:"method"`
	TTL           string   `yaml:"ttl"`
	Collection    bool     `yaml:"collection"`
	PerUser       bool     `yaml:"perUser"`
	AllowedFields []string `yaml:"allowedFields"`
	Invalidate    []string `yaml:"invalidate"`
}

func getConfig(filename string) (Config, error) {
	var config Config
	configBytes, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}
	err = yaml.Unmarshal(configBytes, &config)
	return config, err
}

// parseTTL reads a duration string, treating the empty string as zero
// so unset config values fall back to defaults.
func parseTTL(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return d, nil
}
