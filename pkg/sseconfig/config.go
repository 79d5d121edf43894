// Copyright 2026 The gosse Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sseconfig loads the ssecat demo CLI's YAML configuration file
// and bootstraps its zap logger, following the same config-directory and
// development-logger conventions as the project's other cobra commands.
package sseconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

const configFileDir = "ssecat"
const configFileName = "config.yaml"

// Config is the on-disk shape of ~/.config/ssecat/config.yaml.
type Config struct {
	Version       string     `yaml:"version"`
	ActiveContext string     `yaml:"active-context"`
	Contexts      []Endpoint `yaml:"contexts"`
}

// Endpoint is one named SSE source plus its cached auth state.
type Endpoint struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	TokenURL string `yaml:"token-url"`
	CodeURL  string `yaml:"code-url"`
	ClientID string `yaml:"client-id"`

	AccessToken       string    `yaml:"access-token"`
	AccessTokenExpiry time.Time `yaml:"access-token-expiry"`
	RefreshToken      string    `yaml:"refresh-token"`
}

// Load reads the config file from the user's config directory, returning
// an empty Config (not an error) if the file does not yet exist.
func Load() (*Config, error) {
	path, err := configFilePath()
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Config{Version: "1"}, nil
		}
		return nil, fmt.Errorf("sseconfig: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("sseconfig: parse %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes cfg back to the user's config directory, creating it if
// necessary.
func Save(cfg *Config) error {
	path, err := configFilePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("sseconfig: create config dir: %w", err)
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("sseconfig: marshal config: %w", err)
	}
	return os.WriteFile(path, b, 0o600)
}

func configFilePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("sseconfig: locate user config dir: %w", err)
	}
	return filepath.Join(dir, configFileDir, configFileName), nil
}

// ActiveEndpoint returns the Config's active context by name, or nil if
// none is set or matches.
func (c *Config) ActiveEndpoint() *Endpoint {
	for i := range c.Contexts {
		if c.Contexts[i].Name == c.ActiveContext {
			return &c.Contexts[i]
		}
	}
	return nil
}

// NewLogger builds the zap logger ssecat uses throughout: development
// encoder to stdout, level raised to debug when requested.
func NewLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stdout"}
	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	return cfg.Build()
}
