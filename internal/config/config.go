// Package config reads and writes ~/.chatline/config.toml.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Defaults applied by Config.Profile.
const (
	DefaultPageSize          = 30
	DefaultLogLevel          = "info"
	DefaultImageMaxDimension = 1600
)

// Config is the global config file.
type Config struct {
	DefaultProfile string             `toml:"default_profile"`
	Profiles       map[string]Profile `toml:"profiles"`
}

// Profile holds the backend account one chatline profile signs in as.
type Profile struct {
	BaseURL           string `toml:"base_url"`
	WSURL             string `toml:"ws_url"`
	Token             string `toml:"token"`
	UserID            string `toml:"user_id"`
	Username          string `toml:"username"`
	PageSize          int    `toml:"page_size,omitempty"`
	LogLevel          string `toml:"log_level,omitempty"`
	ImageMaxDimension int    `toml:"image_max_dimension,omitempty"`
}

// Load reads config from the given path. Returns nil config and error if file missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// Profile returns the named profile with defaults filled in.
func (c *Config) Profile(name string) (Profile, error) {
	p, ok := c.Profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("profile %q not found in config", name)
	}
	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}
	if p.LogLevel == "" {
		p.LogLevel = DefaultLogLevel
	}
	if p.ImageMaxDimension <= 0 {
		p.ImageMaxDimension = DefaultImageMaxDimension
	}
	if err := p.Validate(); err != nil {
		return Profile{}, fmt.Errorf("profile %q: %w", name, err)
	}
	return p, nil
}

// Validate checks the fields a client cannot work without.
func (p Profile) Validate() error {
	u, err := url.Parse(p.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("base_url %q is not an absolute URL", p.BaseURL)
	}
	if p.WSURL != "" {
		w, err := url.Parse(p.WSURL)
		if err != nil || (w.Scheme != "ws" && w.Scheme != "wss") {
			return fmt.Errorf("ws_url %q must use ws or wss", p.WSURL)
		}
	}
	if p.Username == "" {
		return fmt.Errorf("username is required")
	}
	return nil
}
