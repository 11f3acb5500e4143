package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"
)

// DefaultSettingsFile is where the CLI keeps its connection settings.
const DefaultSettingsFile = "channelcheck.yaml"

// Settings is the CLI's persisted connection info.
type Settings struct {
	ServerURL string `yaml:"server_url"`
	APIKey    string `yaml:"api_key"`
	Username  string `yaml:"username,omitempty"`
}

// LoadSettings reads path. A missing file yields zero Settings and no error.
func LoadSettings(path string) (Settings, error) {
	var s Settings
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("read settings: %w", err)
	}
	if err := yaml.Unmarshal(b, &s); err != nil {
		return s, fmt.Errorf("parse settings %s: %w", path, err)
	}
	return s, nil
}

// SaveSettings writes path atomically with owner-only permissions.
func SaveSettings(path string, s Settings) error {
	b, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := renameio.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

// Merge fills empty fields of s from fallback.
func (s Settings) Merge(fallback Settings) Settings {
	if s.ServerURL == "" {
		s.ServerURL = fallback.ServerURL
	}
	if s.APIKey == "" {
		s.APIKey = fallback.APIKey
	}
	if s.Username == "" {
		s.Username = fallback.Username
	}
	return s
}

// Settings returns the connection fields carried by the environment.
func (c Config) Settings() Settings {
	return Settings{ServerURL: c.DispatcharrURL, APIKey: c.DispatcharrAPIKey, Username: c.DispatcharrUsername}
}
