package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadConfig reads, unmarshals and parses the config file at the
// given path. The format is chosen by the file extension, yaml and
// json are supported.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file at %s: %w", path, err)
	}

	store := &Store{}
	if err := unmarshalStore(data, filepath.Ext(path), store); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", path, err)
	}
	return store.Parse()
}

func unmarshalStore(data []byte, ext string, store *Store) error {
	switch ext {
	case ".yml", ".yaml":
		return yaml.Unmarshal(data, store)
	case ".json":
		return json.Unmarshal(data, store)
	}
	return fmt.Errorf("unsupported config format %q", ext)
}

// SaveStoreTo writes the config store to the given path, in the
// format chosen by the file extension.
func SaveStoreTo(s Store, path string) error {
	var (
		data []byte
		err  error
	)
	switch ext := filepath.Ext(path); ext {
	case ".yml", ".yaml":
		data, err = yaml.Marshal(s)
	case ".json":
		data, err = json.MarshalIndent(s, "", "  ")
	default:
		err = fmt.Errorf("unsupported config format %q", ext)
	}
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config to %s: %w", path, err)
	}
	return nil
}
