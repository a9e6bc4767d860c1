package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Client configures the command-line client.
type Client struct {
	BaseURL           string        `yaml:"base_url" envconfig:"BASE_URL"`
	Timeout           time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
	StatePath         string        `yaml:"state_path" envconfig:"STATE_PATH"`
	RequestsPerSecond float64       `yaml:"requests_per_second" envconfig:"RPS"`
	Burst             int           `yaml:"burst" envconfig:"BURST"`
	Debug             bool          `yaml:"debug" envconfig:"DEBUG"`
}

func defaultClient() Client {
	dir := ".secondhand"
	if home, err := os.UserHomeDir(); err == nil {
		dir = filepath.Join(home, ".secondhand")
	}
	return Client{
		BaseURL:   "http://localhost:8080/api",
		Timeout:   10 * time.Second,
		StatePath: filepath.Join(dir, "state.db"),
		Burst:     1,
	}
}

// DefaultClientFile is where LoadClient looks when no path is given.
func DefaultClientFile() string {
	return filepath.Join(filepath.Dir(defaultClient().StatePath), "config.yaml")
}

// LoadClient layers defaults, the YAML file (if present) and SECONDHAND_* env vars.
func LoadClient(path string) (Client, error) {
	cfg := defaultClient()
	if path == "" {
		path = DefaultClientFile()
	}
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Client{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return Client{}, fmt.Errorf("read %s: %w", path, err)
	}
	if err := envconfig.Process("secondhand", &cfg); err != nil {
		return Client{}, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return cfg, nil
}
