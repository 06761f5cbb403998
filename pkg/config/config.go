package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

// Config carries everything the CLI and packages need. Values are resolved
// in three layers: struct defaults, then the YAML config file (if present),
// then HONDANA_-prefixed environment variables.
type Config struct {
	APIBaseURL  string        `koanf:"api_base_url" default:"http://127.0.0.1:3690"`
	APIToken    string        `koanf:"api_token"`
	HTTPTimeout time.Duration `koanf:"http_timeout" default:"15s"`

	DataDir                   string        `koanf:"data_dir"`
	DatabaseFilePath          string        `koanf:"database_file_path"`
	DatabaseDebug             bool          `koanf:"database_debug"`
	DatabaseConnectRetryCount int           `koanf:"database_connect_retry_count" default:"5"`
	DatabaseConnectRetryDelay time.Duration `koanf:"database_connect_retry_delay" default:"2s"`
	DatabaseBusyTimeout       time.Duration `koanf:"database_busy_timeout" default:"5s"`
	DatabaseMaxRetries        int           `koanf:"database_max_retries" default:"3"`

	MockServerHost string `koanf:"mock_server_host" default:"127.0.0.1"`
	MockServerPort int    `koanf:"mock_server_port" default:"3690"`
	MockJWTSecret  string `koanf:"mock_jwt_secret" default:"hondana-dev-secret"`

	Hostname string `koanf:"-"`
}

const envPrefix = "HONDANA_"

// New loads the configuration. A missing config file is not an error; the
// defaults plus environment are enough for every command.
func New() (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, errors.WithStack(err)
	}

	k := koanf.New(".")

	path := configFilePath()
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "failed to load config file: %s", path)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, errors.WithStack(err)
	}

	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, errors.WithStack(err)
	}

	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir()
	}
	if cfg.DatabaseFilePath == "" {
		cfg.DatabaseFilePath = filepath.Join(cfg.DataDir, "cart.sqlite")
	}

	hostname, err := os.Hostname()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	cfg.Hostname = hostname

	return cfg, nil
}

func configFilePath() string {
	if path := os.Getenv("HONDANA_CONFIG_FILE"); path != "" {
		return path
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(configDir, "hondana", "config.yaml")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share", "hondana")
}
