package confutil

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

const configFilename = ".hgdb.toml"

// Config holds the optional user-level defaults read from ~/.hgdb.toml.
// Command-line flags take precedence over every value here.
type Config struct {
	// RuntimePort is the default simulator port when the hostname
	// argument does not carry one.
	RuntimePort int `toml:"runtime_port"`

	// HistorySize caps the number of lines kept in the console
	// history file.
	HistorySize int `toml:"history_size"`

	// Workspace is the directory searched when resolving relative
	// source filenames.
	Workspace string `toml:"workspace"`

	// PathMapping maps remote source prefixes to local ones.
	PathMapping map[string]string `toml:"path_mapping"`
}

func defaults() Config {
	return Config{
		RuntimePort: 8888,
		HistorySize: 500,
	}
}

// Load reads the config file at path. An absent file yields the
// defaults; a malformed file is an error.
func Load(path string) (Config, error) {
	cfg := defaults()

	dt, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, errors.Wrapf(err, "failed to read %s", path)
	}

	if err := toml.Unmarshal(dt, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "failed to parse %s", path)
	}
	return cfg, nil
}

// LoadDefault reads the config from the user's home directory.
func LoadDefault() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return defaults(), nil
	}
	return Load(filepath.Join(home, configFilename))
}
