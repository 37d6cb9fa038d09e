package config

import (
	"os"
	"path/filepath"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/pkg/errors"
)

type Configuration struct {
	Match         MatchConfiguration   `koanf:"match"`
	Walk          WalkConfiguration    `koanf:"walk"`
	Filters       FiltersConfiguration `koanf:"filters"`
	Notifications NotificationsConfig  `koanf:"notifications"`
}

// MatchConfiguration relaxes comparison-key strictness. Size and device are
// always part of the key; the rest can be opted out of here or per-run via
// the link command flags.
type MatchConfiguration struct {
	IgnoreTime  bool `koanf:"ignore_time"`
	IgnoreMode  bool `koanf:"ignore_mode"`
	IgnoreOwner bool `koanf:"ignore_owner"`
}

type WalkConfiguration struct {
	// IgnorePatterns are regular expressions matched against full paths
	// during collection; matching entries are never considered.
	IgnorePatterns []string `koanf:"ignore_patterns"`
}

// FiltersConfiguration restricts which candidate files may be relinked.
// Entries are expressions evaluated per file, e.g. `Size > 4096` or
// `Ext == ".iso"`. Keep-set files are never filtered.
type FiltersConfiguration struct {
	Include []string `koanf:"include"`
	Exclude []string `koanf:"exclude"`
}

var (
	// Config is the loaded configuration, valid after Init.
	Config *Configuration

	Delimiter = "."
)

// Init loads configuration defaults and, when present, the YAML file at
// configFilePath. A missing file is not an error; defaults apply.
func Init(configFilePath string) error {
	Config = &Configuration{}

	k := koanf.New(Delimiter)

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"match.ignore_time":  false,
		"match.ignore_mode":  false,
		"match.ignore_owner": false,
	}, Delimiter), nil); err != nil {
		return errors.Wrap(err, "load config defaults")
	}

	if _, err := os.Stat(configFilePath); err == nil {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return errors.Wrapf(err, "load config file: %s", configFilePath)
		}
	}

	if err := k.Unmarshal("", Config); err != nil {
		return errors.Wrap(err, "unmarshal config")
	}

	return nil
}

// GetDefaultConfigDirectory returns the folder the config file and log file
// live in, preferring an existing legacy dotfolder in $HOME.
func GetDefaultConfigDirectory(app string, configFile string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	legacy := filepath.Join(home, "."+app)
	if _, err := os.Stat(filepath.Join(legacy, configFile)); err == nil {
		return legacy
	}

	if base, err := os.UserConfigDir(); err == nil {
		return filepath.Join(base, app)
	}

	return legacy
}
