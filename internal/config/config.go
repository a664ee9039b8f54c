// Package config resolves settings from defaults, an optional YAML file,
// KEYMAN_* environment variables and bound flags.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/Hussein-Mazeh/LicenseKeyManager/krypto"
)

const (
	// EnvPrefix prefixes environment overrides, e.g. KEYMAN_DIR.
	EnvPrefix = "KEYMAN"
	// FileName is the config file name searched for without extension.
	FileName = ".keyman"

	DefaultDir = "license-vault"
)

// Config is the resolved settings set.
type Config struct {
	Dir           string        `mapstructure:"dir" yaml:"dir"`
	RSABits       int           `mapstructure:"rsa_bits" yaml:"rsa_bits"`
	KDFIterations int           `mapstructure:"kdf_iterations" yaml:"kdf_iterations"`
	Quarantine    bool          `mapstructure:"quarantine" yaml:"quarantine"`
	Theme         string        `mapstructure:"theme" yaml:"theme"`
	Log           LogConfig     `mapstructure:"log" yaml:"log"`
	Journal       JournalConfig `mapstructure:"journal" yaml:"journal"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// New returns a viper instance with defaults and environment lookup set up.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// SetDefaults installs the built-in values.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("dir", DefaultDir)
	v.SetDefault("rsa_bits", krypto.DefaultRSABits)
	v.SetDefault("kdf_iterations", krypto.DefaultPBKDF2Params().Iterations)
	v.SetDefault("quarantine", true)
	v.SetDefault("theme", "dark")
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")
	v.SetDefault("journal.enabled", true)
	v.SetDefault("journal.path", "")
}

// Load reads cfgFile, or searches $HOME and the working directory for
// .keyman.yaml when cfgFile is empty. A missing searched file is not an error.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the key material layer cannot honor.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Dir) == "" {
		return errors.New("config: dir must not be empty")
	}
	if c.RSABits < 2048 {
		return fmt.Errorf("config: rsa_bits %d is below 2048", c.RSABits)
	}
	if c.KDFIterations < 1 {
		return fmt.Errorf("config: kdf_iterations must be positive")
	}
	switch c.Theme {
	case "", "dark", "light":
	default:
		return fmt.Errorf("config: unknown theme %q", c.Theme)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
	return nil
}

// JournalPath returns the journal database path, defaulting into Dir.
func (c *Config) JournalPath() string {
	if c.Journal.Path != "" {
		return c.Journal.Path
	}
	return filepath.Join(c.Dir, "journal.db")
}

// KDFParams returns the derivation parameters for the configured iteration count.
func (c *Config) KDFParams() krypto.PBKDF2Params {
	p := krypto.DefaultPBKDF2Params()
	p.Iterations = c.KDFIterations
	return p
}

// NewLogger builds a logger writing to w at level in the given format
// ("text" or "json").
func NewLogger(w io.Writer, level, format string) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	log := logrus.New()
	log.SetOutput(w)
	log.SetLevel(lvl)
	if format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log, nil
}
