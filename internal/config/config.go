package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds runtime configuration for the server and the tools.
// Values come from .dexforge.yaml, DEXFORGE_* env vars and command flags.
type Config struct {
	// Catalog
	APIBase           string        `mapstructure:"api_base"`
	PageSize          int           `mapstructure:"page_size"`
	Ceiling           int           `mapstructure:"ceiling"`
	DetailConcurrency int           `mapstructure:"detail_concurrency"`
	HTTPTimeout       time.Duration `mapstructure:"http_timeout"`

	// Collection
	StorageKey string `mapstructure:"storage_key"`
	DBPath     string `mapstructure:"db"`

	// Server
	Port        string `mapstructure:"port"`
	StaticDir   string `mapstructure:"static_dir"`
	MaxSessions int    `mapstructure:"max_sessions"`

	Verbose bool `mapstructure:"verbose"`
}

// SetDefaults registers built-in defaults on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("api_base", "https://pokeapi.co/api/v2")
	v.SetDefault("page_size", 6)
	v.SetDefault("ceiling", 1000)
	v.SetDefault("detail_concurrency", 0)
	v.SetDefault("http_timeout", 30*time.Second)
	v.SetDefault("storage_key", "pokemon-collection")
	v.SetDefault("db", "./dexforge.db")
	v.SetDefault("port", "8080")
	v.SetDefault("static_dir", "../frontend/dist")
	v.SetDefault("max_sessions", 256)
	v.SetDefault("verbose", false)
}

// NewViper returns a viper instance with defaults, env binding and an
// optional config file. An empty cfgFile looks for .dexforge.yaml in the
// working directory; a missing default file is not an error.
func NewViper(cfgFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix("DEXFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", cfgFile, err)
		}
		return v, nil
	}

	v.SetConfigName(".dexforge")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return v, nil
}

// BindFlags binds every flag in fs to the viper key of the same name
// (dashes become underscores).
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var bindErr error
	fs.VisitAll(func(f *pflag.Flag) {
		if bindErr != nil {
			return
		}
		key := strings.ReplaceAll(f.Name, "-", "_")
		if err := v.BindPFlag(key, f); err != nil {
			bindErr = fmt.Errorf("bind flag %s: %w", f.Name, err)
		}
	})
	return bindErr
}

// Load unmarshals v into a Config and validates it
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would break the catalog walk or storage
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIBase) == "" {
		return fmt.Errorf("api_base is required")
	}
	if strings.TrimSpace(c.StorageKey) == "" {
		return fmt.Errorf("storage_key is required")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page_size must be positive, got %d", c.PageSize)
	}
	if c.Ceiling <= 0 {
		return fmt.Errorf("ceiling must be positive, got %d", c.Ceiling)
	}
	if c.DetailConcurrency < 0 {
		return fmt.Errorf("detail_concurrency must not be negative, got %d", c.DetailConcurrency)
	}
	return nil
}
