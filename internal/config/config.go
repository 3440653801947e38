// Package config loads thunderdockerman settings from defaults, an optional
// config file, environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// AppName is used for the config directory and environment prefix.
const AppName = "thunderdockerman"

// EnvPrefix prefixes every environment override (THUNDERDOCKERMAN_MODS_DIR, ...).
const EnvPrefix = "THUNDERDOCKERMAN"

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the fully resolved process configuration.
type Config struct {
	Listen    string `mapstructure:"listen"`
	ModsDir   string `mapstructure:"mods_dir"`
	DataDir   string `mapstructure:"data_dir"`
	BackupDir string `mapstructure:"backup_dir"`
	DBPath    string `mapstructure:"db_path"`
	PublicDir string `mapstructure:"public_dir"`

	Container    ContainerConfig    `mapstructure:"container"`
	Thunderstore ThunderstoreConfig `mapstructure:"thunderstore"`
	Resolver     ResolverConfig     `mapstructure:"resolver"`
	AutoStop     AutoStopConfig     `mapstructure:"auto_stop"`
	Log          LogConfig          `mapstructure:"log"`

	// Aliases maps short names onto package full names, e.g.
	// bepinex: denikson-BepInExPack_Valheim.
	Aliases map[string]string `mapstructure:"aliases"`
}

// ContainerConfig identifies the managed game server container.
type ContainerConfig struct {
	Name           string        `mapstructure:"name"`
	StopTimeout    time.Duration `mapstructure:"stop_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// ThunderstoreConfig configures the package index client.
type ThunderstoreConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Communities []string      `mapstructure:"communities"`
}

// ResolverConfig tunes dependency resolution.
type ResolverConfig struct {
	StrictVersions     bool `mapstructure:"strict_versions"`
	LatestDependencies bool `mapstructure:"latest_dependencies"`
}

// AutoStopConfig holds the initial auto-stop settings. They can be changed
// at runtime through the settings endpoint; changes are not written back.
type AutoStopConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	TimeoutMinutes float64 `mapstructure:"timeout_minutes"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// LoadOptions controls where Load looks for settings.
type LoadOptions struct {
	// ConfigFile, when set, is the only config file read and must exist.
	ConfigFile string
	// ConfigDir overrides Dir() for config file discovery.
	ConfigDir string
	// Flags maps config keys onto command-line flags. Only flags the user
	// actually set override lower layers.
	Flags map[string]*pflag.Flag
}

const defaultListen = "0.0.0.0:9876"

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Listen:    defaultListen,
		ModsDir:   "./BepInEx/plugins",
		DataDir:   "./valheim-data",
		BackupDir: "./backups",
		DBPath:    defaultDBPath(),
		PublicDir: "./public",
		Container: ContainerConfig{
			StopTimeout:    10 * time.Second,
			RequestTimeout: 30 * time.Second,
		},
		Thunderstore: ThunderstoreConfig{
			BaseURL:     "https://thunderstore.io",
			CacheTTL:    10 * time.Minute,
			Timeout:     60 * time.Second,
			Communities: []string{"valheim", "lethal-company", "risk-of-rain-2", "content-warning"},
		},
		AutoStop: AutoStopConfig{
			Enabled:        false,
			TimeoutMinutes: 15,
		},
		Log:     LogConfig{Level: "info"},
		Aliases: map[string]string{},
	}
}

// Dir returns the thunderdockerman config directory, respecting
// XDG_CONFIG_HOME. Defaults to ~/.config/thunderdockerman.
func Dir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, AppName), nil
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".thunderdockerman", "thunderdockerman.db")
	}
	return filepath.Join(home, ".thunderdockerman", "thunderdockerman.db")
}

// Load resolves the configuration. Precedence, lowest first: defaults,
// config file, legacy environment variables, THUNDERDOCKERMAN_* variables,
// explicitly set flags.
func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	if err := readConfigFile(v, opts); err != nil {
		return nil, err
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The original deployment configured itself with these bare names.
	legacy := map[string]string{
		"container.name": "RESTART_CONTAINER",
		"data_dir":       "DATA_DIR",
		"mods_dir":       "MODS_DIR",
	}
	for key, env := range legacy {
		if err := v.BindEnv(key, EnvPrefix+"_"+envKey(key), env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	for key, flag := range opts.Flags {
		if flag == nil || !flag.Changed {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("failed to bind flag --%s: %w", flag.Name, err)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if port := os.Getenv("PORT"); port != "" && cfg.Listen == defaultListen {
		cfg.Listen = "0.0.0.0:" + port
	}
	cfg.DBPath = expandHome(cfg.DBPath)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("listen", d.Listen)
	v.SetDefault("mods_dir", d.ModsDir)
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("backup_dir", d.BackupDir)
	v.SetDefault("db_path", d.DBPath)
	v.SetDefault("public_dir", d.PublicDir)
	v.SetDefault("container.name", d.Container.Name)
	v.SetDefault("container.stop_timeout", d.Container.StopTimeout)
	v.SetDefault("container.request_timeout", d.Container.RequestTimeout)
	v.SetDefault("thunderstore.base_url", d.Thunderstore.BaseURL)
	v.SetDefault("thunderstore.cache_ttl", d.Thunderstore.CacheTTL)
	v.SetDefault("thunderstore.timeout", d.Thunderstore.Timeout)
	v.SetDefault("thunderstore.communities", d.Thunderstore.Communities)
	v.SetDefault("resolver.strict_versions", d.Resolver.StrictVersions)
	v.SetDefault("resolver.latest_dependencies", d.Resolver.LatestDependencies)
	v.SetDefault("auto_stop.enabled", d.AutoStop.Enabled)
	v.SetDefault("auto_stop.timeout_minutes", d.AutoStop.TimeoutMinutes)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("aliases", d.Aliases)
}

func readConfigFile(v *viper.Viper, opts LoadOptions) error {
	if opts.ConfigFile != "" {
		if _, err := os.Stat(opts.ConfigFile); err != nil {
			return fmt.Errorf("config file not found: %s", opts.ConfigFile)
		}
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config %s: %w", opts.ConfigFile, err)
		}
		return nil
	}

	dir := opts.ConfigDir
	if dir == "" {
		var err error
		if dir, err = Dir(); err != nil {
			return err
		}
	}

	v.SetConfigName("config")
	v.AddConfigPath(dir)
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

// Validate checks values that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("%w: listen address must not be empty", ErrInvalidConfig)
	}
	if c.ModsDir == "" {
		return fmt.Errorf("%w: mods_dir must not be empty", ErrInvalidConfig)
	}
	if c.AutoStop.TimeoutMinutes <= 0 {
		return fmt.Errorf("%w: auto_stop.timeout_minutes must be positive, got %v", ErrInvalidConfig, c.AutoStop.TimeoutMinutes)
	}
	if c.Thunderstore.CacheTTL < 0 {
		return fmt.Errorf("%w: thunderstore.cache_ttl must not be negative", ErrInvalidConfig)
	}
	if len(c.Thunderstore.Communities) == 0 {
		return fmt.Errorf("%w: thunderstore.communities must list at least one community", ErrInvalidConfig)
	}
	return nil
}

// ResolveAlias returns the package full name for an alias, or name itself
// when no alias matches.
func (c *Config) ResolveAlias(name string) string {
	if full, ok := c.Aliases[strings.ToLower(name)]; ok && full != "" {
		return full
	}
	return name
}

func envKey(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
