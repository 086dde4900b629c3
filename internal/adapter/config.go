package adapter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/mmcdole/flickpick/internal/paging"
	"github.com/mmcdole/flickpick/internal/search"
	"github.com/mmcdole/flickpick/internal/tmdb"
)

// StorageDriver identifies the page store engine
type StorageDriver string

const (
	StorageBolt   StorageDriver = "bolt"
	StorageSQLite StorageDriver = "sqlite"
)

// ErrMissingAPIKey is returned by Validate when no TMDB key is configured
var ErrMissingAPIKey = errors.New("tmdb api key is not configured (set tmdb.api_key or FLICKPICK_TMDB_API_KEY)")

// Config holds all application configuration
type Config struct {
	TMDB    TMDBConfig    `mapstructure:"tmdb"`
	Storage StorageConfig `mapstructure:"storage"`
	Paging  PagingConfig  `mapstructure:"paging"`
	Search  SearchConfig  `mapstructure:"search"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Browser BrowserConfig `mapstructure:"browser"`
	Cache   CacheConfig   `mapstructure:"cache"`
}

// TMDBConfig holds catalogue API configuration
type TMDBConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	ImageBaseURL string        `mapstructure:"image_base_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// StorageConfig holds page store configuration
type StorageConfig struct {
	Driver StorageDriver `mapstructure:"driver"` // "bolt" or "sqlite"
	Path   string        `mapstructure:"path"`   // Cache directory
}

// PagingConfig holds paged list behaviour
type PagingConfig struct {
	PrefetchDistance int  `mapstructure:"prefetch_distance"`
	RefreshOnStart   bool `mapstructure:"refresh_on_start"`
	SyncPages        int  `mapstructure:"sync_pages"` // Pages fetched by the non-interactive mode
}

// SearchConfig holds search input behaviour
type SearchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// MetricsConfig holds Prometheus exposition configuration
type MetricsConfig struct {
	Addr string `mapstructure:"addr"` // Empty disables the endpoint
}

// BrowserConfig holds the command used to open movie pages
type BrowserConfig struct {
	Command string   `mapstructure:"command"` // Empty for the system default
	Args    []string `mapstructure:"args"`
}

// CacheConfig holds the optional shared movie detail cache
type CacheConfig struct {
	RedisAddr     string        `mapstructure:"redis_addr"` // Empty disables the cache
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	DetailTTL     time.Duration `mapstructure:"detail_ttl"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		TMDB: TMDBConfig{
			BaseURL:      tmdb.DefaultBaseURL,
			ImageBaseURL: tmdb.DefaultImageBaseURL,
			Timeout:      30 * time.Second,
		},
		Storage: StorageConfig{
			Driver: StorageBolt,
			Path:   defaultCachePath(),
		},
		Paging: PagingConfig{
			PrefetchDistance: paging.DefaultPrefetchDistance,
			RefreshOnStart:   false,
			SyncPages:        1,
		},
		Search: SearchConfig{
			Debounce: search.DefaultDebounce,
		},
		Logging: LoggingConfig{
			File:  defaultLogPath(),
			Level: "INFO",
		},
		Cache: CacheConfig{
			DetailTTL: 24 * time.Hour,
		},
	}
}

// defaultLogPath returns the default log file path for the current OS
func defaultLogPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "flickpick", "flickpick.log")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "flickpick", "flickpick.log")
	}
}

// defaultConfigPath returns the default config directory for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "flickpick")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "flickpick")
	}
}

// defaultCachePath returns the default cache directory for the current OS
func defaultCachePath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "flickpick", "cache")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "flickpick", "cache")
	}
}

// LoadDotEnv loads a .env file from the working directory if one exists.
// It reports whether a file was loaded.
func LoadDotEnv(files ...string) bool {
	return godotenv.Load(files...) == nil
}

// LoadConfig loads configuration from file and environment. An empty
// configFile searches config.yaml in the user config dir and the cwd.
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(defaultConfigPath())
		v.AddConfigPath(".")
	}

	// Environment variable overrides, e.g. FLICKPICK_TMDB_API_KEY
	v.SetEnvPrefix("FLICKPICK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override keys that
// are absent from the file
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("tmdb.base_url", d.TMDB.BaseURL)
	v.SetDefault("tmdb.api_key", d.TMDB.APIKey)
	v.SetDefault("tmdb.image_base_url", d.TMDB.ImageBaseURL)
	v.SetDefault("tmdb.timeout", d.TMDB.Timeout)

	v.SetDefault("storage.driver", string(d.Storage.Driver))
	v.SetDefault("storage.path", d.Storage.Path)

	v.SetDefault("paging.prefetch_distance", d.Paging.PrefetchDistance)
	v.SetDefault("paging.refresh_on_start", d.Paging.RefreshOnStart)
	v.SetDefault("paging.sync_pages", d.Paging.SyncPages)

	v.SetDefault("search.debounce", d.Search.Debounce)

	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.level", d.Logging.Level)

	v.SetDefault("metrics.addr", d.Metrics.Addr)

	v.SetDefault("browser.command", d.Browser.Command)
	v.SetDefault("browser.args", d.Browser.Args)

	v.SetDefault("cache.redis_addr", d.Cache.RedisAddr)
	v.SetDefault("cache.redis_password", d.Cache.RedisPassword)
	v.SetDefault("cache.redis_db", d.Cache.RedisDB)
	v.SetDefault("cache.detail_ttl", d.Cache.DetailTTL)
}

// Validate checks the settings the application cannot run without
func (c *Config) Validate() error {
	if c.TMDB.APIKey == "" {
		return ErrMissingAPIKey
	}
	switch c.Storage.Driver {
	case StorageBolt, StorageSQLite:
	default:
		return fmt.Errorf("unknown storage driver %q (want %q or %q)", c.Storage.Driver, StorageBolt, StorageSQLite)
	}
	if c.Paging.SyncPages < 1 {
		return fmt.Errorf("paging.sync_pages must be at least 1, got %d", c.Paging.SyncPages)
	}
	return nil
}

// CachePath returns the storage directory with ~ expanded
func (c *Config) CachePath() string {
	return expandHome(c.Storage.Path)
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
