// Package config loads application configuration with viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// StorageBackend identifies where the proxy keeps cache generations
type StorageBackend string

const (
	StorageBolt  StorageBackend = "bolt"
	StorageRedis StorageBackend = "redis"
)

// Config holds all application configuration
type Config struct {
	Catalog CatalogConfig `mapstructure:"catalog"`
	Store   StoreConfig   `mapstructure:"store"`
	Browser BrowserConfig `mapstructure:"browser"`
	Logging LoggingConfig `mapstructure:"logging"`
	Proxy   ProxyConfig   `mapstructure:"proxy"`
}

// CatalogConfig selects the catalog data
type CatalogConfig struct {
	File   string `mapstructure:"file"`   // Empty uses the built-in catalog
	Locale string `mapstructure:"locale"` // Collation locale, e.g. "pt-BR"
}

// StoreConfig holds the preference store location
type StoreConfig struct {
	Path string `mapstructure:"path"` // Empty keeps preferences in memory
}

// BrowserConfig holds browsing behaviour
type BrowserConfig struct {
	SearchDebounce time.Duration `mapstructure:"search_debounce"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// ProxyConfig holds the offline caching proxy configuration
type ProxyConfig struct {
	Listen              string        `mapstructure:"listen"`
	Origin              string        `mapstructure:"origin"`       // Upstream app origin, e.g. "http://localhost:8000"
	Version             string        `mapstructure:"version"`      // Cache version, e.g. "v1.2"
	CachePrefix         string        `mapstructure:"cache_prefix"` // Generation name prefix
	EntryPage           string        `mapstructure:"entry_page"`   // Served to offline navigations
	StaticAssets        []string      `mapstructure:"static_assets"`
	AllowedOrigins      []string      `mapstructure:"allowed_origins"`
	DiscoverAssets      bool          `mapstructure:"discover_assets"`
	AutoActivateUpdates bool          `mapstructure:"auto_activate_updates"`
	OfflineMessage      string        `mapstructure:"offline_message"`
	Network             NetworkConfig `mapstructure:"network"`
	Storage             StorageConfig `mapstructure:"storage"`
}

// NetworkConfig tunes outbound fetches
type NetworkConfig struct {
	Timeout              time.Duration `mapstructure:"timeout"`
	Retries              int           `mapstructure:"retries"`
	MaxRequestsPerSecond int           `mapstructure:"max_requests_per_second"` // 0 disables limiting
}

// StorageConfig selects the cache storage backend
type StorageConfig struct {
	Backend StorageBackend `mapstructure:"backend"`
	Path    string         `mapstructure:"path"` // bolt file; empty keeps caches in memory
	Redis   RedisConfig    `mapstructure:"redis"`
}

// RedisConfig holds Redis connection details
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// DefaultStaticAssets is the pre-cache manifest of the web app
var DefaultStaticAssets = []string{
	"/",
	"/index.html",
	"/style.css",
	"/script.js",
	"/drinks-data.js",
	"/manifest.json",
	"https://cdn.tailwindcss.com",
	"https://fonts.googleapis.com/css2?family=Inter:wght@300;400;500;600;700;800&display=swap",
	"https://unpkg.com/lucide@latest/dist/umd/lucide.js",
}

// DefaultAllowedOrigins are the external origins the proxy caches
var DefaultAllowedOrigins = []string{
	"https://cdn.tailwindcss.com",
	"https://fonts.googleapis.com",
	"https://fonts.gstatic.com",
	"https://unpkg.com",
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Catalog: CatalogConfig{
			Locale: "pt-BR",
		},
		Store: StoreConfig{
			Path: filepath.Join(defaultDataPath(), "drinks.db"),
		},
		Browser: BrowserConfig{
			SearchDebounce: 300 * time.Millisecond,
		},
		Logging: LoggingConfig{
			File:  filepath.Join(defaultDataPath(), "drinks.log"),
			Level: "INFO",
		},
		Proxy: ProxyConfig{
			Listen:         "127.0.0.1:8080",
			Origin:         "http://localhost:8000",
			Version:        "v1.2",
			CachePrefix:    "drinks",
			EntryPage:      "/index.html",
			StaticAssets:   append([]string(nil), DefaultStaticAssets...),
			AllowedOrigins: append([]string(nil), DefaultAllowedOrigins...),
			OfflineMessage: "Esta funcionalidade não está disponível offline",
			Network: NetworkConfig{
				Timeout: 10 * time.Second,
				Retries: 1,
			},
			Storage: StorageConfig{
				Backend: StorageBolt,
				Path:    filepath.Join(defaultDataPath(), "proxy-cache.db"),
				Redis: RedisConfig{
					Addr: "localhost:6379",
				},
			},
		},
	}
}

// defaultDataPath returns the default data directory for the current OS
func defaultDataPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "drinks")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "drinks")
	}
}

// defaultConfigPath returns the default config directory for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "drinks")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "drinks")
	}
}

// Load reads config.yaml from the user config directory or the working
// directory, with DRINKS_* environment overrides. A missing file is fine.
func Load() (*Config, error) {
	return load(locateDefault)
}

func locateDefault(v *viper.Viper) {
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(defaultConfigPath())
	v.AddConfigPath(".")
}

// LoadFrom reads configuration from a specific file
func LoadFrom(path string) (*Config, error) {
	if path == "" {
		return Load()
	}
	return load(func(v *viper.Viper) {
		v.SetConfigFile(path)
	})
}

func load(locate func(v *viper.Viper)) (*Config, error) {
	v, err := open(locate)
	if err != nil {
		return nil, err
	}
	return decode(v)
}

// open builds a viper instance with defaults and env overrides and reads
// the located config file, if any
func open(locate func(v *viper.Viper)) (*viper.Viper, error) {
	v := viper.New()
	locate(v)
	setDefaults(v, DefaultConfig())

	// Environment variable overrides, e.g. DRINKS_PROXY_ORIGIN
	v.SetEnvPrefix("DRINKS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}
	return v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	cfg.Store.Path = expandHome(cfg.Store.Path)
	cfg.Logging.File = expandHome(cfg.Logging.File)
	cfg.Catalog.File = expandHome(cfg.Catalog.File)
	cfg.Proxy.Storage.Path = expandHome(cfg.Proxy.Storage.Path)

	return cfg, nil
}

// WatchFrom loads configuration like LoadFrom, then re-reads the file each
// time it changes and passes every valid result to onChange. A change that
// fails to parse or validate is passed to onError and skipped. Without a
// config file there is nothing to watch.
func WatchFrom(path string, onChange func(*Config), onError func(error)) (*Config, error) {
	v, err := open(func(v *viper.Viper) {
		if path == "" {
			locateDefault(v)
			return
		}
		v.SetConfigFile(path)
	})
	if err != nil {
		return nil, err
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}

	if v.ConfigFileUsed() == "" {
		return cfg, nil
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		next, err := reload(v)
		if err != nil {
			if onError != nil {
				onError(fmt.Errorf("%s: %w", e.Name, err))
			}
			return
		}
		onChange(next)
	})
	v.WatchConfig()
	return cfg, nil
}

// reload decodes and validates what viper last read
func reload(v *viper.Viper) (*Config, error) {
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key so environment overrides apply on Unmarshal
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("catalog.file", d.Catalog.File)
	v.SetDefault("catalog.locale", d.Catalog.Locale)

	v.SetDefault("store.path", d.Store.Path)

	v.SetDefault("browser.search_debounce", d.Browser.SearchDebounce)

	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.level", d.Logging.Level)

	v.SetDefault("proxy.listen", d.Proxy.Listen)
	v.SetDefault("proxy.origin", d.Proxy.Origin)
	v.SetDefault("proxy.version", d.Proxy.Version)
	v.SetDefault("proxy.cache_prefix", d.Proxy.CachePrefix)
	v.SetDefault("proxy.entry_page", d.Proxy.EntryPage)
	v.SetDefault("proxy.static_assets", d.Proxy.StaticAssets)
	v.SetDefault("proxy.allowed_origins", d.Proxy.AllowedOrigins)
	v.SetDefault("proxy.discover_assets", d.Proxy.DiscoverAssets)
	v.SetDefault("proxy.auto_activate_updates", d.Proxy.AutoActivateUpdates)
	v.SetDefault("proxy.offline_message", d.Proxy.OfflineMessage)

	v.SetDefault("proxy.network.timeout", d.Proxy.Network.Timeout)
	v.SetDefault("proxy.network.retries", d.Proxy.Network.Retries)
	v.SetDefault("proxy.network.max_requests_per_second", d.Proxy.Network.MaxRequestsPerSecond)

	v.SetDefault("proxy.storage.backend", string(d.Proxy.Storage.Backend))
	v.SetDefault("proxy.storage.path", d.Proxy.Storage.Path)
	v.SetDefault("proxy.storage.redis.addr", d.Proxy.Storage.Redis.Addr)
	v.SetDefault("proxy.storage.redis.password", d.Proxy.Storage.Redis.Password)
	v.SetDefault("proxy.storage.redis.db", d.Proxy.Storage.Redis.DB)
}

// expandHome expands a leading ~ to the user's home directory
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

// Validate checks settings that would otherwise fail later at runtime
func (c *Config) Validate() error {
	if c.Browser.SearchDebounce < 0 {
		return fmt.Errorf("browser.search_debounce must not be negative")
	}
	return c.Proxy.Validate()
}

// Validate checks the proxy settings
func (p *ProxyConfig) Validate() error {
	if p.Origin == "" {
		return fmt.Errorf("proxy.origin is required")
	}
	u, err := url.Parse(p.Origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("proxy.origin must be an absolute URL, got %q", p.Origin)
	}
	if p.Version == "" {
		return fmt.Errorf("proxy.version is required")
	}

	switch p.Storage.Backend {
	case StorageBolt:
	case StorageRedis:
		if p.Storage.Redis.Addr == "" {
			return fmt.Errorf("proxy.storage.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", p.Storage.Backend)
	}

	for _, origin := range p.AllowedOrigins {
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid allowed origin %q", origin)
		}
	}
	return nil
}

// ReleaseChanged reports whether the cached release differs from prev:
// another version or another static asset list
func (p *ProxyConfig) ReleaseChanged(prev *ProxyConfig) bool {
	return p.Version != prev.Version || !slices.Equal(p.StaticAssets, prev.StaticAssets)
}
