package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Environment names the API profile the client talks to.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"
	EnvMock        Environment = "mock"
)

// APIProfile is the base URL and timeout for one environment.
type APIProfile struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// DebugConfig gates developer tooling. It is resolved once at startup.
type DebugConfig struct {
	APITesting   bool `mapstructure:"api_testing"`
	ErrorTesting bool `mapstructure:"error_testing"`
	ConsoleLogs  bool `mapstructure:"console_logs"`
	APIMonitor   bool `mapstructure:"api_monitor"`
}

type MonitorConfig struct {
	Capacity     int           `mapstructure:"capacity"`
	HealthWindow time.Duration `mapstructure:"health_window"`
}

type ProviderConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
}

type AuthConfig struct {
	JWTSecret   string        `mapstructure:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer"`
	JWTDuration time.Duration `mapstructure:"jwt_duration"`
}

type ServerConfig struct {
	Addr     string `mapstructure:"addr"`
	MockAddr string `mapstructure:"mock_addr"`
	FeedAddr string `mapstructure:"feed_addr"` // raw TCP live feed; empty disables
}

type Config struct {
	Env         Environment                `mapstructure:"env"`
	LogLevel    string                     `mapstructure:"log_level"`
	Profiles    map[Environment]APIProfile `mapstructure:"profiles"`
	Debug       DebugConfig                `mapstructure:"debug"`
	Monitor     MonitorConfig              `mapstructure:"monitor"`
	MangaDex    ProviderConfig             `mapstructure:"mangadex"`
	NetTrom     ProviderConfig             `mapstructure:"nettrom"`
	Auth        AuthConfig                 `mapstructure:"auth"`
	Server      ServerConfig               `mapstructure:"server"`
	DBPath      string                     `mapstructure:"db_path"`
	Credentials string                     `mapstructure:"credentials_path"`
}

// Profile returns the API profile of the active environment, falling
// back to development when the name is unknown.
func (c *Config) Profile() APIProfile {
	if p, ok := c.Profiles[c.Env]; ok && p.BaseURL != "" {
		return p
	}
	return c.Profiles[EnvDevelopment]
}

func setDefaults(v *viper.Viper) {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}

	v.SetDefault("env", string(EnvDevelopment))
	v.SetDefault("log_level", "info")

	v.SetDefault("profiles.development.base_url", "http://192.168.60.241:8080/api")
	v.SetDefault("profiles.development.timeout", 30*time.Second)
	v.SetDefault("profiles.production.base_url", "https://your-domain.com/api")
	v.SetDefault("profiles.production.timeout", 30*time.Second)
	v.SetDefault("profiles.mock.base_url", "http://localhost:9000/api")
	v.SetDefault("profiles.mock.timeout", 10*time.Second)

	v.SetDefault("debug.api_testing", false)
	v.SetDefault("debug.error_testing", false)
	v.SetDefault("debug.console_logs", false)
	v.SetDefault("debug.api_monitor", false)

	v.SetDefault("monitor.capacity", 100)
	v.SetDefault("monitor.health_window", 5*time.Minute)

	v.SetDefault("mangadex.base_url", "https://api.mangadex.org")
	v.SetDefault("mangadex.timeout", 30*time.Second)
	v.SetDefault("mangadex.requests_per_second", 5)
	v.SetDefault("nettrom.base_url", "https://otruyenapi.com/v1/api")
	v.SetDefault("nettrom.timeout", 30*time.Second)
	v.SetDefault("nettrom.requests_per_second", 0)

	// dev default (change for demo / production)
	v.SetDefault("auth.jwt_secret", "dev-secret-change-me")
	v.SetDefault("auth.jwt_issuer", "mangalib")
	v.SetDefault("auth.jwt_duration", 24*time.Hour)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.mock_addr", ":9000")
	v.SetDefault("server.feed_addr", ":7070")

	v.SetDefault("db_path", filepath.Join(home, ".mangalib", "data.db"))
	v.SetDefault("credentials_path", filepath.Join(home, ".mangalib", "credentials.json"))
}

// Load reads configuration from an optional YAML file and MANGALIB_*
// environment variables. An empty path means defaults plus env only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("MANGALIB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Env = Environment(strings.ToLower(string(cfg.Env)))
	if cfg.Monitor.Capacity <= 0 {
		cfg.Monitor.Capacity = 100
	}
	return &cfg, nil
}

// MustLoad is Load for main packages.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}
