// Package config provides layered configuration management.
// Precedence, lowest first: defaults, config file, environment, command-line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPort          = 3006
	DefaultAdminPort     = 3007
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "text"
	DefaultDBPort        = 3306
	DefaultDBName        = "folder_mock"
	DefaultRedisPrefix   = "mock"
	DefaultWatchInterval = 10 * time.Minute
	DefaultDiskThreshold = 70.0
	DefaultRetention     = 7 * 24 * time.Hour
)

// ServerConfig holds the mock surface parameters
type ServerConfig struct {
	Port       int    `toml:"port" yaml:"port"`
	RootFolder string `toml:"root" yaml:"root"`
}

// LogConfig holds logger parameters
type LogConfig struct {
	Level  string `toml:"level" yaml:"level"`   // error | warn | info | debug | trace
	Format string `toml:"format" yaml:"format"` // text | json
}

// AdminConfig holds the inspection API parameters
type AdminConfig struct {
	Port   int    `toml:"port" yaml:"port"`     // 0 disables the admin listener
	Secret string `toml:"secret" yaml:"secret"` // empty disables the log stream
}

// DBConfig holds database connection parameters.
// An empty Host disables access log persistence.
type DBConfig struct {
	Host     string `toml:"host" yaml:"host"`
	Port     int    `toml:"port" yaml:"port"`
	User     string `toml:"user" yaml:"user"`
	Password string `toml:"password" yaml:"password"`
	Database string `toml:"database" yaml:"database"`
}

// RedisConfig holds Redis connection parameters.
// An empty Addr disables hit counters.
type RedisConfig struct {
	Addr     string `toml:"addr" yaml:"addr"` // Format: host:port
	Password string `toml:"password" yaml:"password"`
	DB       int    `toml:"db" yaml:"db"`
	Prefix   string `toml:"prefix" yaml:"prefix"`
}

// WatchdogConfig holds access log purge parameters
type WatchdogConfig struct {
	Interval      Duration `toml:"interval" yaml:"interval"`
	DiskThreshold float64  `toml:"disk_threshold" yaml:"disk_threshold"`
	Retention     Duration `toml:"retention" yaml:"retention"`
}

// Config aggregates all configuration sections
type Config struct {
	Server   ServerConfig   `toml:"server" yaml:"server"`
	Log      LogConfig      `toml:"log" yaml:"log"`
	Admin    AdminConfig    `toml:"admin" yaml:"admin"`
	DB       DBConfig       `toml:"db" yaml:"db"`
	Redis    RedisConfig    `toml:"redis" yaml:"redis"`
	Watchdog WatchdogConfig `toml:"watchdog" yaml:"watchdog"`
}

// Duration decodes "10m"-style strings from TOML and YAML
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler (used by toml)
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}

// Default returns the built-in configuration
func Default() *Config {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return &Config{
		Server: ServerConfig{Port: DefaultPort, RootFolder: cwd},
		Log:    LogConfig{Level: DefaultLogLevel, Format: DefaultLogFormat},
		Admin:  AdminConfig{Port: DefaultAdminPort},
		DB:     DBConfig{Port: DefaultDBPort, User: "root", Database: DefaultDBName},
		Redis:  RedisConfig{Prefix: DefaultRedisPrefix},
		Watchdog: WatchdogConfig{
			Interval:      Duration{DefaultWatchInterval},
			DiskThreshold: DefaultDiskThreshold,
			Retention:     Duration{DefaultRetention},
		},
	}
}

// LoadDotEnv loads variables from an .env file without overriding the
// real environment. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// LoadConfig builds the configuration from defaults, the optional file at
// path (.toml, .yaml or .yml) and environment variables
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("parse toml config: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse yaml config: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file extension %q", ext)
	}
	return nil
}

func applyEnv(cfg *Config) {
	// Mock server
	cfg.Server.Port = getEnvAsInt("MOCK_PORT", cfg.Server.Port)
	cfg.Server.RootFolder = getEnv("MOCK_ROOT", cfg.Server.RootFolder)

	// Logging
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)

	// Admin API
	cfg.Admin.Port = getEnvAsInt("ADMIN_PORT", cfg.Admin.Port)
	cfg.Admin.Secret = getEnv("ADMIN_SECRET", cfg.Admin.Secret)

	// Database Configuration
	cfg.DB.Host = getEnv("DB_HOST", cfg.DB.Host)
	cfg.DB.Port = getEnvAsInt("DB_PORT", cfg.DB.Port)
	cfg.DB.User = getEnv("DB_USER", cfg.DB.User)
	cfg.DB.Password = getEnv("DB_PASS", cfg.DB.Password)
	cfg.DB.Database = getEnv("DB_NAME", cfg.DB.Database)

	// Redis Configuration
	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", cfg.Redis.DB)
	cfg.Redis.Prefix = getEnv("REDIS_PREFIX", cfg.Redis.Prefix)

	// Watchdog
	cfg.Watchdog.Interval.Duration = getEnvAsDuration("WATCHDOG_INTERVAL", cfg.Watchdog.Interval.Duration)
	cfg.Watchdog.DiskThreshold = getEnvAsFloat("WATCHDOG_DISK_THRESHOLD", cfg.Watchdog.DiskThreshold)
	cfg.Watchdog.Retention.Duration = getEnvAsDuration("ACCESS_LOG_RETENTION", cfg.Watchdog.Retention.Duration)
}

// Validate checks ports and resolves the root folder to an absolute directory
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Admin.Port < 0 || c.Admin.Port > 65535 {
		return fmt.Errorf("invalid admin port: %d", c.Admin.Port)
	}
	if c.Admin.Port != 0 && c.Admin.Port == c.Server.Port {
		return fmt.Errorf("admin port %d collides with mock port", c.Admin.Port)
	}

	root, err := filepath.Abs(c.Server.RootFolder)
	if err != nil {
		return fmt.Errorf("resolve root folder: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("root folder: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("root folder %s is not a directory", root)
	}
	c.Server.RootFolder = root

	if c.DB.Enabled() && c.DB.Password == "" {
		return errors.New("DB_PASS is required when DB_HOST is set")
	}
	return nil
}

// Enabled reports whether access logs go to MariaDB
func (c *DBConfig) Enabled() bool {
	return c.Host != ""
}

// GetDSN returns MariaDB connection string
func (c *DBConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

// Enabled reports whether hit counters go to Redis
func (c *RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// getEnv reads environment variable with fallback default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt reads environment variable as integer with fallback default
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
