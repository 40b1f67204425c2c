package centerline

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the service configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Convert  ConvertConfig  `mapstructure:"convert"`
	Database DatabaseConfig `mapstructure:"database"`
	S3       S3Config       `mapstructure:"s3"`
}

// ServerConfig represents HTTP server settings.
type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`  // seconds
	WriteTimeout int `mapstructure:"write_timeout"` // seconds
	MaxUploadMB  int `mapstructure:"max_upload_mb"`
}

// LogConfig represents logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "text" or "json"
}

// ConvertConfig represents conversion defaults.
type ConvertConfig struct {
	DefaultPreset string `mapstructure:"default_preset"`
}

// DatabaseConfig represents the optional job-history database. Disabled by
// default; the service runs fully without it.
type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN returns the lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// S3Config represents optional S3/R2 artifact upload settings.
type S3Config struct {
	Enabled         bool   `mapstructure:"enabled"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	BucketPath      string `mapstructure:"bucket_path"` // key prefix, e.g. "exports"
}

// LoadConfig reads configuration from an optional YAML file and environment
// variables (CENTERLINE_SERVER_PORT → server.port). An empty path falls back
// to config.yaml in . or ./configs when present.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("server.max_upload_mb", 32)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("convert.default_preset", "centerline")
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "centerline")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("s3.enabled", false)
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.region", "auto")
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.bucket_path", "exports")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		_ = v.ReadInConfig() // OK if missing
	}

	v.SetEnvPrefix("CENTERLINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.MaxUploadMB <= 0 {
		errs = append(errs, "server.max_upload_mb must be positive")
	}
	if _, ok := PresetByName(c.Convert.DefaultPreset); !ok {
		errs = append(errs, fmt.Sprintf("convert.default_preset %q is not a known preset", c.Convert.DefaultPreset))
	}

	if c.Database.Enabled {
		if c.Database.Host == "" {
			errs = append(errs, "database.host is required when database.enabled")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.User == "" {
			errs = append(errs, "database.user is required when database.enabled")
		}
		if c.Database.DBName == "" {
			errs = append(errs, "database.dbname is required when database.enabled")
		}
	}

	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3.endpoint is required when s3.enabled")
		}
		if c.S3.AccessKeyID == "" || c.S3.SecretAccessKey == "" {
			errs = append(errs, "s3.access_key_id and s3.secret_access_key are required when s3.enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3.bucket is required when s3.enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
