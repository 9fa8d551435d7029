package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"cmdb-api/internal/logger"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

type Config struct {
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	JWTExpiry   time.Duration

	Environment    string
	DatabaseDSN    string
	ListenAddr     string
	EnableMetrics  bool
	MaxReportBytes int64
	ImportMapping  string

	LogLevel      string
	LogFormat     string
	LogOutput     string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
}

// envBindings maps config keys to the environment variables that set them.
var envBindings = map[string]string{
	"jwt.secret":              "JWT_SECRET",
	"jwt.issuer":              "JWT_ISS",
	"jwt.audience":            "JWT_AUD",
	"jwt.expiry":              "JWT_EXPIRY",
	"environment":             "ENVIRONMENT",
	"database.dsn":            "DB_DSN",
	"server.listen_addr":      "LISTEN_ADDR",
	"server.enable_metrics":   "ENABLE_METRICS",
	"server.max_report_bytes": "MAX_REPORT_BYTES",
	"import.mapping":          "IMPORT_MAPPING",
	"log.level":               "LOG_LEVEL",
	"log.format":              "LOG_FORMAT",
	"log.output":              "LOG_OUTPUT",
	"log.max_size_mb":         "LOG_MAX_SIZE_MB",
	"log.max_backups":         "LOG_MAX_BACKUPS",
	"log.max_age_days":        "LOG_MAX_AGE_DAYS",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("jwt.secret", defaultJWTSecret)
	v.SetDefault("jwt.issuer", "cmdb-api")
	v.SetDefault("jwt.audience", "cmdb-api")
	v.SetDefault("jwt.expiry", 24*time.Hour)
	v.SetDefault("environment", "development")
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.enable_metrics", false)
	v.SetDefault("server.max_report_bytes", 1<<20)
	v.SetDefault("import.mapping", "configs/mapping/inventory.yaml")
}

// Load reads defaults, an optional config.yaml and the environment, in
// increasing priority. An unreadable config file is ignored here; use
// LoadAndValidate to surface it.
func Load() *Config {
	cfg, _ := load()
	return cfg
}

func load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	var fileErr error
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fileErr = fmt.Errorf("error reading config file: %w", err)
		}
	}

	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	expiry := v.GetDuration("jwt.expiry")
	if expiry == 0 {
		expiry = 24 * time.Hour
	}

	cfg := &Config{
		JWTSecret:      v.GetString("jwt.secret"),
		JWTIssuer:      v.GetString("jwt.issuer"),
		JWTAudience:    v.GetString("jwt.audience"),
		JWTExpiry:      expiry,
		Environment:    v.GetString("environment"),
		DatabaseDSN:    v.GetString("database.dsn"),
		ListenAddr:     v.GetString("server.listen_addr"),
		EnableMetrics:  v.GetBool("server.enable_metrics"),
		MaxReportBytes: v.GetInt64("server.max_report_bytes"),
		ImportMapping:  v.GetString("import.mapping"),
		LogLevel:       v.GetString("log.level"),
		LogFormat:      v.GetString("log.format"),
		LogOutput:      v.GetString("log.output"),
		LogMaxSizeMB:   v.GetInt("log.max_size_mb"),
		LogMaxBackups:  v.GetInt("log.max_backups"),
		LogMaxAgeDays:  v.GetInt("log.max_age_days"),
	}
	return cfg, fileErr
}

// Validate checks the JWT settings.
func (c *Config) Validate() error {
	if len(c.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 characters long")
	}
	if c.Environment == "production" && c.JWTSecret == defaultJWTSecret {
		return errors.New("JWT_SECRET must be changed from the default value in production")
	}
	if c.JWTIssuer == "" {
		return errors.New("JWT_ISS cannot be empty")
	}
	if c.JWTAudience == "" {
		return errors.New("JWT_AUD cannot be empty")
	}
	if c.JWTExpiry < time.Minute {
		return fmt.Errorf("JWT_EXPIRY must be at least 1m, got %v", c.JWTExpiry)
	}
	if c.JWTExpiry > 30*24*time.Hour {
		return fmt.Errorf("JWT_EXPIRY must be at most 30 days, got %v", c.JWTExpiry)
	}
	if c.MaxReportBytes < 0 {
		return errors.New("MAX_REPORT_BYTES cannot be negative")
	}
	return nil
}

func LoadAndValidate() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Logger builds the logger settings.
func (c *Config) Logger() *logger.Config {
	lc := logger.DefaultConfig()
	if c.Environment == "production" {
		lc = logger.ProductionConfig()
	}
	if c.LogLevel != "" {
		lc.Level = c.LogLevel
	}
	if c.LogFormat != "" {
		lc.Format = c.LogFormat
	}
	if c.LogOutput != "" {
		lc.Output = c.LogOutput
	}
	if c.LogMaxSizeMB > 0 {
		lc.MaxSizeMB = c.LogMaxSizeMB
	}
	if c.LogMaxBackups > 0 {
		lc.MaxBackups = c.LogMaxBackups
	}
	if c.LogMaxAgeDays > 0 {
		lc.MaxAgeDays = c.LogMaxAgeDays
	}
	return lc
}
