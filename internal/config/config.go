package config

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/viper"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Supported log formats.
const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
)

const (
	envPrefix              = "PROSPECT"
	defaultHTTPAddress     = "0.0.0.0:8080"
	defaultDatabaseDriver  = DriverSQLite
	defaultDatabaseDSN     = "prospect.db"
	defaultLogLevel        = "info"
	defaultLogFormat       = LogFormatJSON
	defaultCookieName      = "app_session"
	defaultIssuer          = "tauth"
	defaultTokenTTLMinutes = 30
)

// AppConfig captures runtime configuration for the API server and CLI.
type AppConfig struct {
	HTTPAddress     string
	AllowedOrigins  []string
	DatabaseDriver  string
	DatabaseDSN     string
	LogLevel        string
	LogFormat       string
	TAuthSigningKey string
	TAuthIssuer     string
	TAuthCookieName string
	TokenTTL        time.Duration
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("http.allowed_origins", []string{})
	configViper.SetDefault("database.driver", defaultDatabaseDriver)
	configViper.SetDefault("database.dsn", defaultDatabaseDSN)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.format", defaultLogFormat)
	configViper.SetDefault("tauth.issuer", defaultIssuer)
	configViper.SetDefault("tauth.cookie_name", defaultCookieName)
	configViper.SetDefault("token.ttl_minutes", defaultTokenTTLMinutes)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:     strings.TrimSpace(configViper.GetString("http.address")),
		AllowedOrigins:  splitOrigins(configViper.GetStringSlice("http.allowed_origins")),
		DatabaseDriver:  strings.ToLower(strings.TrimSpace(configViper.GetString("database.driver"))),
		DatabaseDSN:     strings.TrimSpace(configViper.GetString("database.dsn")),
		LogLevel:        strings.ToLower(strings.TrimSpace(configViper.GetString("log.level"))),
		LogFormat:       strings.ToLower(strings.TrimSpace(configViper.GetString("log.format"))),
		TAuthSigningKey: configViper.GetString("tauth.signing_secret"),
		TAuthIssuer:     strings.TrimSpace(configViper.GetString("tauth.issuer")),
		TAuthCookieName: strings.TrimSpace(configViper.GetString("tauth.cookie_name")),
		TokenTTL:        time.Duration(configViper.GetInt("token.ttl_minutes")) * time.Minute,
	}

	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

// Validate reports every invalid setting keyed by its configuration key.
func (c AppConfig) Validate() error {
	return validation.Errors{
		"http.address":         validation.Validate(c.HTTPAddress, validation.Required),
		"database.driver":      validation.Validate(c.DatabaseDriver, validation.Required, validation.In(DriverSQLite, DriverPostgres)),
		"database.dsn":         validation.Validate(c.DatabaseDSN, validation.Required),
		"log.level":            validation.Validate(c.LogLevel, validation.In("debug", "info", "warn", "warning", "error")),
		"log.format":           validation.Validate(c.LogFormat, validation.In(LogFormatJSON, LogFormatConsole)),
		"tauth.signing_secret": validation.Validate(strings.TrimSpace(c.TAuthSigningKey), validation.Required),
		"tauth.cookie_name":    validation.Validate(c.TAuthCookieName, validation.Required),
		"token.ttl_minutes":    validation.Validate(c.TokenTTL, validation.Min(time.Minute)),
	}.Filter()
}

// splitOrigins accepts both list values and a single comma separated env value.
func splitOrigins(values []string) []string {
	origins := make([]string, 0, len(values))
	for _, value := range values {
		for _, origin := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(origin); trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
	}
	return origins
}
