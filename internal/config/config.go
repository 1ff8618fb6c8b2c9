package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	AppPort         string `mapstructure:"app_port"`
	DBDriver        string `mapstructure:"db_driver"`
	DBDSN           string `mapstructure:"db_dsn"`
	JWTSecret       string `mapstructure:"jwt_secret"`
	JWTExpiresMin   int    `mapstructure:"jwt_expires_min"`
	RedisAddr       string `mapstructure:"redis_addr"`
	RedisPassword   string `mapstructure:"redis_password"`
	RedisDB         int    `mapstructure:"redis_db"`
	MetricsPort     int    `mapstructure:"metrics_port"`
	CORSOrigins     string `mapstructure:"cors_origins"`
	GoogleClientID  string `mapstructure:"google_client_id"`
	GoogleSecret    string `mapstructure:"google_client_secret"`
	GoogleRedirect  string `mapstructure:"google_redirect_url"`
	FrontendBaseURL string `mapstructure:"frontend_base_url"`

	DispatchIntervalSec int `mapstructure:"dispatch_interval_sec"`
	DispatchMaxAttempts int `mapstructure:"dispatch_max_attempts"`
	StatusCacheTTLSec   int `mapstructure:"status_cache_ttl_sec"`
}

var defaults = map[string]any{
	"app_port":              "8080",
	"db_driver":             "postgres",
	"jwt_expires_min":       10080,
	"redis_addr":            "localhost:6379",
	"redis_password":        "",
	"redis_db":              0,
	"metrics_port":          9090,
	"cors_origins":          "http://127.0.0.1:3000, http://localhost:3000",
	"google_client_id":      "",
	"google_client_secret":  "",
	"google_redirect_url":   "",
	"frontend_base_url":     "http://localhost:3000",
	"dispatch_interval_sec": 2,
	"dispatch_max_attempts": 8,
	"status_cache_ttl_sec":  60,
	"db_dsn":                "",
	"jwt_secret":            "",
}

// Load reads the environment (after godotenv has populated it).
// DB_DSN and JWT_SECRET are required.
func Load() Config {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic("invalid config: " + err.Error())
	}
	cfg.DBDSN = must(v, "db_dsn")
	cfg.JWTSecret = must(v, "jwt_secret")
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	return cfg
}

func (c Config) DispatchInterval() time.Duration {
	return time.Duration(c.DispatchIntervalSec) * time.Second
}

func (c Config) StatusCacheTTL() time.Duration {
	return time.Duration(c.StatusCacheTTLSec) * time.Second
}

func must(v *viper.Viper, k string) string {
	s := v.GetString(k)
	if s == "" {
		panic("missing env: " + strings.ToUpper(k))
	}
	return s
}
