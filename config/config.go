package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	API        APIConfig        `yaml:"api"`
	Store      StoreConfig      `yaml:"store"`
	Session    SessionConfig    `yaml:"session"`
	Push       PushConfig       `yaml:"push"`
	Jobs       JobsConfig       `yaml:"jobs"`
	Dashboard  DashboardConfig  `yaml:"dashboard"`
	MockServer MockServerConfig `yaml:"mock_server"`
	Log        LogConfig        `yaml:"log"`
}

type APIConfig struct {
	BaseURL   string        `yaml:"base_url"`
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit float64       `yaml:"rate_limit"` // requests per second
	RateBurst int           `yaml:"rate_burst"`
}

type StoreConfig struct {
	Driver string `yaml:"driver"` // sqlite, postgres or memory
	DSN    string `yaml:"dsn"`
}

type SessionConfig struct {
	Token   string `yaml:"token"`
	NurseID uint   `yaml:"nurse_id"`
	UserID  uint   `yaml:"user_id"`
}

type PushConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
}

type JobsConfig struct {
	UnreadPollInterval time.Duration `yaml:"unread_poll_interval"`
	DashboardInterval  time.Duration `yaml:"dashboard_interval"`
}

type DashboardConfig struct {
	UrgentAlertLimit int `yaml:"urgent_alert_limit"`
	UpcomingDays     int `yaml:"upcoming_days"`
}

type MockServerConfig struct {
	Port      string `yaml:"port"`
	JWTSecret string `yaml:"jwt_secret"`
	GinMode   string `yaml:"gin_mode"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

var AppConfig *Config

// Load builds the configuration from defaults, an optional YAML file named by
// STAFFING_CONFIG_FILE, and finally environment variables.
func Load() error {
	cfg := Default()

	if path := os.Getenv("STAFFING_CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return err
		}
	}

	applyEnv(cfg)
	AppConfig = cfg
	return nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:   "http://localhost:3000/api",
			Timeout:   10 * time.Second,
			RateLimit: 10,
			RateBurst: 20,
		},
		Store: StoreConfig{
			Driver: "sqlite",
			DSN:    "staffing.db",
		},
		Push: PushConfig{
			Enabled: true,
		},
		Jobs: JobsConfig{
			UnreadPollInterval: 30 * time.Second,
			DashboardInterval:  5 * time.Minute,
		},
		Dashboard: DashboardConfig{
			UrgentAlertLimit: 3,
			UpcomingDays:     7,
		},
		MockServer: MockServerConfig{
			Port:      "3000",
			JWTSecret: "mock-staffing-secret-change-me",
			GinMode:   "debug",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.API.BaseURL = getEnv("API_BASE_URL", cfg.API.BaseURL)
	cfg.API.Timeout = getEnvAsDuration("API_TIMEOUT", cfg.API.Timeout)
	cfg.API.RateLimit = getEnvAsFloat("API_RATE_LIMIT", cfg.API.RateLimit)
	cfg.API.RateBurst = getEnvAsInt("API_RATE_BURST", cfg.API.RateBurst)

	cfg.Store.Driver = getEnv("STORE_DRIVER", cfg.Store.Driver)
	cfg.Store.DSN = getEnv("STORE_DSN", cfg.Store.DSN)

	cfg.Session.Token = getEnv("STAFFING_TOKEN", cfg.Session.Token)
	cfg.Session.NurseID = uint(getEnvAsInt("STAFFING_NURSE_ID", int(cfg.Session.NurseID)))
	cfg.Session.UserID = uint(getEnvAsInt("STAFFING_USER_ID", int(cfg.Session.UserID)))

	cfg.Push.Enabled = getEnvAsBool("PUSH_ENABLED", cfg.Push.Enabled)
	cfg.Push.URL = getEnv("PUSH_URL", cfg.Push.URL)

	cfg.Jobs.UnreadPollInterval = getEnvAsDuration("UNREAD_POLL_INTERVAL", cfg.Jobs.UnreadPollInterval)
	cfg.Jobs.DashboardInterval = getEnvAsDuration("DASHBOARD_REFRESH_INTERVAL", cfg.Jobs.DashboardInterval)

	cfg.Dashboard.UrgentAlertLimit = getEnvAsInt("DASHBOARD_URGENT_LIMIT", cfg.Dashboard.UrgentAlertLimit)
	cfg.Dashboard.UpcomingDays = getEnvAsInt("DASHBOARD_UPCOMING_DAYS", cfg.Dashboard.UpcomingDays)

	cfg.MockServer.Port = getEnv("PORT", cfg.MockServer.Port)
	cfg.MockServer.JWTSecret = getEnv("JWT_SECRET", cfg.MockServer.JWTSecret)
	cfg.MockServer.GinMode = getEnv("GIN_MODE", cfg.MockServer.GinMode)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.JSON = getEnvAsBool("LOG_JSON", cfg.Log.JSON)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
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

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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
