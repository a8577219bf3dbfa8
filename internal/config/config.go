package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	WebSocket     WebSocketConfig     `mapstructure:"websocket"`
	Security      SecurityConfig      `mapstructure:"security"`
	Detection     DetectionConfig     `mapstructure:"detection"`
	Alerting      AlertingConfig      `mapstructure:"alerting"`
	Escalation    EscalationConfig    `mapstructure:"escalation"`
	Correlation   CorrelationConfig   `mapstructure:"correlation"`
	Health        HealthConfig        `mapstructure:"health"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Rules         RulesConfig         `mapstructure:"rules"`
	Metrics       MetricsConfig       `mapstructure:"metrics"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Path           string `mapstructure:"path"`
	MigrationsPath string `mapstructure:"migrations_path"`
	MaxConnections int    `mapstructure:"max_connections"`
	AutoMigrate    bool   `mapstructure:"auto_migrate"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type WebSocketConfig struct {
	PingInterval int `mapstructure:"ping_interval"`
	PongTimeout  int `mapstructure:"pong_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type SecurityConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	EnableCORS     bool     `mapstructure:"enable_cors"`
}

type DetectionConfig struct {
	BaselineRetention  time.Duration `mapstructure:"baseline_retention"`
	MaxPointsPerSeries int           `mapstructure:"max_points_per_series"`
}

type AlertingConfig struct {
	DispatchTimeout time.Duration `mapstructure:"dispatch_timeout"`
	DefaultChannels []string      `mapstructure:"default_channels"`
}

type EscalationConfig struct {
	Tick            time.Duration            `mapstructure:"tick"`
	MaxLevel        int                      `mapstructure:"max_level"`
	Intervals       map[string]time.Duration `mapstructure:"intervals"`
	ChannelTiers    [][]string               `mapstructure:"channel_tiers"`
	DispatchTimeout time.Duration            `mapstructure:"dispatch_timeout"`
}

type CorrelationConfig struct {
	Window    time.Duration `mapstructure:"window"`
	MinAlerts int           `mapstructure:"min_alerts"`
	Channels  []string      `mapstructure:"channels"`
}

type HealthConfig struct {
	Interval          time.Duration `mapstructure:"interval"`
	FailureLookback   time.Duration `mapstructure:"failure_lookback"`
	LatencySLA        float64       `mapstructure:"latency_sla_ms"`
	TrendDepth        int           `mapstructure:"trend_depth"`
	PerformanceWindow time.Duration `mapstructure:"performance_window"`
}

type NotificationsConfig struct {
	MaxRetries     int           `mapstructure:"max_retries"`
	InitialDelay   time.Duration `mapstructure:"initial_delay"`
	MaxDelay       time.Duration `mapstructure:"max_delay"`
	BackoffFactor  float64       `mapstructure:"backoff_factor"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
	// Webhooks maps a channel name (slack, teams, pagerduty, webhook) to
	// its endpoint URL. Channels without a URL fall back to the log.
	Webhooks map[string]string `mapstructure:"webhooks"`
}

type RulesConfig struct {
	// Path points at the YAML file holding monitoring and suppression
	// rules loaded at startup. Empty skips file loading.
	Path string `mapstructure:"path"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Prefix  string `mapstructure:"prefix"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	viper.AutomaticEnv()

	// Override specific values from env
	viper.BindEnv("server.port", "PORT")
	viper.BindEnv("server.mode", "VIGIL_MODE")
	viper.BindEnv("database.path", "DATABASE_PATH")
	viper.BindEnv("logging.level", "LOG_LEVEL")
	viper.BindEnv("rules.path", "VIGIL_RULES_PATH")
	viper.BindEnv("security.allowed_origins", "VIGIL_ALLOWED_ORIGINS")
	viper.BindEnv("notifications.webhooks.slack", "VIGIL_SLACK_WEBHOOK")
	viper.BindEnv("notifications.webhooks.teams", "VIGIL_TEAMS_WEBHOOK")
	viper.BindEnv("notifications.webhooks.pagerduty", "VIGIL_PAGERDUTY_WEBHOOK")
	viper.BindEnv("notifications.webhooks.webhook", "VIGIL_GENERIC_WEBHOOK")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// Validate checks the configuration for completeness and correctness.
func (c *Config) Validate() error {
	var errors []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errors = append(errors, "server.port must be between 1 and 65535")
	}
	if c.Server.Host == "" {
		errors = append(errors, "server.host is required")
	}
	if c.Database.Path == "" {
		errors = append(errors, "database.path is required")
	}
	if c.Escalation.MaxLevel <= 0 {
		errors = append(errors, "escalation.max_level must be greater than 0")
	}
	for severity, interval := range c.Escalation.Intervals {
		if interval <= 0 {
			errors = append(errors, fmt.Sprintf("escalation.intervals.%s must be greater than 0", severity))
		}
	}
	if c.Correlation.MinAlerts <= 0 {
		errors = append(errors, "correlation.min_alerts must be greater than 0")
	}
	if c.Correlation.Window <= 0 {
		errors = append(errors, "correlation.window must be greater than 0")
	}
	if c.Health.Interval <= 0 {
		errors = append(errors, "health.interval must be greater than 0")
	}
	if c.Notifications.MaxRetries < 0 {
		errors = append(errors, "notifications.max_retries must not be negative")
	}
	if c.Notifications.BackoffFactor < 1 {
		errors = append(errors, "notifications.backoff_factor must be at least 1")
	}

	if len(errors) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(errors, "; "))
	}
	return nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", 3100)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.mode", "development")

	// Database defaults
	viper.SetDefault("database.path", "./data/vigil.db")
	viper.SetDefault("database.migrations_path", "./migrations")
	viper.SetDefault("database.max_connections", 25)
	viper.SetDefault("database.auto_migrate", true)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	// WebSocket defaults
	viper.SetDefault("websocket.ping_interval", 30)
	viper.SetDefault("websocket.pong_timeout", 60)
	viper.SetDefault("websocket.write_timeout", 10)

	// Security defaults
	viper.SetDefault("security.enable_cors", true)
	viper.SetDefault("security.allowed_origins", []string{"*"})

	// Detection defaults
	viper.SetDefault("detection.baseline_retention", "1h")
	viper.SetDefault("detection.max_points_per_series", 1000)

	// Alerting defaults
	viper.SetDefault("alerting.dispatch_timeout", "1m")
	viper.SetDefault("alerting.default_channels", []string{"dashboard"})

	// Escalation defaults
	viper.SetDefault("escalation.tick", "30s")
	viper.SetDefault("escalation.max_level", 3)
	viper.SetDefault("escalation.intervals", map[string]string{
		"critical": "5m",
		"high":     "15m",
		"medium":   "1h",
	})
	viper.SetDefault("escalation.channel_tiers", [][]string{
		{"dashboard"},
		{"dashboard", "slack"},
		{"dashboard", "slack", "email"},
		{"dashboard", "pagerduty"},
	})
	viper.SetDefault("escalation.dispatch_timeout", "1m")

	// Correlation defaults
	viper.SetDefault("correlation.window", "10m")
	viper.SetDefault("correlation.min_alerts", 3)
	viper.SetDefault("correlation.channels", []string{"dashboard"})

	// Health defaults
	viper.SetDefault("health.interval", "1m")
	viper.SetDefault("health.failure_lookback", "15m")
	viper.SetDefault("health.latency_sla_ms", 1000)
	viper.SetDefault("health.trend_depth", 10)
	viper.SetDefault("health.performance_window", "5m")

	// Notification defaults
	viper.SetDefault("notifications.max_retries", 3)
	viper.SetDefault("notifications.initial_delay", "5s")
	viper.SetDefault("notifications.max_delay", "1m")
	viper.SetDefault("notifications.backoff_factor", 2.0)
	viper.SetDefault("notifications.attempt_timeout", "10s")

	// Rules defaults
	viper.SetDefault("rules.path", "./configs/rules.yaml")

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.prefix", "vigil")
}
