package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	WHM           WHMConfig           `yaml:"whm"`
	Tracker       TrackerConfig       `yaml:"tracker"`
	Notifications NotificationsConfig `yaml:"notifications"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Port string `yaml:"port"`
	Mode string `yaml:"mode"` // debug/release
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Type     string `yaml:"type"` // sqlite/mysql/postgres
	Path     string `yaml:"path"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
}

// WHMConfig represents the connection options shared by all WHM servers
type WHMConfig struct {
	Protocol          string `yaml:"protocol"` // http/https
	Username          string `yaml:"username"` // user the API token was created under, usually root
	ConnectionTimeout string `yaml:"connection_timeout"`
	SkipTLSVerify     bool   `yaml:"skip_tls_verify"` // control panels often run self-signed certs
}

// TrackerConfig represents fleet refresh configuration
type TrackerConfig struct {
	CheckInterval       string   `yaml:"check_interval"` // Cron expression
	StaleAfter          string   `yaml:"stale_after"`    // Alert when data is older than this
	IgnoreUsernames     []string `yaml:"ignore_usernames"`
	AdminEmails         []string `yaml:"admin_emails"`
	DiskWarningPercent  int      `yaml:"disk_warning_percent"`
	DiskCriticalPercent int      `yaml:"disk_critical_percent"`
	DiskFullPercent     int      `yaml:"disk_full_percent"`
}

// NotificationsConfig represents notification configuration
type NotificationsConfig struct {
	Email    EmailConfig    `yaml:"email"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	Telegram TelegramConfig `yaml:"telegram"`
}

// EmailConfig represents email notification configuration
type EmailConfig struct {
	Enabled  bool     `yaml:"enabled"`
	SMTPHost string   `yaml:"smtp_host"`
	SMTPPort int      `yaml:"smtp_port"`
	From     string   `yaml:"from"`
	Password string   `yaml:"password"`
	To       []string `yaml:"to"`
}

// WebhookConfig represents webhook notification configuration
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
}

// TelegramConfig represents Telegram notification configuration
type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	return &config, nil
}

// applyDefaults fills in values that can safely be omitted from the file
func (c *Config) applyDefaults() {
	if c.WHM.Protocol == "" {
		c.WHM.Protocol = "https"
	}
	if c.WHM.Username == "" {
		c.WHM.Username = "root"
	}
	if c.WHM.ConnectionTimeout == "" {
		c.WHM.ConnectionTimeout = "10s"
	}
	if c.Tracker.DiskWarningPercent == 0 {
		c.Tracker.DiskWarningPercent = 70
	}
	if c.Tracker.DiskCriticalPercent == 0 {
		c.Tracker.DiskCriticalPercent = 85
	}
	if c.Tracker.DiskFullPercent == 0 {
		c.Tracker.DiskFullPercent = 95
	}
}

// ConnectionTimeoutDuration parses the WHM connection timeout, falling back
// to 10 seconds when the value is missing or unparsable
func (c *WHMConfig) ConnectionTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.ConnectionTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// StaleAfterDuration parses the stale-data alert window. Zero means the
// check is disabled.
func (c *TrackerConfig) StaleAfterDuration() time.Duration {
	d, err := time.ParseDuration(c.StaleAfter)
	if err != nil || d <= 0 {
		return 0
	}
	return d
}
