package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ScheduleOff disables a schedule
const ScheduleOff = "off"

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port           string
	Debug          bool
	AllowedOrigins []string

	// CouchDB configuration
	CouchDBURL      string
	CouchDBName     string
	CouchDBUsername string
	CouchDBPassword string
	CouchDBTimeout  time.Duration

	// Schedule configuration
	RefreshSchedule string // cron expression with seconds, or "off"
	DigestSchedule  string // "daily", "weekly" or "off"
	TimeZone        string

	// Deleted-post archive: Azure when an account is set, otherwise ArchiveDir when set
	StorageAccount   string
	StorageContainer string
	ArchiveDir       string

	// Notification configuration
	TeamsWebhookURL   string
	NotificationEmail string
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		Debug:          getBoolEnv("DEBUG", false),
		AllowedOrigins: getSliceEnv("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),

		CouchDBURL:      getEnv("COUCHDB_URL", "http://localhost:5984"),
		CouchDBName:     getEnv("COUCHDB_DB_NAME", "todaytrend"),
		CouchDBUsername: getEnv("COUCHDB_USERNAME", ""),
		CouchDBPassword: getEnv("COUCHDB_PASSWORD", ""),
		CouchDBTimeout:  time.Duration(getIntEnv("COUCHDB_TIMEOUT_SECONDS", 30)) * time.Second,

		RefreshSchedule: getEnv("REFRESH_SCHEDULE", "0 */5 * * * *"),
		DigestSchedule:  getEnv("DIGEST_SCHEDULE", ScheduleOff),
		TimeZone:        getEnv("TIMEZONE", "UTC"),

		StorageAccount:   getEnv("AZURE_STORAGE_ACCOUNT", ""),
		StorageContainer: getEnv("AZURE_STORAGE_CONTAINER", "deleted-posts"),
		ArchiveDir:       getEnv("ARCHIVE_DIR", ""),

		TeamsWebhookURL:   getEnv("TEAMS_WEBHOOK_URL", ""),
		NotificationEmail: getEnv("NOTIFICATION_EMAIL", ""),
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          getIntEnv("SMTP_PORT", 587),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
	}

	// Validate required configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// ArchiveEnabled reports whether deleted posts are archived
func (c *Config) ArchiveEnabled() bool {
	return c.StorageAccount != "" || c.ArchiveDir != ""
}

// NotificationsEnabled reports whether any digest channel is configured
func (c *Config) NotificationsEnabled() bool {
	return c.TeamsWebhookURL != "" || c.NotificationEmail != ""
}

// Location returns the configured time zone
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) validate() error {
	parsed, err := url.Parse(c.CouchDBURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("COUCHDB_URL must be an absolute URL, got %q", c.CouchDBURL)
	}

	if strings.TrimSpace(c.CouchDBName) == "" {
		return fmt.Errorf("COUCHDB_DB_NAME must not be empty")
	}

	if c.CouchDBTimeout <= 0 {
		return fmt.Errorf("COUCHDB_TIMEOUT_SECONDS must be positive")
	}

	if c.RefreshSchedule != ScheduleOff {
		parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		if _, err := parser.Parse(c.RefreshSchedule); err != nil {
			return fmt.Errorf("REFRESH_SCHEDULE is not a valid cron expression: %w", err)
		}
	}

	if c.DigestSchedule != "daily" && c.DigestSchedule != "weekly" && c.DigestSchedule != ScheduleOff {
		return fmt.Errorf("DIGEST_SCHEDULE must be 'daily', 'weekly' or 'off'")
	}

	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("TIMEZONE is not a known location: %w", err)
	}

	if c.DigestSchedule != ScheduleOff && !c.NotificationsEnabled() {
		return fmt.Errorf("at least one notification method must be configured (TEAMS_WEBHOOK_URL or NOTIFICATION_EMAIL) when DIGEST_SCHEDULE is set")
	}

	if c.NotificationEmail != "" {
		if c.SMTPHost == "" || c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("SMTP configuration is required when NOTIFICATION_EMAIL is set")
		}
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
