package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Database
	SQLiteDBPath string

	// AMQP (push delivery queue; empty URL disables queueing and pushes
	// are delivered directly)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Push gateway
	ExpoPushURL string

	// Scheduler
	SchedulerCron      string // cron spec for the daily bill run
	UpcomingWindowDays int    // how far ahead the upcoming-bills view looks

	// Low balance job
	LowBalanceThreshold int64 // cents
}

func Load() *Config {
	cfg := &Config{
		Port:         getEnv("PORT", "8081"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/mymoney.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "mymoney"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "push_notifications"),

		ExpoPushURL: getEnv("EXPO_PUSH_URL", "https://exp.host/--/api/v2/push/send"),

		SchedulerCron:      getEnv("SCHEDULER_CRON", "0 8 * * *"),
		UpcomingWindowDays: getEnvInt("UPCOMING_WINDOW_DAYS", 5),

		LowBalanceThreshold: int64(getEnvInt("LOW_BALANCE_THRESHOLD_CENTS", 50000)),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate SQLite path
	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	// Validate push gateway URL
	if c.ExpoPushURL != "" {
		if parsedURL, err := url.Parse(c.ExpoPushURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid Expo push URL '%s': %v", c.ExpoPushURL, err))
		} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid Expo push URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
		}
	}

	// Validate scheduler cron spec (field count only; the cron library
	// does the full parse at startup)
	if fields := strings.Fields(c.SchedulerCron); len(fields) != 5 {
		errors = append(errors, fmt.Sprintf("invalid scheduler cron spec '%s': must have 5 fields", c.SchedulerCron))
	}

	if c.UpcomingWindowDays < 1 {
		errors = append(errors, fmt.Sprintf("invalid upcoming window %d: must be at least 1 day", c.UpcomingWindowDays))
	} else if c.UpcomingWindowDays > 90 {
		errors = append(errors, fmt.Sprintf("invalid upcoming window %d: must be at most 90 days", c.UpcomingWindowDays))
	}

	if c.LowBalanceThreshold < 0 {
		errors = append(errors, fmt.Sprintf("invalid low balance threshold %d: must be zero or positive", c.LowBalanceThreshold))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
