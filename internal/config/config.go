// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type Config struct {
	// HTTP
	TrackerPort string
	RelayPort   string

	// TrackerURL is where the relay and worker reach the backend.
	TrackerURL string

	// Storage
	DataBackend  string
	SQLiteDBPath string

	// Google Sheets
	GoogleSpreadsheetID string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Web push
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubscriber string

	// User is the acting identity for CLI-driven mutations.
	User string
}

func Load() *Config {
	return &Config{
		TrackerPort: getEnv("TRACKER_PORT", "8081"),
		RelayPort:   getEnv("RELAY_PORT", "8080"),
		TrackerURL:  getEnv("TRACKER_URL", "http://localhost:8081"),

		DataBackend:  getEnv("DATA_BACKEND", "memory"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/tracker.db"),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "tracker"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "notifications"),

		VAPIDPublicKey:  getEnv("VAPID_PUBLIC_KEY", ""),
		VAPIDPrivateKey: getEnv("VAPID_PRIVATE_KEY", ""),
		VAPIDSubscriber: getEnv("VAPID_SUBSCRIBER", ""),

		User: getEnv("TRACKER_USER", ""),
	}
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	for name, port := range map[string]string{"tracker": c.TrackerPort, "relay": c.RelayPort} {
		if p, err := strconv.Atoi(port); err != nil {
			errs = append(errs, fmt.Sprintf("invalid %s port '%s': must be a number", name, port))
		} else if p < 1 || p > 65535 {
			errs = append(errs, fmt.Sprintf("invalid %s port %d: must be between 1 and 65535", name, p))
		}
	}

	validBackends := []string{"memory", "sqlite", "sheets"}
	valid := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			valid = true
			break
		}
	}
	if !valid {
		errs = append(errs, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errs = append(errs, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errs = append(errs, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.DataBackend == "sheets" && c.GoogleSpreadsheetID == "" {
		errs = append(errs, "Google Spreadsheet ID is required when using sheets backend")
	}

	if c.TrackerURL == "" {
		errs = append(errs, "tracker URL cannot be empty")
	} else if parsed, err := url.Parse(c.TrackerURL); err != nil || parsed.Scheme == "" || parsed.Host == "" {
		errs = append(errs, fmt.Sprintf("invalid tracker URL '%s'", c.TrackerURL))
	}

	if c.AMQPURL != "" {
		if parsed, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsed.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	// Push is all-or-nothing: a partial key pair can only fail at send
	// time.
	hasAnyVAPID := c.VAPIDPublicKey != "" || c.VAPIDPrivateKey != "" || c.VAPIDSubscriber != ""
	hasAllVAPID := c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != "" && c.VAPIDSubscriber != ""
	if hasAnyVAPID && !hasAllVAPID {
		errs = append(errs, "VAPID_PUBLIC_KEY, VAPID_PRIVATE_KEY and VAPID_SUBSCRIBER must all be set to enable push")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

// PushEnabled reports whether web push delivery is configured.
func (c *Config) PushEnabled() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != "" && c.VAPIDSubscriber != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
