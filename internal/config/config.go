package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"finledger/internal/log"
)

type Config struct {
	// Storage
	DataDir           string
	SQLiteBusyTimeout time.Duration

	// Vocabulary file (YAML or JSON); empty uses the embedded default
	VocabularyPath string

	// Analytics policy
	BudgetNearThreshold float64
	GoalPaceTolerance   float64

	// AMQP (optional ledger event fan-out)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Logging
	LogLevel string

	// malformed holds env values Load could not parse; Validate reports them.
	malformed []string
}

func Load() *Config {
	var malformed []string
	return &Config{
		DataDir:           getEnv("DATA_DIR", "./data"),
		SQLiteBusyTimeout: getEnvDuration("SQLITE_BUSY_TIMEOUT", 5*time.Second, &malformed),

		VocabularyPath: getEnv("VOCABULARY_PATH", ""),

		BudgetNearThreshold: getEnvFloat("BUDGET_NEAR_THRESHOLD", 0.9, &malformed),
		GoalPaceTolerance:   getEnvFloat("GOAL_PACE_TOLERANCE", 0.1, &malformed),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "finledger"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_events"),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		malformed: malformed,
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	errors := append([]string(nil), c.malformed...)

	if strings.TrimSpace(c.DataDir) == "" {
		errors = append(errors, "data directory cannot be empty")
	} else if info, err := os.Stat(c.DataDir); err == nil && !info.IsDir() {
		errors = append(errors, fmt.Sprintf("data directory '%s' is not a directory", c.DataDir))
	}

	if c.SQLiteBusyTimeout < 0 {
		errors = append(errors, fmt.Sprintf("invalid SQLite busy timeout %v: must not be negative", c.SQLiteBusyTimeout))
	}

	if c.VocabularyPath != "" {
		if _, err := os.Stat(c.VocabularyPath); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("vocabulary file does not exist: %s", c.VocabularyPath))
		}
	}

	if c.BudgetNearThreshold <= 0 || c.BudgetNearThreshold > 1 {
		errors = append(errors, fmt.Sprintf("invalid budget near threshold %v: must be in (0, 1]", c.BudgetNearThreshold))
	}
	if c.GoalPaceTolerance < 0 || c.GoalPaceTolerance >= 1 {
		errors = append(errors, fmt.Sprintf("invalid goal pace tolerance %v: must be in [0, 1)", c.GoalPaceTolerance))
	}

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

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}

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

func getEnvFloat(key string, defaultValue float64, malformed *[]string) float64 {
	if value := os.Getenv(key); value != "" {
		f, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return f
		}
		*malformed = append(*malformed, fmt.Sprintf("invalid %s '%s': not a number", key, value))
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration, malformed *[]string) time.Duration {
	if value := os.Getenv(key); value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
		*malformed = append(*malformed, fmt.Sprintf("invalid %s '%s': not a duration", key, value))
	}
	return defaultValue
}
