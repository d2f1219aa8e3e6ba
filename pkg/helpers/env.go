// Package helpers holds small utilities shared by the docqa packages.
package helpers

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// GetStringFromEnv returns the value of key, or defaultValue when unset or empty.
//
// Example:
//
//	dir := helpers.GetStringFromEnv("UPLOAD_DIR", "./uploads")
func GetStringFromEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetFirstStringFromEnv returns the first non-empty value among keys, or
// defaultValue when none is set.
//
// Example:
//
//	apiKey := helpers.GetFirstStringFromEnv("", "GEMINI_API_KEY", "GOOGLE_API_KEY")
func GetFirstStringFromEnv(defaultValue string, keys ...string) string {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return defaultValue
}

// GetIntFromEnv parses key as an int. Unset or malformed values yield defaultValue.
func GetIntFromEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return n
		}
	}
	return defaultValue
}

// GetInt64FromEnv parses key as an int64. Unset or malformed values yield defaultValue.
func GetInt64FromEnv(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}

// GetBoolFromEnv parses key with strconv.ParseBool. Unset or malformed values
// yield defaultValue.
func GetBoolFromEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

// GetDurationFromEnv parses key with time.ParseDuration. Unset or malformed
// values yield defaultValue.
//
// Example:
//
//	ttl := helpers.GetDurationFromEnv("EMBED_CACHE_TTL", 24*time.Hour)
func GetDurationFromEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return defaultValue
}

// FirstNonEmpty returns the first non-empty string, or "" if all are empty.
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
