package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// lookup parses an environment variable, falling back to the default when
// the variable is unset or malformed.
func lookup[T any](key string, parse func(string) (T, error), defaultVal T) T {
	value, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	parsed, err := parse(value)
	if err != nil {
		return defaultVal
	}
	return parsed
}

func getEnv(key, defaultVal string) string {
	return lookup(key, func(v string) (string, error) { return v, nil }, defaultVal)
}

func getEnvAsInt(key string, defaultVal int) int {
	return lookup(key, strconv.Atoi, defaultVal)
}

func getEnvAsBool(key string, defaultVal bool) bool {
	return lookup(key, strconv.ParseBool, defaultVal)
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	return lookup(key, time.ParseDuration, defaultVal)
}

func getEnvAsStringSlice(key string, defaults []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return defaults
	}
	parts := strings.Split(value, ",")
	filtered := make([]string, 0, len(parts))
	for _, part := range parts {
		if p := strings.TrimSpace(part); p != "" {
			filtered = append(filtered, p)
		}
	}
	if len(filtered) == 0 {
		return defaults
	}
	return filtered
}
