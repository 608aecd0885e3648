package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// newEnvLookup returns a lookup that prefers the process environment and
// falls back to values from dotenvPath. A missing or unreadable file yields
// a lookup backed by the process environment only.
func newEnvLookup(dotenvPath string) func(string) (string, bool) {
	var fileValues map[string]string
	if strings.TrimSpace(dotenvPath) != "" {
		if _, err := os.Stat(dotenvPath); err == nil {
			if values, err := godotenv.Read(dotenvPath); err == nil {
				fileValues = values
			}
		}
	}
	return func(key string) (string, bool) {
		if value, ok := os.LookupEnv(key); ok {
			return value, true
		}
		value, ok := fileValues[key]
		return value, ok
	}
}

func (c *Config) lookupEnv(key string) (string, bool) {
	if c.env == nil {
		return os.LookupEnv(key)
	}
	return c.env(key)
}
