package config

import (
	"fmt"
	"net/url"
	"strings"

	"dealdesk/internal/services"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateAPI() error {
	parsed, err := url.Parse(c.API.BaseURL)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "config", "api.base_url", "invalid URL", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return services.Wrap(services.ErrConfiguration, "config", "api.base_url", fmt.Sprintf("scheme must be http or https, got %q", parsed.Scheme), nil)
	}
	if parsed.Host == "" {
		return services.Wrap(services.ErrConfiguration, "config", "api.base_url", "host is required", nil)
	}
	if c.API.RequestTimeoutSeconds < 1 || c.API.RequestTimeoutSeconds > maxRequestTimeoutSeconds {
		return services.Wrap(services.ErrConfiguration, "config", "api.request_timeout_seconds",
			fmt.Sprintf("must be between 1 and %d", maxRequestTimeoutSeconds), nil)
	}
	if c.API.ExtractPath == c.API.ExportPath {
		return services.Wrap(services.ErrConfiguration, "config", "api", "extract_path and export_path must differ", nil)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	topic := c.Notifications.NtfyTopic
	if topic == "" {
		return nil
	}
	if !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return services.Wrap(services.ErrConfiguration, "config", "notifications.ntfy_topic", "must be a full http(s) URL", nil)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return services.Wrap(services.ErrConfiguration, "config", "logging.level",
			fmt.Sprintf("unsupported value %q (use debug, info, warn, or error)", c.Logging.Level), nil)
	}
}
