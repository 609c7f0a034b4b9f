package config

import (
	"errors"
	"fmt"

	"appshell/internal/domain"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateEngine(); err != nil {
		return err
	}
	if err := c.validateChat(); err != nil {
		return err
	}
	if err := c.validateWindow(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateEngine() error {
	if c.Engine.TimeoutSeconds <= 0 {
		return errors.New("engine.timeout_seconds must be positive")
	}
	if c.Engine.DiagnosticLimit <= 0 {
		return errors.New("engine.diagnostic_limit must be positive")
	}
	if _, ok := domain.LookupEngineModel(c.Engine.Model); !ok {
		return fmt.Errorf("engine.model: unknown model %q", c.Engine.Model)
	}
	return nil
}

func (c *Config) validateChat() error {
	if c.Chat.Port <= 0 || c.Chat.Port > 65535 {
		return fmt.Errorf("chat.port must be between 1 and 65535, got %d", c.Chat.Port)
	}
	return nil
}

func (c *Config) validateWindow() error {
	w := c.Window
	if w.Width <= 0 || w.Height <= 0 || w.CompactWidth <= 0 || w.CompactHeight <= 0 {
		return errors.New("window sizes must be positive")
	}
	if w.MinWidth > w.CompactWidth || w.MinHeight > w.CompactHeight {
		return errors.New("window minimum size must not exceed the compact size")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "auto", "console", "text", "json":
		return nil
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
}
