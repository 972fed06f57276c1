package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	c.normalizeServer()
	if err := c.normalizeWorkflow(); err != nil {
		return err
	}
	c.normalizeTracker()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeServer() {
	if value, ok := os.LookupEnv("COMFY_SERVER"); ok && strings.TrimSpace(value) != "" {
		c.Server.Address = value
	}
	address, secure := splitScheme(c.Server.Address)
	c.Server.Address = address
	c.Server.Secure = c.Server.Secure || secure
	if c.Server.Address == "" {
		c.Server.Address = defaultServerAddress
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = defaultRequestTimeout
	}
	if c.Server.HandshakeTimeout == 0 {
		c.Server.HandshakeTimeout = defaultHandshakeTimeout
	}
}

func (c *Config) normalizeWorkflow() error {
	if value, ok := os.LookupEnv("COMFY_WORKFLOW"); ok && strings.TrimSpace(value) != "" {
		c.Workflow.TemplatePath = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Workflow.TemplatePath) == "" {
		c.Workflow.TemplatePath = defaultTemplatePath
	}
	var err error
	if c.Workflow.TemplatePath, err = expandPath(c.Workflow.TemplatePath); err != nil {
		return fmt.Errorf("workflow.template_path: %w", err)
	}
	c.Workflow.Checkpoint = strings.TrimSpace(c.Workflow.Checkpoint)

	defaults := DefaultTitles()
	titles := &c.Workflow.Titles
	titles.Checkpoint = fallback(titles.Checkpoint, defaults.Checkpoint)
	titles.PositivePrompt = fallback(titles.PositivePrompt, defaults.PositivePrompt)
	titles.Latent = fallback(titles.Latent, defaults.Latent)
	titles.Sampler = fallback(titles.Sampler, defaults.Sampler)
	titles.Save = fallback(titles.Save, defaults.Save)
	titles.LoadImage = strings.TrimSpace(titles.LoadImage)
	titles.LoadMask = strings.TrimSpace(titles.LoadMask)
	return nil
}

func (c *Config) normalizeTracker() {
	c.Tracker.PreviewPolicy = strings.ToLower(strings.TrimSpace(c.Tracker.PreviewPolicy))
	if c.Tracker.PreviewPolicy == "" {
		c.Tracker.PreviewPolicy = defaultPreviewPolicy
	}
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

// splitScheme strips an http:// or https:// prefix and trailing slashes.
func splitScheme(address string) (string, bool) {
	address = strings.TrimSpace(address)
	secure := false
	switch {
	case strings.HasPrefix(address, "https://"):
		secure = true
		address = strings.TrimPrefix(address, "https://")
	case strings.HasPrefix(address, "http://"):
		address = strings.TrimPrefix(address, "http://")
	}
	return strings.TrimRight(address, "/"), secure
}

func fallback(value, def string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return def
}
