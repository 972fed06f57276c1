package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateTracker(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateServer() error {
	if _, _, err := net.SplitHostPort(c.Server.Address); err != nil {
		return fmt.Errorf("server.address must be host:port: %w", err)
	}
	if err := ensurePositiveMap(map[string]int{
		"server.request_timeout":   c.Server.RequestTimeout,
		"server.handshake_timeout": c.Server.HandshakeTimeout,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.width":      c.Workflow.Width,
		"workflow.height":     c.Workflow.Height,
		"workflow.batch_size": c.Workflow.BatchSize,
		"workflow.steps":      c.Workflow.Steps,
	}); err != nil {
		return err
	}
	if strings.TrimSpace(c.Workflow.Checkpoint) == "" {
		return errors.New("workflow.checkpoint must be set")
	}
	return nil
}

func (c *Config) validateTracker() error {
	if c.Tracker.IdleTimeout < 0 {
		return errors.New("tracker.idle_timeout must be >= 0")
	}
	switch c.Tracker.PreviewPolicy {
	case PreviewStop, PreviewIgnore:
		return nil
	default:
		return fmt.Errorf("tracker.preview_policy must be %q or %q, got %q", PreviewStop, PreviewIgnore, c.Tracker.PreviewPolicy)
	}
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
