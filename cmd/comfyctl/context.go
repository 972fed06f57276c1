package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"comfyctl/internal/comfy"
	"comfyctl/internal/config"
	"comfyctl/internal/logging"
	"comfyctl/internal/queue"
	"comfyctl/internal/workflow"
)

type globalFlags struct {
	config   string
	server   string
	clientID string
	json     bool
}

type commandContext struct {
	flags *globalFlags

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger

	clientOnce sync.Once
	clientID   string
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(strings.TrimSpace(c.flags.config))
		if err != nil {
			c.configErr = err
			return
		}
		if server := strings.TrimSpace(c.flags.server); server != "" {
			if err := cfg.OverrideServer(server); err != nil {
				c.configErr = fmt.Errorf("--server: %w", err)
				return
			}
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// log returns the process logger. Failures to open the log file fall back
// to stderr only.
func (c *commandContext) log() *slog.Logger {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.logger = logging.NewNop()
			return
		}
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			logger, _ = logging.New(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
		}
		if logger == nil {
			logger = logging.NewNop()
		}
		c.logger = logger
	})
	return c.logger
}

// processClientID is stable for the life of the process unless pinned with
// --client-id.
func (c *commandContext) processClientID() string {
	c.clientOnce.Do(func() {
		c.clientID = strings.TrimSpace(c.flags.clientID)
		if c.clientID == "" {
			c.clientID = uuid.NewString()
		}
	})
	return c.clientID
}

func (c *commandContext) jsonOutput() bool {
	return c.flags.json
}

func (c *commandContext) newClient() (*comfy.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return comfy.New(cfg.Server.Address, cfg.Server.Secure, comfy.WithTimeout(cfg.RequestTimeout()))
}

func (c *commandContext) withClient(fn func(*comfy.Client) error) error {
	client, err := c.newClient()
	if err != nil {
		return err
	}
	return fn(client)
}

func (c *commandContext) openStore() (*queue.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open job ledger: %w", err)
	}
	return store, nil
}

func (c *commandContext) withStore(fn func(*queue.Store) error) error {
	store, err := c.openStore()
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

// loadBinding reads the template and binds the configured node titles.
func (c *commandContext) loadBinding() (*workflow.Binding, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	graph, err := workflow.Load(cfg.Workflow.TemplatePath)
	if err != nil {
		return nil, err
	}
	return workflow.Bind(graph, workflow.TitlesFromConfig(cfg.Workflow.Titles), workflow.WithLogger(c.log()))
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func commandCtx(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
