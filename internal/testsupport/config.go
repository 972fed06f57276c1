package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"comfyctl/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The workflow template path points at a copy of SampleWorkflow.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Workflow.TemplatePath = WriteWorkflow(t, base, SampleWorkflow)
	cfgVal.Server.Address = "127.0.0.1:8188"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithServer points the config at the given host:port.
func WithServer(address string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Server.Address = address
	}
}

// WithWorkflow replaces the template file contents.
func WithWorkflow(data string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workflow.TemplatePath = WriteWorkflow(b.t, b.baseDir, data)
	}
}

// WithPreviewPolicy sets the tracker preview policy.
func WithPreviewPolicy(policy string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Tracker.PreviewPolicy = policy
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}

// WriteConfig serialises cfg as TOML at path.
func WriteConfig(t testing.TB, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}
