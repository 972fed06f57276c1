package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Server contains connection settings for the generation server.
type Server struct {
	Address          string `toml:"address"`
	Secure           bool   `toml:"secure"`
	RequestTimeout   int    `toml:"request_timeout"`
	HandshakeTimeout int    `toml:"handshake_timeout"`
}

// Titles names the workflow nodes bound for every submitted job. Lookups are
// case-insensitive.
type Titles struct {
	Checkpoint     string `toml:"checkpoint"`
	PositivePrompt string `toml:"positive_prompt"`
	Latent         string `toml:"latent"`
	Sampler        string `toml:"sampler"`
	Save           string `toml:"save"`
	LoadImage      string `toml:"load_image"`
	LoadMask       string `toml:"load_mask"`
}

// Workflow contains the template location and per-job defaults.
type Workflow struct {
	TemplatePath string `toml:"template_path"`
	Checkpoint   string `toml:"checkpoint"`
	Width        int    `toml:"width"`
	Height       int    `toml:"height"`
	BatchSize    int    `toml:"batch_size"`
	Steps        int    `toml:"steps"`
	Titles       Titles `toml:"titles"`
}

// Tracker contains live progress tracking policy.
type Tracker struct {
	// IdleTimeout ends a tracking session when no frame arrives for this many
	// seconds. Zero disables the fallback and the session waits indefinitely.
	IdleTimeout int `toml:"idle_timeout"`
	// PreviewPolicy is "stop" (end the session on the first binary preview
	// frame) or "ignore".
	PreviewPolicy string `toml:"preview_policy"`
}

// Paths contains directory configuration.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for comfyctl.
//
// Configuration sections by subsystem:
//   - Server: address and request/handshake timeouts
//   - Workflow: template path, job defaults, node titles
//   - Tracker: progress stream policy
//   - Paths: ledger/state and log directories
//   - Logging: log format and level
type Config struct {
	Server   Server   `toml:"server"`
	Workflow Workflow `toml:"workflow"`
	Tracker  Tracker  `toml:"tracker"`
	Paths    Paths    `toml:"paths"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	if err := loadDotEnv(); err != nil {
		return nil, "", false, err
	}

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// loadDotEnv reads .env from the working directory without overriding
// variables that are already set.
func loadDotEnv() error {
	if _, err := os.Stat(".env"); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat .env: %w", err)
	}
	if err := godotenv.Load(".env"); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("comfyctl.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// OverrideServer replaces the server address, accepting the same forms as
// server.address, and revalidates the server section.
func (c *Config) OverrideServer(address string) error {
	address, secure := splitScheme(address)
	if address == "" {
		return nil
	}
	c.Server.Address = address
	c.Server.Secure = secure
	return c.validateServer()
}

// LedgerPath returns the SQLite job ledger location.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.StateDir, "jobs.db")
}

// SessionLockPath returns the lock file guarding live tracking sessions.
func (c *Config) SessionLockPath() string {
	return filepath.Join(c.Paths.StateDir, "watch.lock")
}

// RequestTimeout returns the per-request HTTP timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeout) * time.Second
}

// HandshakeTimeout returns the stream connection handshake timeout.
func (c *Config) HandshakeTimeout() time.Duration {
	return time.Duration(c.Server.HandshakeTimeout) * time.Second
}

// IdleTimeout returns the tracker idle fallback; zero means disabled.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.Tracker.IdleTimeout) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
