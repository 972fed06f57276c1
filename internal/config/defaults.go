package config

const (
	defaultConfigPath       = "~/.config/comfyctl/config.toml"
	defaultServerAddress    = "127.0.0.1:8188"
	defaultRequestTimeout   = 30
	defaultHandshakeTimeout = 10
	defaultTemplatePath     = "~/.config/comfyctl/workflow_api.json"
	defaultCheckpoint       = "SD1-5/sd_v1-5_vae.ckpt"
	defaultWidth            = 512
	defaultHeight           = 640
	defaultBatchSize        = 4
	defaultSteps            = 50
	defaultPreviewPolicy    = PreviewStop
	defaultStateDir         = "~/.local/share/comfyctl"
	defaultLogDir           = "~/.local/share/comfyctl/logs"
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
)

// Preview policies accepted by tracker.preview_policy.
const (
	PreviewStop   = "stop"
	PreviewIgnore = "ignore"
)

// DefaultTitles returns the node titles used by the stock text-to-image template.
func DefaultTitles() Titles {
	return Titles{
		Checkpoint:     "Load Checkpoint",
		PositivePrompt: "Pos Prompt",
		Latent:         "Empty Latent Image",
		Sampler:        "KSampler",
		Save:           "Save Image",
		LoadImage:      "Load Image",
		LoadMask:       "Load Image (as Mask)",
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Server: Server{
			Address:          defaultServerAddress,
			RequestTimeout:   defaultRequestTimeout,
			HandshakeTimeout: defaultHandshakeTimeout,
		},
		Workflow: Workflow{
			TemplatePath: defaultTemplatePath,
			Checkpoint:   defaultCheckpoint,
			Width:        defaultWidth,
			Height:       defaultHeight,
			BatchSize:    defaultBatchSize,
			Steps:        defaultSteps,
			Titles:       DefaultTitles(),
		},
		Tracker: Tracker{
			PreviewPolicy: defaultPreviewPolicy,
		},
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
