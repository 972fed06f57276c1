package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// SampleWorkflow is an API-format text-to-image template whose titles match
// config.DefaultTitles. The sampler seed exceeds 2^53 so precision loss
// shows up in round-trip tests.
const SampleWorkflow = `{
  "3": {
    "inputs": {
      "seed": 18446744073709551000,
      "steps": 20,
      "cfg": 8,
      "sampler_name": "euler",
      "scheduler": "normal",
      "denoise": 1,
      "model": ["4", 0],
      "positive": ["6", 0],
      "negative": ["7", 0],
      "latent_image": ["5", 0]
    },
    "class_type": "KSampler",
    "_meta": {"title": "KSampler"}
  },
  "4": {
    "inputs": {"ckpt_name": "v1-5-pruned-emaonly.ckpt"},
    "class_type": "CheckpointLoaderSimple",
    "_meta": {"title": "Load Checkpoint"}
  },
  "5": {
    "inputs": {"width": 512, "height": 512, "batch_size": 1},
    "class_type": "EmptyLatentImage",
    "_meta": {"title": "Empty Latent Image"}
  },
  "6": {
    "inputs": {"text": "a photo of a cat", "clip": ["4", 1]},
    "class_type": "CLIPTextEncode",
    "_meta": {"title": "Pos Prompt"}
  },
  "7": {
    "inputs": {"text": "blurry", "clip": ["4", 1]},
    "class_type": "CLIPTextEncode",
    "_meta": {"title": "Neg Prompt"}
  },
  "8": {
    "inputs": {"samples": ["3", 0], "vae": ["4", 2]},
    "class_type": "VAEDecode",
    "_meta": {"title": "VAE Decode"}
  },
  "9": {
    "inputs": {"filename_prefix": "ComfyUI", "images": ["8", 0]},
    "class_type": "SaveImage",
    "_meta": {"title": "Save Image"}
  },
  "10": {
    "inputs": {"image": "example.png", "upload": "image"},
    "class_type": "LoadImage",
    "_meta": {"title": "Load Image"}
  }
}`

// WriteWorkflow writes data as workflow_api.json under dir and returns the
// path.
func WriteWorkflow(t testing.TB, dir, data string) string {
	t.Helper()

	path := filepath.Join(dir, "workflow_api.json")
	WriteText(t, path, data)
	return path
}

// WriteText writes data to path, creating parent directories.
func WriteText(t testing.TB, path, data string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
