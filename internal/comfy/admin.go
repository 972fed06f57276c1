package comfy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// SystemInfo describes the server host.
type SystemInfo struct {
	OS             string `json:"os"`
	PythonVersion  string `json:"python_version"`
	EmbeddedPython bool   `json:"embedded_python"`
	ComfyVersion   string `json:"comfyui_version,omitempty"`
	PytorchVersion string `json:"pytorch_version,omitempty"`
	RAMTotal       uint64 `json:"ram_total,omitempty"`
	RAMFree        uint64 `json:"ram_free,omitempty"`
}

// Device describes one compute device.
type Device struct {
	Name           string `json:"name"`
	Type           string `json:"type"`
	Index          *int   `json:"index"`
	VRAMTotal      uint64 `json:"vram_total"`
	VRAMFree       uint64 `json:"vram_free"`
	TorchVRAMTotal uint64 `json:"torch_vram_total"`
	TorchVRAMFree  uint64 `json:"torch_vram_free"`
}

// SystemStats is the GET /system_stats payload.
type SystemStats struct {
	System  SystemInfo `json:"system"`
	Devices []Device   `json:"devices"`
}

// SystemStats fetches host and device information.
func (c *Client) SystemStats(ctx context.Context) (*SystemStats, error) {
	var stats SystemStats
	if err := c.getJSON(ctx, "/system_stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// ObjectInfo returns node class definitions keyed by class name. An empty
// class returns every definition.
func (c *Client) ObjectInfo(ctx context.Context, class string) (map[string]json.RawMessage, error) {
	endpoint := "/object_info"
	if class = strings.TrimSpace(class); class != "" {
		endpoint += "/" + url.PathEscape(class)
	}
	info := make(map[string]json.RawMessage)
	if err := c.getJSON(ctx, endpoint, nil, &info); err != nil {
		return nil, err
	}
	return info, nil
}

// Embeddings lists the embedding names known to the server.
func (c *Client) Embeddings(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.getJSON(ctx, "/embeddings", nil, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// Extensions lists the web extension scripts served by the server.
func (c *Client) Extensions(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.getJSON(ctx, "/extensions", nil, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// ViewOptions selects an artifact for GET /view.
type ViewOptions struct {
	Filename  string
	Subfolder string
	Type      string
	Preview   string
	Channel   string
}

func (o ViewOptions) query() url.Values {
	q := url.Values{"filename": {o.Filename}}
	if o.Type != "" {
		q.Set("type", o.Type)
	}
	if o.Subfolder != "" {
		q.Set("subfolder", o.Subfolder)
	}
	if o.Preview != "" {
		q.Set("preview", o.Preview)
	}
	if o.Channel != "" {
		q.Set("channel", o.Channel)
	}
	return q
}

// View streams an artifact into w and returns the byte count and the
// reported content type.
func (c *Client) View(ctx context.Context, opts ViewOptions, w io.Writer) (int64, string, error) {
	if strings.TrimSpace(opts.Filename) == "" {
		return 0, "", errors.New("view: filename required")
	}
	req, err := c.newRequest(ctx, http.MethodGet, "/view", opts.query(), nil)
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Accept", "*/*")
	resp, err := c.send(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, "", fmt.Errorf("view %s: copy body: %w", opts.Filename, err)
	}
	return n, resp.Header.Get("Content-Type"), nil
}
