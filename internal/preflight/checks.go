package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"comfyctl/internal/comfy"
	"comfyctl/internal/config"
	"comfyctl/internal/stream"
	"comfyctl/internal/workflow"
)

const serverCheckTimeout = 5 * time.Second

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckTemplate verifies the workflow template is readable, parses, and has
// every node the configured titles require.
func CheckTemplate(path string, titles config.Titles) Result {
	const name = "Workflow template"

	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "template path not configured"}
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not readable: %v)", path, err)}
	}
	graph, err := workflow.Load(path)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	binding, err := workflow.Bind(graph, workflow.TitlesFromConfig(titles))
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	extras := ""
	switch {
	case binding.SupportsImage() && binding.SupportsMask():
		extras = ", image and mask inputs"
	case binding.SupportsImage():
		extras = ", image input"
	case binding.SupportsMask():
		extras = ", mask input"
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d nodes%s)", path, graph.Len(), extras)}
}

// CheckServer verifies the HTTP API answers system_stats.
func CheckServer(ctx context.Context, client *comfy.Client) Result {
	const name = "Server API"

	checkCtx, cancel := context.WithTimeout(ctx, serverCheckTimeout)
	defer cancel()

	stats, err := client.SystemStats(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (%s)", client.BaseURL(), summarizeError(err))}
	}
	devices := len(stats.Devices)
	return Result{
		Name:   name,
		Passed: true,
		Detail: fmt.Sprintf("%s (%s, %d device%s)", client.BaseURL(), stats.System.OS, devices, plural(devices)),
	}
}

// CheckStream verifies the progress stream accepts a connection.
func CheckStream(ctx context.Context, url string, handshake time.Duration) Result {
	const name = "Progress stream"

	conn, err := stream.Dial(ctx, stream.DialOptions{URL: url, HandshakeTimeout: handshake})
	if err != nil {
		return Result{Name: name, Detail: summarizeError(err)}
	}
	_ = conn.Close()
	return Result{Name: name, Passed: true, Detail: "handshake ok"}
}

func summarizeError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timed out"
	}
	return err.Error()
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
