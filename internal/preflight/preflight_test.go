package preflight

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"comfyctl/internal/comfy"
	"comfyctl/internal/config"
	"comfyctl/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckTemplate(t *testing.T) {
	dir := t.TempDir()
	good := testsupport.WriteWorkflow(t, dir, testsupport.SampleWorkflow)
	result := CheckTemplate(good, config.DefaultTitles())
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if !strings.Contains(result.Detail, "image input") {
		t.Fatalf("expected image input detail, got: %s", result.Detail)
	}

	titles := config.DefaultTitles()
	titles.Sampler = "Missing Sampler"
	result = CheckTemplate(good, titles)
	if result.Passed || !strings.Contains(result.Detail, "Missing Sampler") {
		t.Fatalf("expected missing title failure, got: %+v", result)
	}

	result = CheckTemplate(filepath.Join(dir, "absent.json"), config.DefaultTitles())
	if result.Passed {
		t.Fatal("expected failure for missing template")
	}
}

func TestCheckServerAndStream(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/system_stats":
			_, _ = io.WriteString(w, `{"system":{"os":"posix","python_version":"3.11"},"devices":[{"name":"cuda:0"}]}`)
		case "/ws":
			conn, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			defer conn.Close()
			_, _, _ = conn.ReadMessage()
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client, err := comfy.New(strings.TrimPrefix(srv.URL, "http://"), false)
	if err != nil {
		t.Fatal(err)
	}
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}

	results := RunAll(context.Background(), cfg, client)
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
	for _, r := range results {
		if !r.Passed {
			t.Errorf("%s failed: %s", r.Name, r.Detail)
		}
	}
	if Failed(results) != 0 {
		t.Fatalf("expected no failures")
	}
	if !strings.Contains(results[3].Detail, "1 device)") {
		t.Fatalf("unexpected server detail: %s", results[3].Detail)
	}
}

func TestCheckServerUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := strings.TrimPrefix(srv.URL, "http://")
	srv.Close()

	client, err := comfy.New(addr, false)
	if err != nil {
		t.Fatal(err)
	}
	if result := CheckServer(context.Background(), client); result.Passed {
		t.Fatal("expected failure for closed server")
	}
	if result := CheckStream(context.Background(), client.StreamURL("x"), 0); result.Passed {
		t.Fatal("expected stream failure for closed server")
	}
}
