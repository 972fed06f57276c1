package main

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/gofrs/flock"
)

func TestStatsShowsDevices(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := env.run(t, "stats")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	requireContains(t, out, "RTX 4090")
	requireContains(t, out, "GiB")
	requireContains(t, out, "3.11.9")
}

func TestCatalogCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := env.run(t, "embeddings")
	if err != nil {
		t.Fatalf("embeddings: %v", err)
	}
	requireContains(t, out, "easynegative")

	out, _, err = env.run(t, "extensions")
	if err != nil {
		t.Fatalf("extensions: %v", err)
	}
	requireContains(t, out, "widgetInputs.js")

	out, _, err = env.run(t, "object-info", "KSampler")
	if err != nil {
		t.Fatalf("object-info: %v", err)
	}
	requireContains(t, out, `"category": "sampling"`)

	out, _, err = env.run(t, "--json", "object-info")
	if err != nil {
		t.Fatalf("object-info list: %v", err)
	}
	var names []string
	decodeJSON(t, out, &names)
	if !slices.Equal(names, []string{"KSampler"}) {
		t.Fatalf("unexpected classes %v", names)
	}
}

func TestUploadAndView(t *testing.T) {
	env := setupCLITestEnv(t)
	src := filepath.Join(t.TempDir(), "cat.png")
	if err := os.WriteFile(src, []byte("\x89PNG\r\n\x1a\nfake"), 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}

	out, _, err := env.run(t, "upload", "image", "--subfolder", "refs", src)
	if err != nil {
		t.Fatalf("upload image: %v", err)
	}
	requireContains(t, out, "refs/cat.png")

	if _, _, err := env.run(t, "upload", "mask", "--original", "input:refs/cat.png", src); err != nil {
		t.Fatalf("upload mask: %v", err)
	}
	if got := env.server.Uploads(); !slices.Equal(got, []string{"cat.png", "cat.png"}) {
		t.Fatalf("unexpected uploads %v", got)
	}

	dest := filepath.Join(t.TempDir(), "result.png")
	out, _, err = env.run(t, "view", "-o", dest, "output:ComfyUI_00001_.png")
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	requireContains(t, out, "Saved "+dest)
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read download: %v", err)
	}
	if string(data) != "\x89PNG\r\n\x1a\nComfyUI_00001_.png" {
		t.Fatalf("unexpected download %q", data)
	}

	missing := filepath.Join(t.TempDir(), "missing.png")
	if _, _, err := env.run(t, "view", "-o", missing, "missing.png"); err == nil {
		t.Fatal("expected error for missing file")
	}
	if _, err := os.Stat(missing); !os.IsNotExist(err) {
		t.Fatalf("failed download should leave no file, stat err=%v", err)
	}
}

func TestParseImageRef(t *testing.T) {
	cases := []struct {
		in        string
		filename  string
		subfolder string
		kind      string
		wantErr   bool
	}{
		{in: "cat.png", filename: "cat.png", kind: "output"},
		{in: "temp:previews/p.png", filename: "p.png", subfolder: "previews", kind: "temp"},
		{in: "input:a/b/c.png", filename: "c.png", subfolder: "a/b", kind: "input"},
		{in: "bogus:x.png", wantErr: true},
		{in: "refs/", wantErr: true},
	}
	for _, tc := range cases {
		ref, err := parseImageRef(tc.in, "output")
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%q: expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: %v", tc.in, err)
		}
		if ref.Filename != tc.filename || ref.Subfolder != tc.subfolder || ref.Type != tc.kind {
			t.Fatalf("%q: unexpected ref %+v", tc.in, ref)
		}
	}
}

func TestWatchRefusesSecondSession(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.MkdirAll(env.cfg.Paths.StateDir, 0o755); err != nil {
		t.Fatalf("mkdir state: %v", err)
	}
	lock := flock.New(env.cfg.SessionLockPath())
	ok, err := lock.TryLock()
	if err != nil || !ok {
		t.Fatalf("lock: ok=%v err=%v", ok, err)
	}
	defer lock.Unlock()

	_, _, err = env.run(t, "watch", "--client-id", "someone")
	if err == nil {
		t.Fatal("expected error while another session holds the lock")
	}
	requireContains(t, err.Error(), "already running")
}

func TestDoctorPassesAgainstServer(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := env.run(t, "doctor")
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, out)
	}
	requireContains(t, out, "[OK]")
	if strings.Contains(out, "[FAIL]") {
		t.Fatalf("unexpected failure in %q", out)
	}
}
