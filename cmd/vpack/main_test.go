package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vango-dev/vpack/internal/config"
)

func run(t *testing.T, args ...string) error {
	t.Helper()
	cmd := newRootCmd()
	cmd.SetArgs(args)
	return cmd.Execute()
}

func TestInitAndBuild(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	if err := run(t, "init"); err != nil {
		t.Fatalf("init error: %v", err)
	}
	if !config.Exists(dir) {
		t.Fatal("vpack.json not created")
	}
	if _, err := os.Stat(filepath.Join(dir, "src", "greeting.js")); err != nil {
		t.Errorf("starter module not created: %v", err)
	}

	// A second init refuses to overwrite.
	if err := run(t, "init"); err == nil {
		t.Error("init should fail when vpack.json exists")
	}
	if err := run(t, "init", "--force"); err != nil {
		t.Errorf("init --force error: %v", err)
	}

	if err := run(t, "build", "--mode=production"); err != nil {
		t.Fatalf("build error: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(dir, config.DefaultOutput))
	if err != nil {
		t.Fatal(err)
	}
	var js int
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".js") {
			js++
		}
	}
	if js != 1 {
		t.Errorf("output has %d scripts, want 1", js)
	}
}

func TestBuild_Failure(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	if err := run(t, "init"); err != nil {
		t.Fatal(err)
	}
	entry := filepath.Join(dir, "src", "index.js")
	if err := os.WriteFile(entry, []byte("require(\"./a\");\nrequire(\"./b\");\n"), 0644); err != nil {
		t.Fatal(err)
	}

	err := run(t, "build")
	if !errors.Is(err, errReported) {
		t.Fatalf("build error = %v, want the reported failure", err)
	}
	if _, err := os.Stat(filepath.Join(dir, config.DefaultOutput)); !os.IsNotExist(err) {
		t.Error("failed build should not write output")
	}
}

func TestBuild_InvalidMode(t *testing.T) {
	t.Chdir(t.TempDir())

	if err := run(t, "init"); err != nil {
		t.Fatal(err)
	}
	if err := run(t, "build", "--mode=staging"); !errors.Is(err, errReported) {
		t.Errorf("build error = %v, want the reported config error", err)
	}
}

func TestBuild_NoConfig(t *testing.T) {
	t.Chdir(t.TempDir())

	if err := run(t, "build"); !errors.Is(err, errReported) {
		t.Errorf("build error = %v, want the reported missing config", err)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{1536, "1.5 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func runOut(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestBuild_JSONReport(t *testing.T) {
	t.Chdir(t.TempDir())
	if err := run(t, "init"); err != nil {
		t.Fatal(err)
	}

	out, err := runOut(t, "build", "--json")
	if err != nil {
		t.Fatalf("build --json error: %v", err)
	}
	var rep buildReport
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("report is not JSON: %v\n%s", err, out)
	}
	if !rep.OK || rep.Hash == "" || rep.Modules != 2 {
		t.Errorf("report = %+v", rep)
	}
	if len(rep.Assets) != 1 || !strings.HasSuffix(rep.Assets[0].Path, ".js") || rep.Assets[0].Size == 0 {
		t.Errorf("assets = %+v", rep.Assets)
	}
	if len(rep.Errors) != 0 {
		t.Errorf("errors = %s", rep.Errors)
	}
}

func TestBuild_JSONReportFailure(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if err := run(t, "init"); err != nil {
		t.Fatal(err)
	}
	entry := filepath.Join(dir, "src", "index.js")
	if err := os.WriteFile(entry, []byte("require(\"./a\");\nrequire(\"./b\");\n"), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := runOut(t, "build", "--json")
	if !errors.Is(err, errReported) {
		t.Fatalf("build error = %v, want the reported failure", err)
	}
	var rep struct {
		OK     bool `json:"ok"`
		Errors []struct {
			Code     string `json:"code"`
			Category string `json:"category"`
			Detail   string `json:"detail"`
		} `json:"errors"`
	}
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("report is not JSON: %v\n%s", err, out)
	}
	if rep.OK || len(rep.Errors) != 2 {
		t.Fatalf("report = %+v, want two errors", rep)
	}
	for i, spec := range []string{"./a", "./b"} {
		if rep.Errors[i].Code != "E200" || !strings.Contains(rep.Errors[i].Detail, spec) {
			t.Errorf("errors[%d] = %+v, want E200 for %s", i, rep.Errors[i], spec)
		}
	}
}

func TestBuild_JSONReportNoConfig(t *testing.T) {
	t.Chdir(t.TempDir())

	out, err := runOut(t, "build", "--json")
	if !errors.Is(err, errReported) {
		t.Fatalf("build error = %v, want the reported failure", err)
	}
	if !strings.Contains(out, `"code": "E101"`) {
		t.Errorf("report should carry E101:\n%s", out)
	}
}

func TestVersion(t *testing.T) {
	out, err := runOut(t, "version", "--short")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != version {
		t.Errorf("version --short = %q, want %q", out, version)
	}

	out, err = runOut(t, "version", "--json")
	if err != nil {
		t.Fatal(err)
	}
	var v versionInfo
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("version --json is not JSON: %v\n%s", err, out)
	}
	if v.Version != version || v.Go == "" || !strings.Contains(v.Platform, "/") {
		t.Errorf("version info = %+v", v)
	}

	var buf bytes.Buffer
	if err := printVersion(&buf, versionInfo{Version: "1.2.0", Commit: "abc", Built: "today", Go: "go1.24", Platform: "linux/amd64"}, false, false); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"vpack 1.2.0 (abc, built today)", "esbuild  unknown", "go1.24 linux/amd64"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("version output missing %q:\n%s", want, buf.String())
		}
	}
}
