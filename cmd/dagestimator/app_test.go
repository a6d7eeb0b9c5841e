package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func kernelsPath(t *testing.T) string {
	t.Helper()
	path, err := filepath.Abs(filepath.Join("..", "..", "internal", "engine", "frontend", "irjson", "testdata", "kernels.json"))
	if err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeTestConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, defaultConfigName)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestAnalyzeAndHistory(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir, `
input = "`+filepath.ToSlash(kernelsPath(t))+`"

[output]
dir = "out"
json = "report.json"
table = false

[history]
enabled = true
path = "runs.db"
project = "cli"
`)

	out, err := execute(t, "analyze", "--config", cfgPath)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !strings.Contains(out, "saved to history") {
		t.Errorf("expected history note, got %q", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "out", "report.json")); err != nil {
		t.Fatalf("report not written next to the config: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "runs.db")); err != nil {
		t.Fatalf("history not created next to the config: %v", err)
	}

	out, err = execute(t, "history", "list", "--config", cfgPath)
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	if !strings.Contains(out, "kernels") {
		t.Fatalf("expected the run in the listing, got %q", out)
	}

	var report struct {
		RunID string `json:"run_id"`
	}
	data, err := os.ReadFile(filepath.Join(dir, "out", "report.json"))
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(data, &report); err != nil || report.RunID == "" {
		t.Fatalf("unexpected report: %v %s", err, data)
	}
	out, err = execute(t, "history", "show", report.RunID, "--config", cfgPath)
	if err != nil {
		t.Fatalf("history show: %v", err)
	}
	for _, want := range []string{"axpy", "main/loop", "kernels"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in run details, got %q", want, out)
		}
	}

	if _, err := execute(t, "history", "show", "missing", "--config", cfgPath); err == nil {
		t.Error("expected an unknown run id to fail")
	}
}

func TestAnalyzeJSONWithInputArgument(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "absent.toml")
	out, err := execute(t, "analyze", kernelsPath(t), "--json", "--config", cfgPath)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	var report map[string]any
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("stdout is not a JSON report: %v\n%s", err, out)
	}
	if report["program"] != "kernels" {
		t.Errorf("unexpected program: %v", report["program"])
	}
}

func TestAnalyzeWithoutInput(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "absent.toml")
	if _, err := execute(t, "analyze", "--config", cfgPath); err == nil {
		t.Fatal("expected analyze without input to fail")
	}
}

func TestHistoryDisabled(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "absent.toml")
	if _, err := execute(t, "history", "list", "--config", cfgPath); err == nil {
		t.Fatal("expected history to fail when disabled")
	}
}

func TestHealthCommand(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "absent.toml")
	out, err := execute(t, "health", "--config", cfgPath)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	var status struct {
		Status     string            `json:"status"`
		Components map[string]string `json:"components"`
	}
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("invalid health JSON: %v", err)
	}
	if status.Status != "up" || status.Components["input"] != "not configured" {
		t.Errorf("unexpected health: %+v", status)
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "dagestimator v"+VERSION {
		t.Errorf("unexpected version output %q", out)
	}
}

func TestRenderRunsEmpty(t *testing.T) {
	if !strings.Contains(renderRuns(nil), "no runs recorded") {
		t.Error("expected placeholder for an empty history")
	}
}
