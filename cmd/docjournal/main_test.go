package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		convModID, convTitle, convOut, convTOCTitle, convPolicy, convPrint = "", "", "", "", "", false
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func writeDoc(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

const guide = "# Basics\n\n## Install\n\nRun it.\n\n## Usage\n\nCall it.\n\n# Reference\n\nAll of it.\n"

func TestConvertAndValidateModule(t *testing.T) {
	doc := writeDoc(t, "guide.md", guide)
	out := t.TempDir()

	stdout, err := run(t, "convert", doc, "--mod-id", "guide", "--out", out, "--print")
	if err != nil {
		t.Fatalf("convert: %v\n%s", err, stdout)
	}
	var entries []map[string]any
	if err := json.Unmarshal([]byte(stdout), &entries); err != nil {
		t.Fatalf("expected JSON entries on stdout: %v\n%s", err, stdout)
	}
	if len(entries) != 3 {
		t.Errorf("expected 2 chapters plus toc, got %d", len(entries))
	}
	if _, err := os.Stat(filepath.Join(out, "guide", "module.json")); err != nil {
		t.Errorf("expected module.json: %v", err)
	}

	stdout, err = run(t, "validate", filepath.Join(out, "guide"))
	if err != nil {
		t.Fatalf("validate: %v\n%s", err, stdout)
	}
	if strings.TrimSpace(stdout) != "ok" {
		t.Errorf("expected ok, got %q", stdout)
	}
}

func TestValidateDocument(t *testing.T) {
	doc := writeDoc(t, "guide.md", guide)
	stdout, err := run(t, "validate", doc, "--mod-id", "guide")
	if err != nil {
		t.Fatalf("validate: %v\n%s", err, stdout)
	}
	if strings.TrimSpace(stdout) != "ok" {
		t.Errorf("expected ok, got %q", stdout)
	}
}

func TestConvertErrors(t *testing.T) {
	doc := writeDoc(t, "guide.md", guide)
	tests := []struct {
		name string
		args []string
	}{
		{"missing mod id", []string{"convert", doc, "--print"}},
		{"unknown policy", []string{"convert", doc, "--mod-id", "m", "--policy", "shuffle"}},
		{"unsupported file", []string{"convert", writeDoc(t, "x.exe", "MZ"), "--mod-id", "m"}},
		{"no args", []string{"convert"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, tt.args...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestVersion(t *testing.T) {
	stdout, err := run(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(stdout, "docjournal dev") {
		t.Errorf("unexpected version output %q", stdout)
	}
}
