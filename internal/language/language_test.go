package language

import (
	"os"
	"path/filepath"
	"testing"
)

func write(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(filepath.Join(dir, name)), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestAnalyzeTalliesByExtension(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "main.go", "package main\n\nfunc main() {}\n")
	write(t, dir, "lib.py", "def f():\n    pass\n")

	b, err := Analyze(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b["Go"] == 0 {
		t.Fatalf("expected Go to be tallied, got %v", b)
	}
	if b["Python"] == 0 {
		t.Fatalf("expected Python to be tallied, got %v", b)
	}
}

func TestAnalyzeSkipsVendorAndGitDirs(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "main.go", "package main\n")
	write(t, dir, "vendor/dep/file.go", "package dep\n")
	write(t, dir, ".git/objects/foo", "binary-ish")

	b, err := Analyze(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	total := int64(0)
	for _, v := range b {
		total += v
	}
	mainSize := int64(len("package main\n"))
	if total != mainSize {
		t.Fatalf("expected only main.go counted (%d bytes), got total %d across %v", mainSize, total, b)
	}
}

func TestBreakdownPrimaryPicksLargestTally(t *testing.T) {
	b := Breakdown{"Go": 100, "Python": 500, "Markdown": 10}
	if got := b.Primary(); got != "Python" {
		t.Fatalf("got %q", got)
	}
}

func TestBreakdownPrimaryOnEmptyIsEmptyString(t *testing.T) {
	var b Breakdown
	if got := b.Primary(); got != "" {
		t.Fatalf("got %q", got)
	}
}
