package license

import (
	"os"
	"path/filepath"
	"testing"
)

func write(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDetectMIT(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "LICENSE", "MIT License\n\nCopyright (c) 2026")
	if got := Detect(dir); got != "MIT" {
		t.Fatalf("got %q", got)
	}
}

func TestDetectGPLVersion(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "LICENSE", "GNU GENERAL PUBLIC LICENSE\nVersion 3, 29 June 2007")
	if got := Detect(dir); got != "GPL-3.0" {
		t.Fatalf("got %q", got)
	}
}

func TestDetectNoLicenseFile(t *testing.T) {
	dir := t.TempDir()
	if got := Detect(dir); got != None {
		t.Fatalf("got %q", got)
	}
}

func TestDetectUnrecognizedContent(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "LICENCE.md", "All rights reserved.")
	if got := Detect(dir); got != Other {
		t.Fatalf("got %q", got)
	}
}

func TestDetectBSDNotMistakenForMIT(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "LICENSE", "Redistribution and use in source and binary forms, with or without\nmodification, are permitted provided that the following conditions are met")
	if got := Detect(dir); got != "BSD" {
		t.Fatalf("got %q", got)
	}
}

func TestDetectFileReportsCopying(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "COPYING", "GNU GENERAL PUBLIC LICENSE\nVersion 2, June 1991")
	key, file := DetectFile(dir)
	if key != "GPL-2.0" || file != "COPYING" {
		t.Fatalf("got %q %q", key, file)
	}
}
