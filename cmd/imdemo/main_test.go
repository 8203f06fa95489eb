package main

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func TestRun(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "frame.png")
	atlas := filepath.Join(dir, "atlas.png")
	if err := run(160, 90, 2, 2, out, atlas); err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, path := range []string{out, atlas} {
		f, err := os.Open(path)
		if err != nil {
			t.Fatalf("open %s: %v", path, err)
		}
		img, err := png.Decode(f)
		_ = f.Close()
		if err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
		if img.Bounds().Empty() {
			t.Errorf("%s is empty", path)
		}
		if path == out && img.Bounds().Dx() != 160 {
			t.Errorf("frame width = %d, want 160", img.Bounds().Dx())
		}
	}
}

func TestRunInvalid(t *testing.T) {
	if err := run(0, 90, 1, 2, filepath.Join(t.TempDir(), "x.png"), ""); err == nil {
		t.Error("run() accepted a zero width")
	}
	if err := run(16, 16, 1, 0, filepath.Join(t.TempDir(), "x.png"), ""); err == nil {
		t.Error("run() accepted zero frames in flight")
	}
}
