package pkg_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/frostyard/nbc-bootctl/pkg"
)

func TestExists(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "present")
	if err := os.WriteFile(present, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !pkg.Exists(present) {
		t.Error("expected Exists to report true for a present file")
	}
	if pkg.Exists(filepath.Join(dir, "absent")) {
		t.Error("expected Exists to report false for an absent file")
	}
}

func TestFilesMatch(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	c := filepath.Join(dir, "c")
	if err := os.WriteFile(a, []byte("same content"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, []byte("same content"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(c, []byte("different"), 0o644); err != nil {
		t.Fatal(err)
	}

	match, err := pkg.FilesMatch(a, b)
	if err != nil || !match {
		t.Errorf("FilesMatch(a, b) = %v, %v, want true, nil", match, err)
	}

	match, err = pkg.FilesMatch(a, c)
	if err != nil || match {
		t.Errorf("FilesMatch(a, c) = %v, %v, want false, nil", match, err)
	}

	match, err = pkg.FilesMatch(a, filepath.Join(dir, "missing"))
	if err != nil || match {
		t.Errorf("FilesMatch against a missing file = %v, %v, want false, nil", match, err)
	}

	if _, err := pkg.FilesMatch(filepath.Join(dir, "missing"), b); err == nil {
		t.Error("expected an error when the source file is missing")
	}
}

func TestCopyAtomic(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	if err := os.WriteFile(src, []byte("kernel blob"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := pkg.CopyAtomic(src, dst, 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "kernel blob" {
		t.Errorf("dst contents = %q, want %q", got, "kernel blob")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" || (len(e.Name()) > 0 && e.Name()[0] == '.') {
			t.Errorf("expected no leftover temp file, found %s", e.Name())
		}
	}
}

func TestWriteTextIfChanged(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config")

	changed, err := pkg.WriteTextIfChanged(path, "first")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !changed {
		t.Error("expected a write when the file does not exist yet")
	}

	changed, err = pkg.WriteTextIfChanged(path, "first")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if changed {
		t.Error("expected no write when the content is unchanged")
	}

	changed, err = pkg.WriteTextIfChanged(path, "second")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !changed {
		t.Error("expected a write when the content changed")
	}

	got, err := pkg.ReadText(path)
	if err != nil {
		t.Fatal(err)
	}
	if got != "second" {
		t.Errorf("ReadText = %q, want %q", got, "second")
	}
}

func TestReadTextMissing(t *testing.T) {
	if _, err := pkg.ReadText(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected an error reading a missing file")
	}
}
