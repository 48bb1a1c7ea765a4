package pkg_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/frostyard/nbc-bootctl/pkg"
)

func TestInitrdReconcilerEnumerate(t *testing.T) {
	t.Run("returns an empty map when the source directory is absent", func(t *testing.T) {
		r := pkg.NewInitrdReconciler(filepath.Join(t.TempDir(), "does-not-exist"))
		m, err := r.Enumerate()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(m) != 0 {
			t.Errorf("expected an empty map, got %v", m)
		}
	})

	t.Run("skips empty files and directories, keys regular files", func(t *testing.T) {
		dir := t.TempDir()
		mustWrite(t, filepath.Join(dir, "initrd-extra.img"), "contents")
		mustWrite(t, filepath.Join(dir, "empty.img"), "")
		if err := os.Mkdir(filepath.Join(dir, "subdir"), 0o755); err != nil {
			t.Fatal(err)
		}

		r := pkg.NewInitrdReconciler(dir)
		m, err := r.Enumerate()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(m) != 1 {
			t.Fatalf("expected exactly one entry, got %v", m)
		}
		if m["freestanding-initrd-extra.img"] != "initrd-extra.img" {
			t.Errorf("unexpected map contents: %v", m)
		}
	})
}

func mustWrite(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestInitrdReconcilerInstall(t *testing.T) {
	t.Run("copies into the boot dir root for a non-UEFI backend", func(t *testing.T) {
		srcDir := t.TempDir()
		bootDir := t.TempDir()
		mustWrite(t, filepath.Join(srcDir, "initrd-extra.img"), "contents")

		r := pkg.NewInitrdReconciler(srcDir)
		initrds := pkg.FreestandingInitrdMap{"freestanding-initrd-extra.img": "initrd-extra.img"}
		if err := r.Install(context.Background(), bootDir, false, "", initrds); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got, err := os.ReadFile(filepath.Join(bootDir, "freestanding-initrd-extra.img"))
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != "contents" {
			t.Errorf("installed contents = %q, want %q", got, "contents")
		}
	})

	t.Run("copies under the EFI subdir for a UEFI backend", func(t *testing.T) {
		srcDir := t.TempDir()
		bootDir := t.TempDir()
		mustWrite(t, filepath.Join(srcDir, "initrd-extra.img"), "contents")

		r := pkg.NewInitrdReconciler(srcDir)
		initrds := pkg.FreestandingInitrdMap{"freestanding-initrd-extra.img": "initrd-extra.img"}
		if err := r.Install(context.Background(), bootDir, true, "EFI/BOOT", initrds); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !pkg.Exists(filepath.Join(bootDir, "EFI", "BOOT", "freestanding-initrd-extra.img")) {
			t.Error("expected the initrd to be installed under the EFI subdir")
		}
	})

	t.Run("rejects a UEFI backend with no kernel destination", func(t *testing.T) {
		r := pkg.NewInitrdReconciler(t.TempDir())
		err := r.Install(context.Background(), t.TempDir(), true, "", pkg.FreestandingInitrdMap{})
		if err == nil {
			t.Fatal("expected an error for a UEFI backend with an empty kernel destination")
		}
	})

	t.Run("skips the copy when the destination already matches", func(t *testing.T) {
		srcDir := t.TempDir()
		bootDir := t.TempDir()
		mustWrite(t, filepath.Join(srcDir, "initrd-extra.img"), "contents")
		mustWrite(t, filepath.Join(bootDir, "freestanding-initrd-extra.img"), "contents")

		before, err := os.Stat(filepath.Join(bootDir, "freestanding-initrd-extra.img"))
		if err != nil {
			t.Fatal(err)
		}

		r := pkg.NewInitrdReconciler(srcDir)
		initrds := pkg.FreestandingInitrdMap{"freestanding-initrd-extra.img": "initrd-extra.img"}
		if err := r.Install(context.Background(), bootDir, false, "", initrds); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		after, err := os.Stat(filepath.Join(bootDir, "freestanding-initrd-extra.img"))
		if err != nil {
			t.Fatal(err)
		}
		if before.ModTime() != after.ModTime() {
			t.Error("expected the matching file to be left untouched")
		}
	})
}

func TestInitrdReconcilerPrune(t *testing.T) {
	t.Run("removes orphaned freestanding initrds", func(t *testing.T) {
		bootDir := t.TempDir()
		mustWrite(t, filepath.Join(bootDir, "freestanding-gone.img"), "x")
		mustWrite(t, filepath.Join(bootDir, "freestanding-kept.img"), "x")
		mustWrite(t, filepath.Join(bootDir, "vmlinuz"), "x")

		r := pkg.NewInitrdReconciler(t.TempDir())
		initrds := pkg.FreestandingInitrdMap{"freestanding-kept.img": "kept.img"}
		if err := r.Prune(context.Background(), bootDir, false, "", initrds); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if pkg.Exists(filepath.Join(bootDir, "freestanding-gone.img")) {
			t.Error("expected the orphaned initrd to be removed")
		}
		if !pkg.Exists(filepath.Join(bootDir, "freestanding-kept.img")) {
			t.Error("expected the still-referenced initrd to survive")
		}
		if !pkg.Exists(filepath.Join(bootDir, "vmlinuz")) {
			t.Error("prune must not touch files outside the freestanding- prefix")
		}
	})

	t.Run("errors when the destination directory cannot be read", func(t *testing.T) {
		r := pkg.NewInitrdReconciler(t.TempDir())
		err := r.Prune(context.Background(), filepath.Join(t.TempDir(), "missing"), false, "", pkg.FreestandingInitrdMap{})
		if err == nil {
			t.Fatal("expected an error for a missing destination directory")
		}
	})
}
