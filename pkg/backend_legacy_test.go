package pkg_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/frostyard/nbc-bootctl/pkg"
	"github.com/frostyard/nbc-bootctl/pkg/testutil"
)

func newExtlinuxBackend(t *testing.T, root *pkg.RootDevice) (*pkg.ExtlinuxBackend, string) {
	t.Helper()
	prefix := testutil.TempPrefix(t)
	bootDir := filepath.Join(prefix, "boot")
	if err := os.MkdirAll(bootDir, 0o755); err != nil {
		t.Fatalf("mkdir boot dir: %v", err)
	}
	b := pkg.NewExtlinuxBackend().(*pkg.ExtlinuxBackend)
	sys := &pkg.SystemConfig{Prefix: prefix, RootDevice: root}
	if err := b.Init(context.Background(), sys, bootDir); err != nil {
		t.Fatalf("init: %v", err)
	}
	return b, bootDir
}

func TestExtlinuxBackendSetDefaultKernel(t *testing.T) {
	root := &pkg.RootDevice{UUID: "root-uuid"}

	t.Run("emits the bundled initrd on the INITRD line", func(t *testing.T) {
		b, bootDir := newExtlinuxBackend(t, root)
		k := testutil.MustKernel("linux.6.12.4-1")
		k.Target.InitrdPath = "initrd-linux.6.12.4-1"

		if err := b.InstallKernel(context.Background(), k); err != nil {
			t.Fatalf("install kernel: %v", err)
		}
		if err := b.SetDefaultKernel(context.Background(), k); err != nil {
			t.Fatalf("set default kernel: %v", err)
		}

		text := readExtlinuxConfig(t, bootDir)
		if !strings.Contains(text, "  INITRD initrd-linux.6.12.4-1\n") {
			t.Errorf("expected bundled initrd on its own INITRD line, got:\n%s", text)
		}
	})

	t.Run("appends freestanding initrds after the bundled one", func(t *testing.T) {
		b, bootDir := newExtlinuxBackend(t, root)
		k := testutil.MustKernel("linux.6.12.4-1")
		k.Target.InitrdPath = "initrd-linux.6.12.4-1"

		if err := b.InstallKernel(context.Background(), k); err != nil {
			t.Fatalf("install kernel: %v", err)
		}
		b.SetFreestandingInitrds(pkg.FreestandingInitrdMap{"freestanding-fs.img": "fs.img"})
		if err := b.SetDefaultKernel(context.Background(), k); err != nil {
			t.Fatalf("set default kernel: %v", err)
		}

		text := readExtlinuxConfig(t, bootDir)
		if !strings.Contains(text, "  INITRD initrd-linux.6.12.4-1,fs.img\n") {
			t.Errorf("expected freestanding initrd appended to the CSV line, got:\n%s", text)
		}
	})

	t.Run("emits a freestanding-only INITRD line for kernels with no bundled initrd", func(t *testing.T) {
		b, bootDir := newExtlinuxBackend(t, root)
		k := testutil.MustKernel("linux.6.12.4-1")

		if err := b.InstallKernel(context.Background(), k); err != nil {
			t.Fatalf("install kernel: %v", err)
		}
		b.SetFreestandingInitrds(pkg.FreestandingInitrdMap{"freestanding-fs.img": "fs.img"})
		if err := b.SetDefaultKernel(context.Background(), k); err != nil {
			t.Fatalf("set default kernel: %v", err)
		}

		text := readExtlinuxConfig(t, bootDir)
		if !strings.Contains(text, "  INITRD fs.img\n") {
			t.Errorf("expected freestanding-only INITRD line, got:\n%s", text)
		}
	})
}

func readExtlinuxConfig(t *testing.T, bootDir string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(bootDir, "extlinux.cfg"))
	if err != nil {
		t.Fatalf("read extlinux.cfg: %v", err)
	}
	return string(data)
}

var _ pkg.FreestandingInitrdSetter = (*pkg.ExtlinuxBackend)(nil)
