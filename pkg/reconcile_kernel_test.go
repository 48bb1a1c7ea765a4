package pkg_test

import (
	"context"
	"errors"
	"testing"

	"github.com/frostyard/nbc-bootctl/pkg"
	"github.com/frostyard/nbc-bootctl/pkg/testutil"
)

func saneConfig() *pkg.SystemConfig {
	return &pkg.SystemConfig{Prefix: "/", RootDevice: &pkg.RootDevice{UUID: "root-uuid"}}
}

func TestKernelReconcilerInstallKernel(t *testing.T) {
	k := testutil.MustKernel("linux.6.12.4-1")

	t.Run("rejects an insane sysconfig", func(t *testing.T) {
		r := pkg.NewKernelReconciler(&testutil.FakeKernelEnumerator{})
		err := r.InstallKernel(context.Background(), &testutil.FakeBackend{}, &pkg.SystemConfig{}, "/kernels", k)
		if err == nil {
			t.Fatal("expected an error for an insane sysconfig")
		}
	})

	t.Run("copies the blob then tells the backend", func(t *testing.T) {
		enum := &testutil.FakeKernelEnumerator{}
		backend := &testutil.FakeBackend{}
		r := pkg.NewKernelReconciler(enum)
		if err := r.InstallKernel(context.Background(), backend, saneConfig(), "/kernels", k); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(enum.InstallCalls) != 1 || enum.InstallCalls[0] != k.Meta.Bpath {
			t.Errorf("expected blob install call for %s, got %v", k.Meta.Bpath, enum.InstallCalls)
		}
		if len(backend.Calls) != 1 || backend.Calls[0] != "install_kernel:"+k.Meta.Bpath {
			t.Errorf("expected backend install_kernel call, got %v", backend.Calls)
		}
	})

	t.Run("stops before the backend when the blob copy fails", func(t *testing.T) {
		enum := &testutil.FakeKernelEnumerator{InstallErr: errors.New("disk full")}
		backend := &testutil.FakeBackend{}
		r := pkg.NewKernelReconciler(enum)
		err := r.InstallKernel(context.Background(), backend, saneConfig(), "/kernels", k)
		if err == nil {
			t.Fatal("expected an error")
		}
		if len(backend.Calls) != 0 {
			t.Errorf("backend should not be called when the blob copy fails, got %v", backend.Calls)
		}
	})
}

func TestKernelReconcilerRemoveKernel(t *testing.T) {
	k := testutil.MustKernel("linux.6.12.4-1")

	t.Run("removes the blob then tells the backend", func(t *testing.T) {
		enum := &testutil.FakeKernelEnumerator{Kernels: pkg.KernelArray{k}}
		backend := &testutil.FakeBackend{}
		r := pkg.NewKernelReconciler(enum)
		if err := r.RemoveKernel(context.Background(), backend, saneConfig(), "/kernels", k); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(enum.RemoveCalls) != 1 {
			t.Errorf("expected one blob remove call, got %v", enum.RemoveCalls)
		}
		if len(backend.Calls) != 1 || backend.Calls[0] != "remove_kernel:"+k.Meta.Bpath {
			t.Errorf("expected backend remove_kernel call, got %v", backend.Calls)
		}
	})

	t.Run("propagates a backend removal failure", func(t *testing.T) {
		enum := &testutil.FakeKernelEnumerator{Kernels: pkg.KernelArray{k}}
		backend := &testutil.FakeBackend{RemoveKernelErr: errors.New("menu locked")}
		r := pkg.NewKernelReconciler(enum)
		if err := r.RemoveKernel(context.Background(), backend, saneConfig(), "/kernels", k); err == nil {
			t.Fatal("expected an error")
		}
	})
}

func TestKernelReconcilerSetDefaultKernel(t *testing.T) {
	k1 := testutil.MustKernel("linux.6.12.4-1")
	k2 := testutil.MustKernel("linux.6.12.4-2")

	t.Run("rejects a target not among the discovered kernels", func(t *testing.T) {
		enum := &testutil.FakeKernelEnumerator{Kernels: pkg.KernelArray{k1}}
		backend := &testutil.FakeBackend{}
		r := pkg.NewKernelReconciler(enum)
		target := &fakeBootDirTarget{dir: "/boot"}
		sys := saneConfig()
		sys.WantedBootMask = pkg.CapLegacy
		err := r.SetDefaultKernel(context.Background(), backend, sys, target, "", "/kernels", k2)
		if err == nil {
			t.Fatal("expected an error for an unknown target kernel")
		}
	})

	t.Run("sets the default without mounting for a legacy-only mask", func(t *testing.T) {
		enum := &testutil.FakeKernelEnumerator{Kernels: pkg.KernelArray{k1}}
		backend := &testutil.FakeBackend{}
		r := pkg.NewKernelReconciler(enum)
		target := &fakeBootDirTarget{dir: "/boot"}
		sys := saneConfig()
		sys.WantedBootMask = pkg.CapLegacy

		if err := r.SetDefaultKernel(context.Background(), backend, sys, target, "", "/kernels", k1); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if backend.DefaultPath != k1.Meta.Bpath {
			t.Errorf("DefaultPath = %q, want %q", backend.DefaultPath, k1.Meta.Bpath)
		}
	})

	t.Run("fails when the boot partition cannot be mounted", func(t *testing.T) {
		enum := &testutil.FakeKernelEnumerator{Kernels: pkg.KernelArray{k1}}
		backend := &testutil.FakeBackend{}
		r := pkg.NewKernelReconciler(enum)
		r.Broker = &pkg.MountBroker{System: testutil.NewFakeSystem(), Blocks: &testutil.FakeBlockDeviceLocator{}}
		target := &fakeBootDirTarget{} // empty GetBootDir -> MountFailed
		sys := saneConfig()
		sys.WantedBootMask = pkg.CapUEFI | pkg.CapGPT

		err := r.SetDefaultKernel(context.Background(), backend, sys, target, "/dev/sda1", "/kernels", k1)
		if err == nil {
			t.Fatal("expected an error when the boot partition cannot be mounted")
		}
	})
}

func TestKernelReconcilerListKernels(t *testing.T) {
	k1 := testutil.MustKernel("linux.6.12.4-1")
	k2 := testutil.MustKernel("linux.6.12.4-2")

	t.Run("errors when nothing is discovered", func(t *testing.T) {
		enum := &testutil.FakeKernelEnumerator{}
		r := pkg.NewKernelReconciler(enum)
		sys := saneConfig()
		sys.WantedBootMask = pkg.CapLegacy
		_, _, err := r.ListKernels(context.Background(), &testutil.FakeBackend{}, sys, &fakeBootDirTarget{}, "", "/kernels")
		if err == nil {
			t.Fatal("expected an error for an empty kernel set")
		}
	})

	t.Run("returns kernels sorted descending with the default bpath", func(t *testing.T) {
		enum := &testutil.FakeKernelEnumerator{Kernels: pkg.KernelArray{k1, k2}}
		backend := &testutil.FakeBackend{DefaultPath: k2.Meta.Bpath}
		r := pkg.NewKernelReconciler(enum)
		sys := saneConfig()
		sys.WantedBootMask = pkg.CapLegacy

		kernels, defaultBpath, err := r.ListKernels(context.Background(), backend, sys, &fakeBootDirTarget{}, "", "/kernels")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(kernels) != 2 || kernels[0].Meta.Bpath != k2.Meta.Bpath {
			t.Errorf("expected release 2 first, got %v", kernels)
		}
		if defaultBpath != k2.Meta.Bpath {
			t.Errorf("defaultBpath = %q, want %q", defaultBpath, k2.Meta.Bpath)
		}
	})
}
