package pkg_test

import (
	"context"
	"errors"
	"testing"

	"github.com/frostyard/nbc-bootctl/pkg"
	"github.com/frostyard/nbc-bootctl/pkg/testutil"
)

var errBoom = errors.New("boom")

func TestSelectBackend(t *testing.T) {
	sys := &pkg.SystemConfig{WantedBootMask: pkg.CapUEFI | pkg.CapGPT}

	t.Run("picks the first candidate whose capabilities are a superset", func(t *testing.T) {
		legacy := &testutil.FakeBackend{BackendName: "extlinux", Capabilities: pkg.CapLegacy | pkg.CapGPT}
		uefi := &testutil.FakeBackend{BackendName: "grub2-uefi", Capabilities: pkg.CapUEFI | pkg.CapGPT | pkg.CapFatFS}
		candidates := []func() pkg.Backend{
			func() pkg.Backend { return legacy },
			func() pkg.Backend { return uefi },
		}
		backend, err := pkg.SelectBackend(context.Background(), candidates, sys, "/boot")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if backend.Name() != "grub2-uefi" {
			t.Errorf("Name() = %q, want grub2-uefi", backend.Name())
		}
		if len(uefi.Calls) != 1 || uefi.Calls[0] != "init" {
			t.Errorf("expected the selected backend to be initialized, got %v", uefi.Calls)
		}
		if len(legacy.Calls) != 0 {
			t.Errorf("expected the non-matching backend to be left untouched, got %v", legacy.Calls)
		}
	})

	t.Run("errors when no candidate matches", func(t *testing.T) {
		legacy := &testutil.FakeBackend{BackendName: "extlinux", Capabilities: pkg.CapLegacy | pkg.CapGPT}
		candidates := []func() pkg.Backend{func() pkg.Backend { return legacy }}
		_, err := pkg.SelectBackend(context.Background(), candidates, sys, "/boot")
		if err == nil {
			t.Fatal("expected an error when nothing matches")
		}
	})

	t.Run("destroys and errors when Init fails on the matching candidate", func(t *testing.T) {
		uefi := &testutil.FakeBackend{BackendName: "grub2-uefi", Capabilities: pkg.CapUEFI | pkg.CapGPT, InitErr: errBoom}
		candidates := []func() pkg.Backend{func() pkg.Backend { return uefi }}
		_, err := pkg.SelectBackend(context.Background(), candidates, sys, "/boot")
		if err == nil {
			t.Fatal("expected an error")
		}
		found := false
		for _, c := range uefi.Calls {
			if c == "destroy" {
				found = true
			}
		}
		if !found {
			t.Errorf("expected Destroy to be called after a failed Init, got %v", uefi.Calls)
		}
	})
}
