package pkg

import (
	"context"
	"fmt"
	"path/filepath"
)

// ShimBackend wraps an inner UEFI backend (systemd-boot, falling back to
// GRUB2) with a Secure Boot shim chain-load: shim is installed as the
// UEFI-default BOOTX64.EFI entry point, and the inner backend's signed
// binary is installed alongside it under the name shim is compiled to
// chain-load next.
type ShimBackend struct {
	inner      Backend
	prefix     string
	bootDir    string
	shimSource string
}

// NewShimBackend constructs an uninitialized shim-wrapped backend around
// systemd-boot. GetCapabilities swaps the inner backend for GRUB2 when
// systemd-boot reports no capability against the host.
func NewShimBackend() Backend {
	return &ShimBackend{inner: NewSystemdBootBackend()}
}

func (b *ShimBackend) Name() string { return "shim-" + b.inner.Name() }

func (b *ShimBackend) findShim(prefix string) string {
	candidates := []string{
		filepath.Join(prefix, "usr/lib/shim/shimx64.efi.signed"),
		filepath.Join(prefix, "usr/lib64/shim/shimx64.efi.signed"),
		filepath.Join(prefix, "usr/share/shim/shimx64.efi.signed"),
		filepath.Join(prefix, "usr/lib/shim/shimx64.efi"),
		filepath.Join(prefix, "usr/lib64/shim/shimx64.efi"),
		filepath.Join(prefix, "boot/efi/EFI/fedora/shimx64.efi"),
		filepath.Join(prefix, "boot/efi/EFI/debian/shimx64.efi"),
		filepath.Join(prefix, "boot/efi/EFI/ubuntu/shimx64.efi"),
	}
	for _, c := range candidates {
		if Exists(c) {
			return c
		}
	}
	return ""
}

func (b *ShimBackend) GetCapabilities(ctx context.Context, sys *SystemConfig) Capability {
	if b.findShim(sys.Prefix) == "" {
		return 0
	}
	if b.inner.GetCapabilities(ctx, sys) == 0 {
		b.inner = NewGRUB2Backend()
	}
	caps := b.inner.GetCapabilities(ctx, sys)
	if caps == 0 {
		return 0
	}
	return caps // inherits the inner backend's mask; shim only adds a chain-load step
}

func (b *ShimBackend) Init(ctx context.Context, sys *SystemConfig, bootDir string) error {
	b.prefix = sys.Prefix
	b.bootDir = bootDir
	b.shimSource = b.findShim(sys.Prefix)
	if b.shimSource == "" {
		return fmt.Errorf("shim EFI binary not found under %s", sys.Prefix)
	}
	return b.inner.Init(ctx, sys, bootDir)
}

func (b *ShimBackend) Destroy(ctx context.Context) { b.inner.Destroy(ctx) }

func (b *ShimBackend) shimDest() string { return filepath.Join(b.bootDir, "EFI", "BOOT", "BOOTX64.EFI") }

func (b *ShimBackend) chainTarget() string {
	// shim is compiled to chain-load grubx64.efi next regardless of which
	// bootloader actually backs it.
	return filepath.Join(b.bootDir, "EFI", "BOOT", "grubx64.efi")
}

func (b *ShimBackend) NeedsInstall(ctx context.Context) bool {
	return !Exists(b.shimDest()) || b.inner.NeedsInstall(ctx)
}

func (b *ShimBackend) NeedsUpdate(ctx context.Context) bool { return b.inner.NeedsUpdate(ctx) }

func (b *ShimBackend) Install(ctx context.Context) error {
	if err := b.inner.Install(ctx); err != nil {
		return err
	}
	return b.installChain()
}

func (b *ShimBackend) Update(ctx context.Context) error {
	if err := b.inner.Update(ctx); err != nil {
		return err
	}
	return b.installChain()
}

func (b *ShimBackend) installChain() error {
	if err := MkdirAll(filepath.Join(b.bootDir, "EFI", "BOOT"), 0o755); err != nil {
		return err
	}
	if err := CopyAtomic(b.shimSource, b.shimDest(), 0o644); err != nil {
		return fmt.Errorf("install shim as BOOTX64.EFI: %w", err)
	}

	innerBinary := b.innerBinarySource()
	if innerBinary == "" {
		return fmt.Errorf("no signed %s binary found for shim chain-load", b.inner.Name())
	}
	if err := CopyAtomic(innerBinary, b.chainTarget(), 0o644); err != nil {
		return fmt.Errorf("install %s as grubx64.efi chain target: %w", b.inner.Name(), err)
	}
	return nil
}

func (b *ShimBackend) innerBinarySource() string {
	switch t := b.inner.(type) {
	case *GRUB2Backend:
		for _, p := range []string{
			filepath.Join(b.prefix, "usr/lib/grub/x86_64-efi-signed/grubx64.efi.signed"),
			filepath.Join(b.prefix, "usr/lib64/grub/x86_64-efi-signed/grubx64.efi.signed"),
			filepath.Join(b.prefix, "usr/lib/grub/x86_64-efi-signed/grubx64.efi"),
		} {
			if Exists(p) {
				return p
			}
		}
		return ""
	case *SystemdBootBackend:
		return t.efiBinarySource(b.prefix)
	default:
		return ""
	}
}

func (b *ShimBackend) Remove(ctx context.Context) error { return b.inner.Remove(ctx) }

func (b *ShimBackend) InstallKernel(ctx context.Context, k *Kernel) error {
	return b.inner.InstallKernel(ctx, k)
}

func (b *ShimBackend) RemoveKernel(ctx context.Context, k *Kernel) error {
	return b.inner.RemoveKernel(ctx, k)
}

func (b *ShimBackend) SetDefaultKernel(ctx context.Context, k *Kernel) error {
	return b.inner.SetDefaultKernel(ctx, k)
}

func (b *ShimBackend) GetDefaultKernel(ctx context.Context) (string, error) {
	return b.inner.GetDefaultKernel(ctx)
}

func (b *ShimBackend) GetKernelDestination() string { return b.inner.GetKernelDestination() }
