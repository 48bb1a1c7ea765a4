package pkg

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

const mbrSyslinuxSize = 440

// ExtlinuxBackend targets legacy BIOS boot via extlinux, installed onto the
// MBR of the GPT disk carrying the legacy boot partition. It is the
// universal fallback: kernels passed to InstallKernel are queued in memory
// and SetDefaultKernel rewrites a single extlinux.cfg from that queue;
// RemoveKernel and GetDefaultKernel are no-ops.
type ExtlinuxBackend struct {
	prefix    string
	bootDir   string
	root      *RootDevice
	queue     []*Kernel
	sys       SystemStub
	freestand FreestandingInitrdMap
}

// NewExtlinuxBackend constructs an uninitialized extlinux backend.
func NewExtlinuxBackend() Backend { return &ExtlinuxBackend{sys: NewSystemStub()} }

func (b *ExtlinuxBackend) Name() string { return "extlinux" }

func (b *ExtlinuxBackend) GetCapabilities(ctx context.Context, sys *SystemConfig) Capability {
	command := filepath.Join(sys.Prefix, "usr/bin/extlinux")
	if _, err := os.Stat(command); err != nil {
		return 0
	}
	return CapGPT | CapLegacy
}

func (b *ExtlinuxBackend) Init(ctx context.Context, sys *SystemConfig, bootDir string) error {
	b.prefix = sys.Prefix
	b.bootDir = bootDir
	b.root = sys.RootDevice
	b.queue = nil
	return nil
}

func (b *ExtlinuxBackend) Destroy(ctx context.Context) {
	b.queue = nil
}

// SetFreestandingInitrds hands the backend the facade's current freestanding
// initrd set, so the next SetDefaultKernel rewrite can fold each one into the
// per-kernel INITRD line. extlinux has no separate freestanding-initrd
// install step the way the UEFI backends do, so this is the only place the
// map reaches the rendered config.
func (b *ExtlinuxBackend) SetFreestandingInitrds(initrds FreestandingInitrdMap) {
	b.freestand = initrds
}

func (b *ExtlinuxBackend) NeedsInstall(ctx context.Context) bool { return true }
func (b *ExtlinuxBackend) NeedsUpdate(ctx context.Context) bool  { return true }

// Install writes the first 440 bytes of the prefix-local gptmbr.bin onto
// the parent disk's MBR, then runs extlinux -i (or -U on an existing
// install) against the boot directory.
func (b *ExtlinuxBackend) Install(ctx context.Context) error {
	bootDevice, err := NewBlockDeviceLocator().ParentDisk(b.prefix)
	if err != nil {
		return fmt.Errorf("resolve parent disk of %s: %w", b.prefix, err)
	}

	mbrSrc := filepath.Join(b.prefix, "usr/share/extlinux/gptmbr.bin")
	src, err := os.Open(mbrSrc)
	if err != nil {
		return fmt.Errorf("open %s: %w", mbrSrc, err)
	}
	defer src.Close()

	buf := make([]byte, mbrSyslinuxSize)
	if _, err := io.ReadFull(src, buf); err != nil {
		return fmt.Errorf("read %d bytes from %s: %w", mbrSyslinuxSize, mbrSrc, err)
	}

	dst, err := os.OpenFile(bootDevice, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("open %s for writing: %w", bootDevice, err)
	}
	defer dst.Close()
	if _, err := dst.Write(buf); err != nil {
		return fmt.Errorf("write gptmbr.bin to %s: %w", bootDevice, err)
	}

	extlinuxBin := filepath.Join(b.prefix, "usr/bin/extlinux")
	mode := "-i"
	if Exists(filepath.Join(b.bootDir, "ldlinux.sys")) {
		mode = "-U"
	}
	if err := b.sys.Run(ctx, extlinuxBin, mode, b.bootDir); err != nil {
		return fmt.Errorf("extlinux %s %s: %w", mode, b.bootDir, err)
	}
	syscall.Sync()
	return nil
}

func (b *ExtlinuxBackend) Update(ctx context.Context) error { return b.Install(ctx) }

func (b *ExtlinuxBackend) Remove(ctx context.Context) error { return nil }

// InstallKernel queues the kernel for inclusion in the next config rewrite.
// Re-queuing a kernel already present by source path is idempotent.
func (b *ExtlinuxBackend) InstallKernel(ctx context.Context, k *Kernel) error {
	for _, q := range b.queue {
		if q.Source.Path == k.Source.Path {
			return nil
		}
	}
	b.queue = append(b.queue, k)
	return nil
}

// RemoveKernel is a no-op: the config is always fully rewritten from the
// queue, and a kernel already queued on this instance stays queued, so it
// reappears in the next SetDefaultKernel rewrite until Init or Destroy
// clears the queue.
func (b *ExtlinuxBackend) RemoveKernel(ctx context.Context, k *Kernel) error { return nil }

// SetDefaultKernel rewrites extlinux.cfg from the queued kernel set, with
// defaultKernel (or nil) marking the DEFAULT stanza.
func (b *ExtlinuxBackend) SetDefaultKernel(ctx context.Context, defaultKernel *Kernel) error {
	if b.root == nil {
		return fmt.Errorf("root device unknown")
	}

	var sb strings.Builder
	if defaultKernel == nil {
		sb.WriteString("TIMEOUT 100\n")
	}

	for _, k := range b.queue {
		if defaultKernel != nil && k.Source.Path == defaultKernel.Source.Path {
			fmt.Fprintf(&sb, "DEFAULT %s\n", k.Target.LegacyPath)
		}
		fmt.Fprintf(&sb, "LABEL %s\n", k.Target.LegacyPath)
		fmt.Fprintf(&sb, "  KERNEL %s\n", k.Target.LegacyPath)

		var initrds []string
		if k.Target.InitrdPath != "" {
			initrds = append(initrds, k.Target.InitrdPath)
		}
		for _, path := range b.freestand {
			initrds = append(initrds, path)
		}
		if len(initrds) > 0 {
			fmt.Fprintf(&sb, "  INITRD %s\n", strings.Join(initrds, ","))
		}

		sb.WriteString("APPEND ")
		if b.root.PartUUID != "" {
			fmt.Fprintf(&sb, "root=PARTUUID=%s ", b.root.PartUUID)
		} else {
			fmt.Fprintf(&sb, "root=UUID=%s ", b.root.UUID)
		}
		if b.root.LUKSUUID != "" {
			fmt.Fprintf(&sb, "rd.luks.uuid=%s ", b.root.LUKSUUID)
		}
		fmt.Fprintf(&sb, "%s\n", k.Meta.Cmdline)
	}

	configPath := filepath.Join(b.bootDir, "extlinux.cfg")
	_, err := WriteTextIfChanged(configPath, sb.String())
	return err
}

// GetDefaultKernel always returns empty: extlinux's DEFAULT stanza is
// write-only from this backend's perspective, matching the source's
// documented extlinux_get_default_kernel behavior.
func (b *ExtlinuxBackend) GetDefaultKernel(ctx context.Context) (string, error) { return "", nil }

func (b *ExtlinuxBackend) GetKernelDestination() string { return "" }
