package pkg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SystemdBootBackend targets UEFI via systemd-boot. Kernels are installed as
// individual loader entries under loader/entries; the default entry is
// recorded in loader/loader.conf.
type SystemdBootBackend struct {
	prefix  string
	bootDir string
	root    *RootDevice
	entries map[string]*Kernel // bpath -> kernel, for SetDefaultKernel/GetDefaultKernel
}

// NewSystemdBootBackend constructs an uninitialized systemd-boot backend.
func NewSystemdBootBackend() Backend {
	return &SystemdBootBackend{entries: make(map[string]*Kernel)}
}

func (b *SystemdBootBackend) Name() string { return "systemd-boot" }

func (b *SystemdBootBackend) efiBinarySource(prefix string) string {
	candidates := []string{
		filepath.Join(prefix, "usr/lib/systemd/boot/efi/systemd-bootx64.efi.signed"),
		filepath.Join(prefix, "usr/lib/systemd/boot/efi/systemd-bootx64.efi"),
		filepath.Join(prefix, "usr/lib64/systemd/boot/efi/systemd-bootx64.efi.signed"),
		filepath.Join(prefix, "usr/lib64/systemd/boot/efi/systemd-bootx64.efi"),
	}
	for _, c := range candidates {
		if Exists(c) {
			return c
		}
	}
	return ""
}

func (b *SystemdBootBackend) GetCapabilities(ctx context.Context, sys *SystemConfig) Capability {
	if b.efiBinarySource(sys.Prefix) == "" {
		return 0
	}
	return CapGPT | CapUEFI | CapFatFS
}

func (b *SystemdBootBackend) Init(ctx context.Context, sys *SystemConfig, bootDir string) error {
	b.prefix = sys.Prefix
	b.bootDir = bootDir
	b.root = sys.RootDevice
	b.entries = make(map[string]*Kernel)
	return nil
}

func (b *SystemdBootBackend) Destroy(ctx context.Context) { b.entries = nil }

func (b *SystemdBootBackend) bootBinaryDest() string {
	return filepath.Join(b.bootDir, "EFI", "systemd", "systemd-bootx64.efi")
}

func (b *SystemdBootBackend) NeedsInstall(ctx context.Context) bool {
	return !Exists(b.bootBinaryDest())
}

// NeedsUpdate compares the installed binary's mtime against the source
// tree's binary, the same heuristic the GRUB2 backend uses since
// systemd-boot exposes no installed-version query without invoking bootctl.
func (b *SystemdBootBackend) NeedsUpdate(ctx context.Context) bool {
	src := b.efiBinarySource(b.prefix)
	if src == "" {
		return false
	}
	srcInfo, err := os.Stat(src)
	if err != nil {
		return false
	}
	dstInfo, err := os.Stat(b.bootBinaryDest())
	if err != nil {
		return true
	}
	return srcInfo.ModTime().After(dstInfo.ModTime())
}

func (b *SystemdBootBackend) Install(ctx context.Context) error {
	src := b.efiBinarySource(b.prefix)
	if src == "" {
		return fmt.Errorf("systemd-boot EFI binary not found under %s", b.prefix)
	}
	if err := MkdirAll(filepath.Join(b.bootDir, "EFI", "systemd"), 0o755); err != nil {
		return err
	}
	if err := MkdirAll(filepath.Join(b.bootDir, "EFI", "BOOT"), 0o755); err != nil {
		return err
	}
	if err := CopyAtomic(src, b.bootBinaryDest(), 0o644); err != nil {
		return fmt.Errorf("install systemd-boot binary: %w", err)
	}
	if err := CopyAtomic(src, filepath.Join(b.bootDir, "EFI", "BOOT", "BOOTX64.EFI"), 0o644); err != nil {
		return fmt.Errorf("install systemd-boot removable-media fallback: %w", err)
	}
	return b.writeLoaderConf(ctx)
}

func (b *SystemdBootBackend) Update(ctx context.Context) error { return b.Install(ctx) }

func (b *SystemdBootBackend) Remove(ctx context.Context) error {
	_ = os.RemoveAll(filepath.Join(b.bootDir, "EFI", "systemd"))
	_ = os.RemoveAll(filepath.Join(b.bootDir, "loader"))
	return nil
}

func (b *SystemdBootBackend) entryPath(k *Kernel) string {
	return filepath.Join(b.bootDir, "loader", "entries", entrySlug(k)+".conf")
}

func entrySlug(k *Kernel) string {
	return strings.ReplaceAll(fmt.Sprintf("%s-%s-%d", k.Meta.KType, k.Meta.Version, k.Meta.Release), "/", "_")
}

func (b *SystemdBootBackend) InstallKernel(ctx context.Context, k *Kernel) error {
	b.entries[k.Meta.Bpath] = k

	var sb strings.Builder
	fmt.Fprintf(&sb, "title   %s %s\n", k.Meta.KType, k.Meta.Version)
	fmt.Fprintf(&sb, "linux   /%s\n", k.Target.LegacyPath)
	if k.Target.InitrdPath != "" {
		fmt.Fprintf(&sb, "initrd  /%s\n", k.Target.InitrdPath)
	}

	var options strings.Builder
	if b.root != nil {
		if b.root.PartUUID != "" {
			fmt.Fprintf(&options, "root=PARTUUID=%s ", b.root.PartUUID)
		} else {
			fmt.Fprintf(&options, "root=UUID=%s ", b.root.UUID)
		}
		if b.root.LUKSUUID != "" {
			fmt.Fprintf(&options, "rd.luks.uuid=%s ", b.root.LUKSUUID)
		}
	}
	options.WriteString(k.Meta.Cmdline)
	fmt.Fprintf(&sb, "options %s\n", strings.TrimSpace(options.String()))

	if err := MkdirAll(filepath.Join(b.bootDir, "loader", "entries"), 0o755); err != nil {
		return err
	}
	_, err := WriteTextIfChanged(b.entryPath(k), sb.String())
	return err
}

func (b *SystemdBootBackend) RemoveKernel(ctx context.Context, k *Kernel) error {
	delete(b.entries, k.Meta.Bpath)
	err := os.Remove(b.entryPath(k))
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

func (b *SystemdBootBackend) SetDefaultKernel(ctx context.Context, k *Kernel) error {
	return b.writeLoaderConfWithDefault(ctx, k)
}

func (b *SystemdBootBackend) writeLoaderConf(ctx context.Context) error {
	return b.writeLoaderConfWithDefault(ctx, nil)
}

func (b *SystemdBootBackend) writeLoaderConfWithDefault(ctx context.Context, k *Kernel) error {
	var sb strings.Builder
	if k != nil {
		fmt.Fprintf(&sb, "default %s\n", entrySlug(k))
	}
	sb.WriteString("timeout 5\n")
	sb.WriteString("console-mode max\n")
	if err := MkdirAll(filepath.Join(b.bootDir, "loader"), 0o755); err != nil {
		return err
	}
	_, err := WriteTextIfChanged(filepath.Join(b.bootDir, "loader", "loader.conf"), sb.String())
	return err
}

func (b *SystemdBootBackend) GetDefaultKernel(ctx context.Context) (string, error) {
	text, err := ReadText(filepath.Join(b.bootDir, "loader", "loader.conf"))
	if err != nil {
		return "", nil
	}
	for _, line := range strings.Split(text, "\n") {
		if after, ok := strings.CutPrefix(line, "default "); ok {
			slug := strings.TrimSpace(after)
			for bpath, k := range b.entries {
				if entrySlug(k) == slug {
					return bpath, nil
				}
			}
		}
	}
	return "", nil
}

func (b *SystemdBootBackend) GetKernelDestination() string { return "" }
