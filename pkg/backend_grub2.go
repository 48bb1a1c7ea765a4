package pkg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// GRUB2Backend targets UEFI (or, with a legacy install, BIOS) via GRUB2.
// It is tried first in the registry so that a host capable of GRUB2 prefers
// it over the simpler fallback backends.
type GRUB2Backend struct {
	prefix  string
	bootDir string
	root    *RootDevice
	queue   []*Kernel
	def     *Kernel
	sys     SystemStub
}

// NewGRUB2Backend constructs an uninitialized GRUB2 backend.
func NewGRUB2Backend() Backend { return &GRUB2Backend{sys: NewSystemStub()} }

func (b *GRUB2Backend) Name() string { return "grub2" }

func (b *GRUB2Backend) grubInstallCmd() string {
	for _, name := range []string{"grub-install", "grub2-install"} {
		if _, err := exec.LookPath(name); err == nil {
			return name
		}
	}
	return ""
}

func (b *GRUB2Backend) GetCapabilities(ctx context.Context, sys *SystemConfig) Capability {
	if b.grubInstallCmd() == "" {
		return 0
	}
	return CapGPT | CapLegacy | CapUEFI | CapExtFS | CapFatFS
}

func (b *GRUB2Backend) Init(ctx context.Context, sys *SystemConfig, bootDir string) error {
	b.prefix = sys.Prefix
	b.bootDir = bootDir
	b.root = sys.RootDevice
	b.queue = nil
	b.def = nil
	return nil
}

func (b *GRUB2Backend) Destroy(ctx context.Context) {
	b.queue = nil
	b.def = nil
}

func (b *GRUB2Backend) grubCfgPath() string {
	for _, dir := range []string{"grub", "grub2"} {
		p := filepath.Join(b.bootDir, dir, "grub.cfg")
		if Exists(filepath.Dir(p)) {
			return p
		}
	}
	return filepath.Join(b.bootDir, "grub", "grub.cfg")
}

func (b *GRUB2Backend) NeedsInstall(ctx context.Context) bool {
	return !Exists(filepath.Join(b.bootDir, "EFI", "BOOT", "BOOTX64.EFI")) &&
		!Exists(filepath.Join(b.bootDir, "grub", "i386-pc"))
}

// NeedsUpdate uses the same mtime heuristic as extlinux's always-true
// policy would suggest, but scoped to whether the installed GRUB binary
// predates the source tree's GRUB modules, since reinstalling is cheap and
// grub-install is idempotent.
func (b *GRUB2Backend) NeedsUpdate(ctx context.Context) bool {
	modDir := filepath.Join(b.prefix, "usr/lib/grub")
	modInfo, err := os.Stat(modDir)
	if err != nil {
		return false
	}
	target := filepath.Join(b.bootDir, "EFI", "BOOT", "BOOTX64.EFI")
	targetInfo, err := os.Stat(target)
	if err != nil {
		return true
	}
	return modInfo.ModTime().After(targetInfo.ModTime())
}

func (b *GRUB2Backend) Install(ctx context.Context) error {
	cmd := b.grubInstallCmd()
	if cmd == "" {
		return fmt.Errorf("grub-install not found")
	}

	args := []string{
		"--target=x86_64-efi",
		"--efi-directory=" + b.bootDir,
		"--boot-directory=" + b.bootDir,
		"--bootloader-id=BOOT",
		"--removable",
	}
	if b.sys == nil {
		b.sys = NewSystemStub()
	}
	if err := b.sys.Run(ctx, cmd, args...); err != nil {
		return fmt.Errorf("%s: %w", cmd, err)
	}
	return b.writeConfig(ctx)
}

func (b *GRUB2Backend) Update(ctx context.Context) error { return b.Install(ctx) }

func (b *GRUB2Backend) Remove(ctx context.Context) error {
	_ = os.RemoveAll(filepath.Join(b.bootDir, "EFI", "BOOT"))
	_ = os.RemoveAll(filepath.Join(b.bootDir, "grub"))
	return nil
}

func (b *GRUB2Backend) InstallKernel(ctx context.Context, k *Kernel) error {
	for _, q := range b.queue {
		if q.Source.Path == k.Source.Path {
			return nil
		}
	}
	b.queue = append(b.queue, k)
	return b.writeConfig(ctx)
}

func (b *GRUB2Backend) RemoveKernel(ctx context.Context, k *Kernel) error {
	out := b.queue[:0]
	for _, q := range b.queue {
		if !q.SameInstalled(k) {
			out = append(out, q)
		}
	}
	b.queue = out
	return b.writeConfig(ctx)
}

func (b *GRUB2Backend) SetDefaultKernel(ctx context.Context, k *Kernel) error {
	b.def = k
	return b.writeConfig(ctx)
}

func (b *GRUB2Backend) GetDefaultKernel(ctx context.Context) (string, error) {
	if b.def == nil {
		return "", nil
	}
	return b.def.Meta.Bpath, nil
}

func (b *GRUB2Backend) writeConfig(ctx context.Context) error {
	var sb strings.Builder
	sb.WriteString("set timeout=5\n")

	defaultIndex := 0
	for i, k := range b.queue {
		if b.def != nil && k.SameInstalled(b.def) {
			defaultIndex = i
		}
	}
	fmt.Fprintf(&sb, "set default=%d\n\n", defaultIndex)

	for _, k := range b.queue {
		fmt.Fprintf(&sb, "menuentry '%s %s' {\n", k.Meta.KType, k.Meta.Version)
		fmt.Fprintf(&sb, "    linux /%s ", k.Target.LegacyPath)
		if b.root != nil {
			if b.root.PartUUID != "" {
				fmt.Fprintf(&sb, "root=PARTUUID=%s ", b.root.PartUUID)
			} else {
				fmt.Fprintf(&sb, "root=UUID=%s ", b.root.UUID)
			}
			if b.root.LUKSUUID != "" {
				fmt.Fprintf(&sb, "rd.luks.uuid=%s ", b.root.LUKSUUID)
			}
		}
		fmt.Fprintf(&sb, "%s\n", k.Meta.Cmdline)
		if k.Target.InitrdPath != "" {
			fmt.Fprintf(&sb, "    initrd /%s\n", k.Target.InitrdPath)
		}
		sb.WriteString("}\n")
	}

	cfgPath := b.grubCfgPath()
	if err := MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		return err
	}
	_, err := WriteTextIfChanged(cfgPath, sb.String())
	return err
}

func (b *GRUB2Backend) GetKernelDestination() string { return "" }
