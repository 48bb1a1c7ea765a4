package pkg

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// RootDevice is the record produced by probing a root filesystem: a
// filesystem UUID, an optional partition-table UUID, and an optional LUKS
// container UUID.
type RootDevice struct {
	UUID     string
	PartUUID string
	LUKSUUID string
}

// RootDeviceProber probes the root device backing a resolved prefix. The
// real implementation shells to blkid/cryptsetup; tests inject a fake.
type RootDeviceProber interface {
	ProbePath(prefix string) (*RootDevice, error)
}

// BlockDeviceLocator answers the handful of block-device questions the
// Host Inspector and Mount Broker need. Kernel-file discovery, UUID/
// PARTUUID lookup internals and mount-table parsing live behind this
// interface rather than in the core itself.
type BlockDeviceLocator interface {
	// BootDevice returns the system ESP, if one can be found.
	BootDevice() (string, bool)
	// LegacyBootDevice returns the legacy GPT boot partition relative to
	// prefix, if one can be found.
	LegacyBootDevice(prefix string) (string, bool)
	// ParentDisk returns the parent disk of the partition backing prefix.
	ParentDisk(prefix string) (string, error)
	// MountpointForDevice returns where dev is currently mounted, if at all.
	MountpointForDevice(dev string) (string, bool)
}

// FstypeProber is the libblkid-equivalent filesystem-type probe: EXTFS for
// ext2/3/4, FATFS for vfat, zero for anything else.
type FstypeProber interface {
	Fstype(device string) (Capability, error)
}

// SystemStub is the injectable system-call layer used by the Host
// Inspector and Mount Broker, matching the source's system_stub
// indirection so tests can drive every branch without touching the host.
type SystemStub interface {
	IsMounted(path string) bool
	Mount(ctx context.Context, source, target, fstype string) error
	Unmount(ctx context.Context, target string) error
	Run(ctx context.Context, name string, args ...string) error
	SysfsPath() string
}

// OSRelease is the opaque, parsed os-release record.
type OSRelease struct {
	PrettyName string
	ID         string
}

// OSReleaseReader parses /etc/os-release under a prefix. Opaque to the
// core per spec.
type OSReleaseReader interface {
	ReadOSRelease(prefix string) (*OSRelease, error)
}

// CmdlineReader aggregates kernel-command-line fragments under a prefix.
// Opaque to the core per spec.
type CmdlineReader interface {
	ReadCmdline(prefix string) (string, error)
}

// KernelEnumerator discovers the set of installed kernels under a kernel
// directory. Opaque to the core per spec (kernel-file discovery/parsing is
// an external collaborator).
type KernelEnumerator interface {
	EnumerateKernels(kernelDir string) (KernelArray, error)
	InstallKernelBlob(kernelDir string, k *Kernel) error
	RemoveKernelBlob(kernelDir string, k *Kernel) error
}

// ---------------------------------------------------------------------------
// Real implementations
// ---------------------------------------------------------------------------

// realKernelEnumerator discovers kernels named "<ktype>.<version>-<release>"
// under kernelDir, the naming convention this backend's extlinux/GRUB2/
// systemd-boot stanzas expect for legacy_path. Kernel-file internals
// (compressed image parsing, embedded version strings) stay out of scope;
// this only needs the filename convention to recover (ktype, version,
// release).
type realKernelEnumerator struct{}

// NewKernelEnumerator returns the production KernelEnumerator.
func NewKernelEnumerator() KernelEnumerator { return realKernelEnumerator{} }

func (realKernelEnumerator) EnumerateKernels(kernelDir string) (KernelArray, error) {
	entries, err := os.ReadDir(kernelDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("enumerate kernels in %s: %w", kernelDir, err)
	}

	var out KernelArray
	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		meta, ok := parseKernelFilename(ent.Name())
		if !ok {
			continue
		}
		out = append(out, &Kernel{
			Meta:   meta,
			Source: KernelSource{Path: filepath.Join(kernelDir, ent.Name())},
			Target: KernelTarget{LegacyPath: ent.Name()},
		})
	}
	return out, nil
}

// parseKernelFilename recovers (ktype, version, release, bpath) from a
// "<ktype>.<version>-<release>" filename.
func parseKernelFilename(name string) (KernelMeta, bool) {
	dash := strings.LastIndex(name, "-")
	if dash < 0 || dash == len(name)-1 {
		return KernelMeta{}, false
	}
	releaseStr := name[dash+1:]
	var release int
	if _, err := fmt.Sscanf(releaseStr, "%d", &release); err != nil {
		return KernelMeta{}, false
	}
	rest := name[:dash]
	dot := strings.Index(rest, ".")
	if dot < 0 {
		return KernelMeta{}, false
	}
	return KernelMeta{
		KType:   rest[:dot],
		Version: rest[dot+1:],
		Release: release,
		Bpath:   name,
	}, true
}

func (realKernelEnumerator) InstallKernelBlob(kernelDir string, k *Kernel) error {
	dst := filepath.Join(kernelDir, filepath.Base(k.Source.Path))
	if err := MkdirAll(kernelDir, 0o755); err != nil {
		return err
	}
	match, err := FilesMatch(k.Source.Path, dst)
	if err == nil && match {
		return nil
	}
	return CopyAtomic(k.Source.Path, dst, 0o644)
}

func (realKernelEnumerator) RemoveKernelBlob(kernelDir string, k *Kernel) error {
	target := filepath.Join(kernelDir, filepath.Base(k.Source.Path))
	err := os.Remove(target)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// realOSReleaseReader parses the standard key=value os-release format
// under <prefix>/etc/os-release (or /usr/lib/os-release as a fallback).
type realOSReleaseReader struct{}

// NewOSReleaseReader returns the production OSReleaseReader.
func NewOSReleaseReader() OSReleaseReader { return realOSReleaseReader{} }

func (realOSReleaseReader) ReadOSRelease(prefix string) (*OSRelease, error) {
	for _, candidate := range []string{
		filepath.Join(prefix, "etc/os-release"),
		filepath.Join(prefix, "usr/lib/os-release"),
	} {
		text, err := ReadText(candidate)
		if err != nil {
			continue
		}
		rel := &OSRelease{}
		for _, line := range strings.Split(text, "\n") {
			line = strings.TrimSpace(line)
			key, value, ok := strings.Cut(line, "=")
			if !ok {
				continue
			}
			value = strings.Trim(value, `"'`)
			switch key {
			case "PRETTY_NAME":
				rel.PrettyName = value
			case "ID":
				rel.ID = value
			}
		}
		return rel, nil
	}
	return nil, fmt.Errorf("no os-release file found under %s", prefix)
}

// realCmdlineReader aggregates <prefix>/etc/kernel/cmdline and any
// <prefix>/etc/kernel/cmdline.d/*.conf fragments, in the order kernel
// command-line generators typically apply them.
type realCmdlineReader struct{}

// NewCmdlineReader returns the production CmdlineReader.
func NewCmdlineReader() CmdlineReader { return realCmdlineReader{} }

func (realCmdlineReader) ReadCmdline(prefix string) (string, error) {
	var parts []string
	if text, err := ReadText(filepath.Join(prefix, "etc/kernel/cmdline")); err == nil {
		parts = append(parts, strings.TrimSpace(text))
	}
	fragDir := filepath.Join(prefix, "etc/kernel/cmdline.d")
	entries, err := os.ReadDir(fragDir)
	if err == nil {
		for _, ent := range entries {
			if ent.IsDir() || !strings.HasSuffix(ent.Name(), ".conf") {
				continue
			}
			text, err := ReadText(filepath.Join(fragDir, ent.Name()))
			if err != nil {
				continue
			}
			parts = append(parts, strings.TrimSpace(text))
		}
	}
	return strings.Join(parts, " "), nil
}

// realSystemStub is the production SystemStub, backed by /proc/mounts,
// golang.org/x/sys/unix mount syscalls, and os/exec.
type realSystemStub struct{}

// NewSystemStub returns the production SystemStub.
func NewSystemStub() SystemStub { return realSystemStub{} }

func (realSystemStub) IsMounted(path string) bool {
	mounts, err := os.ReadFile("/proc/mounts")
	if err != nil {
		return false
	}
	scanner := bufio.NewScanner(strings.NewReader(string(mounts)))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 2 && fields[1] == path {
			return true
		}
	}
	return false
}

func (realSystemStub) Mount(ctx context.Context, source, target, fstype string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := unix.Mount(source, target, fstype, unix.MS_MGC_VAL, ""); err != nil {
		return fmt.Errorf("mount %s on %s: %w", source, target, err)
	}
	return nil
}

func (realSystemStub) Unmount(ctx context.Context, target string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := unix.Unmount(target, 0); err != nil {
		return fmt.Errorf("unmount %s: %w", target, err)
	}
	return nil
}

func (realSystemStub) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	return cmd.Run()
}

func (realSystemStub) SysfsPath() string { return "/sys" }

// realBlockDeviceLocator implements BlockDeviceLocator by shelling to
// blkid and parsing /proc/mounts, the same way the teacher's
// device_detect.go and cache.go shell to external disk tools rather than
// linking libblkid directly.
type realBlockDeviceLocator struct{}

// NewBlockDeviceLocator returns the production BlockDeviceLocator.
func NewBlockDeviceLocator() BlockDeviceLocator { return realBlockDeviceLocator{} }

func (realBlockDeviceLocator) BootDevice() (string, bool) {
	out, err := exec.Command("blkid", "-t", "PARTLABEL=EFI System Partition", "-o", "device").Output()
	if err != nil || len(strings.TrimSpace(string(out))) == 0 {
		out, err = exec.Command("blkid", "-t", "TYPE=vfat", "-o", "device").Output()
		if err != nil {
			return "", false
		}
	}
	lines := strings.Fields(string(out))
	if len(lines) == 0 {
		return "", false
	}
	return lines[0], true
}

func (realBlockDeviceLocator) LegacyBootDevice(prefix string) (string, bool) {
	mounts, err := os.ReadFile("/proc/mounts")
	if err != nil {
		return "", false
	}
	scanner := bufio.NewScanner(strings.NewReader(string(mounts)))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 2 && fields[1] == filepath.Join(prefix, "boot") {
			return fields[0], true
		}
	}
	return "", false
}

func (realBlockDeviceLocator) ParentDisk(prefix string) (string, error) {
	mounts, err := os.ReadFile("/proc/mounts")
	if err != nil {
		return "", fmt.Errorf("read /proc/mounts: %w", err)
	}
	var rootPartition string
	scanner := bufio.NewScanner(strings.NewReader(string(mounts)))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 2 && fields[1] == prefix {
			rootPartition = fields[0]
			break
		}
	}
	if rootPartition == "" {
		return "", fmt.Errorf("could not find mount entry for %s", prefix)
	}
	return GetBootDeviceFromPartition(rootPartition)
}

func (realBlockDeviceLocator) MountpointForDevice(dev string) (string, bool) {
	mounts, err := os.ReadFile("/proc/mounts")
	if err != nil {
		return "", false
	}
	scanner := bufio.NewScanner(strings.NewReader(string(mounts)))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 2 && fields[0] == dev {
			return fields[1], true
		}
	}
	return "", false
}

// realFstypeProber shells to blkid -o value -s TYPE, the Go-idiomatic
// substitute for linking libblkid directly (see DESIGN.md).
type realFstypeProber struct{}

// NewFstypeProber returns the production FstypeProber.
func NewFstypeProber() FstypeProber { return realFstypeProber{} }

func (realFstypeProber) Fstype(device string) (Capability, error) {
	out, err := exec.Command("blkid", "-o", "value", "-s", "TYPE", device).Output()
	if err != nil {
		return 0, fmt.Errorf("probe fstype of %s: %w", device, err)
	}
	switch strings.TrimSpace(string(out)) {
	case "ext2", "ext3", "ext4":
		return CapExtFS, nil
	case "vfat":
		return CapFatFS, nil
	default:
		return 0, nil
	}
}

// realRootDeviceProber implements RootDeviceProber by reading the
// filesystem UUID/PARTUUID via blkid and, if the device is a LUKS
// container, its LUKS UUID via cryptsetup.
type realRootDeviceProber struct{}

// NewRootDeviceProber returns the production RootDeviceProber.
func NewRootDeviceProber() RootDeviceProber { return realRootDeviceProber{} }

func (realRootDeviceProber) ProbePath(prefix string) (*RootDevice, error) {
	mounts, err := os.ReadFile("/proc/mounts")
	if err != nil {
		return nil, fmt.Errorf("read /proc/mounts: %w", err)
	}
	var rootPartition string
	scanner := bufio.NewScanner(strings.NewReader(string(mounts)))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 2 && fields[1] == prefix {
			rootPartition = fields[0]
			break
		}
	}
	if rootPartition == "" {
		return nil, fmt.Errorf("could not determine root partition for %s", prefix)
	}

	rd := &RootDevice{}
	if uuid, err := exec.Command("blkid", "-o", "value", "-s", "UUID", rootPartition).Output(); err == nil {
		rd.UUID = strings.TrimSpace(string(uuid))
	}
	if puuid, err := exec.Command("blkid", "-o", "value", "-s", "PARTUUID", rootPartition).Output(); err == nil {
		rd.PartUUID = strings.TrimSpace(string(puuid))
	}
	if strings.HasPrefix(rootPartition, "/dev/mapper/") {
		mapperName := strings.TrimPrefix(rootPartition, "/dev/mapper/")
		if uuid, err := GetLUKSUUID(context.Background(), mapperName); err == nil {
			rd.LUKSUUID = uuid
		} else if backing, err := getLUKSBackingDevice(rootPartition); err == nil {
			if uuid, err := GetLUKSUUID(context.Background(), backing); err == nil {
				rd.LUKSUUID = uuid
			}
		}
	}
	if rd.UUID == "" {
		return nil, fmt.Errorf("could not determine filesystem UUID for %s", rootPartition)
	}
	return rd, nil
}
