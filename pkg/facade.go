package pkg

import (
	"context"
	"fmt"
	"path/filepath"
)

const (
	defaultKernelDirectory = "usr/lib/kernel"
	defaultInitrdDirectory = "usr/lib/initramfs-freestanding"
	defaultBootDirectory   = "boot"
)

// ModifyOperation names the action ModifyBootloader dispatches.
type ModifyOperation int

const (
	OpInstall ModifyOperation = iota
	OpUpdate
	OpRemove
)

// BootManager is the facade coordinating the Host Inspector, Mount Broker,
// Registry & Selector, the active Backend and both reconcilers into the
// single entry point the CLI layer drives. It owns exactly one absolute
// prefix, one selected backend and one resolved boot directory at a time;
// changing any of them tears down and reinitializes the backend.
type BootManager struct {
	inspector   *HostInspector
	kernelRecon *KernelReconciler
	initrdRecon *InitrdReconciler
	broker      *MountBroker

	sysconfig   *SystemConfig
	backend     Backend
	absBootDir  string
	kernelDir   string
	initrdDir   string
	osRelease   *OSRelease
	cmdline     string
	imageMode   bool
	initrdMap   FreestandingInitrdMap
	osReleaser  OSReleaseReader
	cmdliner    CmdlineReader
	candidates  []func() Backend
}

// BootManagerOption customizes New.
type BootManagerOption func(*BootManager)

// WithBackendCandidates overrides the registry's candidate list, used by
// tests to force a specific backend selection.
func WithBackendCandidates(candidates []func() Backend) BootManagerOption {
	return func(m *BootManager) { m.candidates = candidates }
}

// WithInspector overrides the Host Inspector, letting tests drive SetPrefix
// against fake collaborators instead of the live host.
func WithInspector(inspector *HostInspector) BootManagerOption {
	return func(m *BootManager) { m.inspector = inspector }
}

// WithEnumerator overrides the kernel enumerator used by the reconciler.
func WithEnumerator(enumerator KernelEnumerator) BootManagerOption {
	return func(m *BootManager) { m.kernelRecon = NewKernelReconciler(enumerator) }
}

// WithOSReleaseReader overrides the os-release collaborator.
func WithOSReleaseReader(r OSReleaseReader) BootManagerOption {
	return func(m *BootManager) { m.osReleaser = r }
}

// WithCmdlineReader overrides the cmdline-aggregation collaborator.
func WithCmdlineReader(r CmdlineReader) BootManagerOption {
	return func(m *BootManager) { m.cmdliner = r }
}

// New constructs a BootManager with no prefix set; call SetPrefix before
// any other operation.
func New(opts ...BootManagerOption) *BootManager {
	m := &BootManager{
		inspector:   NewHostInspector(),
		broker:      NewMountBroker(),
		candidates:  KnownBackends,
		kernelRecon: NewKernelReconciler(NewKernelEnumerator()),
		osReleaser:  NewOSReleaseReader(),
		cmdliner:    NewCmdlineReader(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetBootDir returns the facade's resolved boot directory: the explicitly
// set directory if SetBootDir was called, otherwise prefix/boot.
func (m *BootManager) GetBootDir() string {
	if m.absBootDir != "" {
		return m.absBootDir
	}
	if m.sysconfig == nil {
		return ""
	}
	resolved, err := filepath.EvalSymlinks(filepath.Join(m.sysconfig.Prefix, defaultBootDirectory))
	if err == nil {
		return resolved
	}
	return filepath.Join(m.sysconfig.Prefix, defaultBootDirectory)
}

// SetBootDir re-points the facade at bootdir and reinitializes the active
// backend against it. Used to adopt a premounted ESP.
func (m *BootManager) SetBootDir(ctx context.Context, bootdir string) error {
	if bootdir == "" {
		return newError(ErrConfigInsane, "set_boot_dir", fmt.Errorf("empty boot directory"))
	}
	m.absBootDir = bootdir
	if m.backend == nil {
		return nil
	}
	m.backend.Destroy(ctx)
	if err := m.backend.Init(ctx, m.sysconfig, m.GetBootDir()); err != nil {
		m.backend.Destroy(ctx)
		return newError(ErrEnvironment, "set_boot_dir", fmt.Errorf("re-initialisation of bootloader failed: %w", err))
	}
	return nil
}

// SetPrefix rebuilds the facade's entire view of the host rooted at
// prefix: sysconfig, kernel/initrd directories, os-release, cmdline and
// backend selection are all torn down and rebuilt.
func (m *BootManager) SetPrefix(ctx context.Context, prefix string) error {
	if prefix == "" {
		return newError(ErrConfigInsane, "set_prefix", fmt.Errorf("empty prefix"))
	}

	sysconfig, err := m.inspector.InspectRoot(prefix, m.imageMode)
	if err != nil {
		return err
	}
	m.sysconfig = sysconfig
	m.absBootDir = ""

	m.kernelDir = filepath.Join(sysconfig.Prefix, defaultKernelDirectory)
	m.initrdDir = filepath.Join(sysconfig.Prefix, defaultInitrdDirectory)

	if m.backend != nil {
		m.backend.Destroy(ctx)
		m.backend = nil
	}

	if m.osReleaser != nil {
		osRelease, err := m.osReleaser.ReadOSRelease(sysconfig.Prefix)
		if err != nil {
			return newError(ErrParse, "set_prefix", err)
		}
		m.osRelease = osRelease
	}
	if m.cmdliner != nil {
		cmdline, err := m.cmdliner.ReadCmdline(sysconfig.Prefix)
		if err == nil {
			m.cmdline = cmdline
		}
	}

	backend, err := SelectBackend(ctx, m.candidates, sysconfig, m.GetBootDir())
	if err != nil {
		return err
	}
	m.backend = backend
	return nil
}

// GetPrefix returns the currently configured prefix.
func (m *BootManager) GetPrefix() string {
	if m.sysconfig == nil {
		return ""
	}
	return m.sysconfig.Prefix
}

// GetKernelDir returns the directory kernels are discovered from.
func (m *BootManager) GetKernelDir() string { return m.kernelDir }

// GetRootDevice returns the probed root device, or nil before SetPrefix.
func (m *BootManager) GetRootDevice() *RootDevice {
	if m.sysconfig == nil {
		return nil
	}
	return m.sysconfig.RootDevice
}

// GetOSName returns the PrettyName field from the probed os-release, if
// one was read.
func (m *BootManager) GetOSName() string {
	if m.osRelease == nil {
		return ""
	}
	return m.osRelease.PrettyName
}

// SetImageMode toggles image-mode inspection; takes effect on the next
// SetPrefix call.
func (m *BootManager) SetImageMode(imageMode bool) { m.imageMode = imageMode }

// IsImageMode reports the current image-mode setting.
func (m *BootManager) IsImageMode() bool { return m.imageMode }

// BackendName returns the active backend's name, or "" if none selected.
func (m *BootManager) BackendName() string {
	if m.backend == nil {
		return ""
	}
	return m.backend.Name()
}

func (m *BootManager) ensureReady(op string) error {
	if m.backend == nil {
		return newError(ErrConfigInsane, op, fmt.Errorf("no bootloader selected; call SetPrefix first"))
	}
	if !m.sysconfig.IsSane() {
		return newError(ErrConfigInsane, op, fmt.Errorf("sysconfig missing root device"))
	}
	return nil
}

// InstallKernel installs k's blob and boot-menu entry via the active
// backend.
func (m *BootManager) InstallKernel(ctx context.Context, k *Kernel) error {
	if err := m.ensureReady("install_kernel"); err != nil {
		return err
	}
	if m.kernelRecon == nil {
		return newError(ErrConfigInsane, "install_kernel", fmt.Errorf("no kernel enumerator configured"))
	}
	return m.kernelRecon.InstallKernel(ctx, m.backend, m.sysconfig, m.kernelDir, k)
}

// RemoveKernel removes k's blob and boot-menu entry via the active
// backend.
func (m *BootManager) RemoveKernel(ctx context.Context, k *Kernel) error {
	if err := m.ensureReady("remove_kernel"); err != nil {
		return err
	}
	if m.kernelRecon == nil {
		return newError(ErrConfigInsane, "remove_kernel", fmt.Errorf("no kernel enumerator configured"))
	}
	return m.kernelRecon.RemoveKernel(ctx, m.backend, m.sysconfig, m.kernelDir, k)
}

// SetDefaultKernel mounts the boot partition as needed, validates target
// against the discovered kernel set, and asks the active backend to mark
// it default.
func (m *BootManager) SetDefaultKernel(ctx context.Context, target *Kernel) error {
	if err := m.ensureReady("set_default_kernel"); err != nil {
		return err
	}
	if m.kernelRecon == nil {
		return newError(ErrConfigInsane, "set_default_kernel", fmt.Errorf("no kernel enumerator configured"))
	}
	if setter, ok := m.backend.(FreestandingInitrdSetter); ok {
		if err := m.EnumerateFreestandingInitrds(); err != nil {
			return err
		}
		setter.SetFreestandingInitrds(m.initrdMap)
	}
	return m.kernelRecon.SetDefaultKernel(ctx, m.backend, m.sysconfig, m, m.sysconfig.BootDevice, m.kernelDir, target)
}

// ListKernels returns the discovered kernels in descending order together
// with the current default's bpath.
func (m *BootManager) ListKernels(ctx context.Context) (KernelArray, string, error) {
	if err := m.ensureReady("list_kernels"); err != nil {
		return nil, "", err
	}
	if m.kernelRecon == nil {
		return nil, "", newError(ErrConfigInsane, "list_kernels", fmt.Errorf("no kernel enumerator configured"))
	}
	return m.kernelRecon.ListKernels(ctx, m.backend, m.sysconfig, m, m.sysconfig.BootDevice, m.kernelDir)
}

// NeedsInstall reports whether the active backend has never been
// installed.
func (m *BootManager) NeedsInstall(ctx context.Context) (bool, error) {
	if err := m.ensureReady("needs_install"); err != nil {
		return false, err
	}
	return m.backend.NeedsInstall(ctx), nil
}

// NeedsUpdate reports whether the active backend is stale relative to the
// source tree.
func (m *BootManager) NeedsUpdate(ctx context.Context) (bool, error) {
	if err := m.ensureReady("needs_update"); err != nil {
		return false, err
	}
	return m.backend.NeedsUpdate(ctx), nil
}

// ModifyBootloader dispatches install/update/remove to the active backend,
// honoring NoChecks to bypass the backend's own needs_install/needs_update
// gate. Before dispatch it re-resolves and re-initializes the boot
// directory, in case it changed underfoot (a premounted ESP appearing,
// for instance).
func (m *BootManager) ModifyBootloader(ctx context.Context, op ModifyOperation, flags OperationFlags) (changed bool, err error) {
	if err := m.ensureReady("modify_bootloader"); err != nil {
		return false, err
	}
	if err := m.SetBootDir(ctx, m.GetBootDir()); err != nil {
		return false, err
	}

	noCheck := flags.Has(NoChecks)
	switch op {
	case OpInstall:
		if noCheck || m.backend.NeedsInstall(ctx) {
			if err := m.backend.Install(ctx); err != nil {
				return false, newError(ErrEnvironment, "modify_bootloader", err)
			}
			return true, nil
		}
		return false, nil
	case OpRemove:
		if err := m.backend.Remove(ctx); err != nil {
			return false, newError(ErrEnvironment, "modify_bootloader", err)
		}
		return true, nil
	case OpUpdate:
		if noCheck || m.backend.NeedsUpdate(ctx) {
			if err := m.backend.Update(ctx); err != nil {
				return false, newError(ErrEnvironment, "modify_bootloader", err)
			}
			return true, nil
		}
		return false, nil
	default:
		return false, newError(ErrConsistency, "modify_bootloader", fmt.Errorf("unknown bootloader operation"))
	}
}

// EnumerateFreestandingInitrds scans the freestanding initrd source
// directory and refreshes the facade's in-memory map.
func (m *BootManager) EnumerateFreestandingInitrds() error {
	if m.initrdRecon == nil {
		m.initrdRecon = NewInitrdReconciler(m.initrdDir)
	}
	m.initrdRecon.SourceDir = m.initrdDir
	initrds, err := m.initrdRecon.Enumerate()
	if err != nil {
		return newError(ErrIO, "enumerate_initrds_freestanding", err)
	}
	m.initrdMap = initrds
	return nil
}

// CopyFreestandingInitrds installs the enumerated freestanding initrds
// into the boot directory, under the active backend's kernel destination
// if it is a UEFI backend.
func (m *BootManager) CopyFreestandingInitrds(ctx context.Context) error {
	if err := m.ensureReady("copy_initrd_freestanding"); err != nil {
		return err
	}
	if m.initrdRecon == nil {
		return newError(ErrConfigInsane, "copy_initrd_freestanding", fmt.Errorf("initrds not enumerated"))
	}
	isUEFI := m.backend.GetCapabilities(ctx, m.sysconfig).Has(CapUEFI)
	dst := m.backend.GetKernelDestination()
	if err := m.initrdRecon.Install(ctx, m.GetBootDir(), isUEFI, dst, m.initrdMap); err != nil {
		return newError(ErrIO, "copy_initrd_freestanding", err)
	}
	return nil
}

// RemoveFreestandingInitrds prunes installed freestanding initrds that no
// longer have a backing source file.
func (m *BootManager) RemoveFreestandingInitrds(ctx context.Context) error {
	if err := m.ensureReady("remove_initrd_freestanding"); err != nil {
		return err
	}
	if m.initrdRecon == nil {
		return newError(ErrConfigInsane, "remove_initrd_freestanding", fmt.Errorf("initrds not enumerated"))
	}
	isUEFI := m.backend.GetCapabilities(ctx, m.sysconfig).Has(CapUEFI)
	dst := m.backend.GetKernelDestination()
	if err := m.initrdRecon.Prune(ctx, m.GetBootDir(), isUEFI, dst, m.initrdMap); err != nil {
		return newError(ErrIO, "remove_initrd_freestanding", err)
	}
	return nil
}
