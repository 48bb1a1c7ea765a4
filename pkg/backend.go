package pkg

import "context"

// OperationFlags modifies how ModifyBootloader dispatches an install,
// update or remove to the active backend.
type OperationFlags int

const (
	// NoChecks skips the backend's own needs-install/needs-update gate,
	// forcing the operation to run unconditionally.
	NoChecks OperationFlags = 1 << iota
)

// Has reports whether flag is set in f.
func (f OperationFlags) Has(flag OperationFlags) bool { return f&flag != 0 }

// Backend is the contract every bootloader implementation satisfies. The
// facade never special-cases a concrete backend; every lifecycle and
// kernel-reconciliation operation flows through this interface.
type Backend interface {
	// Name identifies the backend for logging and the CLI's
	// modify-bootloader output.
	Name() string

	// GetCapabilities reports what this backend can provide on this host,
	// used by the selector to superset-match against a SystemConfig's
	// wanted mask.
	GetCapabilities(ctx context.Context, sys *SystemConfig) Capability

	// Init prepares the backend to operate against sys and boot dir. It is
	// called once after a backend is selected, and again whenever the
	// facade's boot dir or prefix changes.
	Init(ctx context.Context, sys *SystemConfig, bootDir string) error

	// Destroy releases any resources Init acquired. Called before
	// switching to a different backend or on facade teardown.
	Destroy(ctx context.Context)

	// NeedsInstall reports whether this backend has never been installed
	// onto the boot device.
	NeedsInstall(ctx context.Context) bool

	// Install performs first-time installation of the backend onto the
	// boot device.
	Install(ctx context.Context) error

	// NeedsUpdate reports whether an already-installed backend is stale
	// relative to what's on the source filesystem.
	NeedsUpdate(ctx context.Context) bool

	// Update refreshes an already-installed backend in place.
	Update(ctx context.Context) error

	// Remove uninstalls the backend from the boot device.
	Remove(ctx context.Context) error

	// InstallKernel adds k to this backend's boot menu.
	InstallKernel(ctx context.Context, k *Kernel) error

	// RemoveKernel removes k from this backend's boot menu. Some
	// queue-based backends cannot remove individual stanzas and treat
	// this as a documented no-op; see SetDefaultKernel/Update for how
	// such backends reconcile their menu instead.
	RemoveKernel(ctx context.Context, k *Kernel) error

	// SetDefaultKernel marks k as the default boot entry.
	SetDefaultKernel(ctx context.Context, k *Kernel) error

	// GetDefaultKernel returns the bpath of the current default entry, or
	// an empty string if none is set.
	GetDefaultKernel(ctx context.Context) (string, error)

	// GetKernelDestination returns the directory kernels are installed
	// into relative to the boot dir, or "" if this backend installs
	// kernels into the boot dir's root.
	GetKernelDestination() string
}

// FreestandingInitrdSetter is implemented by backends that render
// freestanding initrds directly into a per-kernel config line rather than
// installing them as standalone files in the boot dir (the latter goes
// through BootManager.CopyFreestandingInitrds instead). The facade feeds
// the current map to any backend implementing this before SetDefaultKernel.
type FreestandingInitrdSetter interface {
	SetFreestandingInitrds(initrds FreestandingInitrdMap)
}
