package pkg

import (
	"context"
	"fmt"
	"os"
)

// MountOutcome is the tri-state result of a mount-boot attempt.
type MountOutcome int

const (
	// MountFailed means the boot device could not be mounted.
	MountFailed MountOutcome = iota
	// MountAlreadyMounted means the boot directory (or an adopted
	// premounted ESP) was already mounted; the caller does not own the
	// mount and must not unmount it.
	MountAlreadyMounted
	// MountPerformed means this call mounted the boot device; the caller
	// owns the mount and is responsible for unmounting it.
	MountPerformed
)

// MountResult carries the tri-state outcome together with the boot
// directory it applies to.
type MountResult struct {
	Outcome MountOutcome
	BootDir string
}

// Owned reports whether the caller mounted the boot device and therefore
// owns its teardown.
func (r MountResult) Owned() bool { return r.Outcome == MountPerformed }

// MountBroker mounts and unmounts the boot partition on demand, adopting an
// already-mounted ESP wherever the system has one, and owns only the mounts
// it personally performs.
type MountBroker struct {
	System SystemStub
	Blocks BlockDeviceLocator
}

// NewMountBroker builds a MountBroker wired to the production
// collaborators.
func NewMountBroker() *MountBroker {
	return &MountBroker{System: NewSystemStub(), Blocks: NewBlockDeviceLocator()}
}

// BootDirTarget is satisfied by *BootManager's GetBootDir/SetBootDir pair,
// letting the broker adopt a premounted ESP by re-pointing the facade at it
// without the broker importing the facade type.
type BootDirTarget interface {
	GetBootDir() string
	SetBootDir(ctx context.Context, dir string) error
}

// MountBoot ensures the boot partition is mounted, returning a tri-state
// result: already mounted, newly mounted (owned by the caller), or failed.
//
// If an ESP is already mounted somewhere other than the facade's configured
// boot directory, MountBoot adopts that mountpoint via target.SetBootDir
// rather than mounting a second copy. After mounting the device itself it
// likewise calls target.SetBootDir on the boot directory, so the backend is
// re-initialized under the new mount.
func (m *MountBroker) MountBoot(ctx context.Context, target BootDirTarget, bootDevice string) MountResult {
	bootDir := target.GetBootDir()
	if bootDir == "" {
		return MountResult{Outcome: MountFailed}
	}

	if m.System.IsMounted(bootDir) {
		return MountResult{Outcome: MountAlreadyMounted, BootDir: bootDir}
	}

	if bootDevice == "" {
		return MountResult{Outcome: MountFailed}
	}

	if mountpoint, ok := m.Blocks.MountpointForDevice(bootDevice); ok {
		if err := target.SetBootDir(ctx, mountpoint); err != nil {
			return MountResult{Outcome: MountFailed}
		}
		return MountResult{Outcome: MountAlreadyMounted, BootDir: mountpoint}
	}

	if _, err := os.Stat(bootDir); os.IsNotExist(err) {
		if err := os.MkdirAll(bootDir, 0o755); err != nil {
			return MountResult{Outcome: MountFailed}
		}
	}

	if err := m.System.Mount(ctx, bootDevice, bootDir, "vfat"); err != nil {
		return MountResult{Outcome: MountFailed}
	}
	if err := target.SetBootDir(ctx, bootDir); err != nil {
		_ = m.System.Unmount(ctx, bootDir)
		return MountResult{Outcome: MountFailed}
	}

	return MountResult{Outcome: MountPerformed, BootDir: bootDir}
}

// UnmountBoot tears down a mount only the caller owns; it is always safe to
// call on a MountAlreadyMounted result, where it is a silent no-op.
func (m *MountBroker) UnmountBoot(ctx context.Context, result MountResult) error {
	if !result.Owned() {
		return nil
	}
	if err := m.System.Unmount(ctx, result.BootDir); err != nil {
		return fmt.Errorf("unmount boot directory %s: %w", result.BootDir, err)
	}
	return nil
}
