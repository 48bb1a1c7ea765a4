package pkg

import (
	"context"
	"fmt"
)

// KernelReconciler drives kernel blob install/remove and default-kernel
// selection against an active Backend, delegating kernel-file discovery
// and blob copy to a KernelEnumerator while the backend handles its own
// boot-menu bookkeeping.
type KernelReconciler struct {
	Enumerator KernelEnumerator
	Broker     *MountBroker
}

// NewKernelReconciler builds a reconciler wired to the production
// collaborators.
func NewKernelReconciler(enumerator KernelEnumerator) *KernelReconciler {
	return &KernelReconciler{Enumerator: enumerator, Broker: NewMountBroker()}
}

// InstallKernel copies k's blob into kernelDir and hands it to backend to
// add to the boot menu. The blob copy happens first: a backend failure
// after a successful blob copy leaves the kernel installed but absent from
// the menu, which is recoverable by retrying; the reverse ordering would
// risk a menu entry with no backing blob.
func (r *KernelReconciler) InstallKernel(ctx context.Context, backend Backend, sys *SystemConfig, kernelDir string, k *Kernel) error {
	if !sys.IsSane() {
		return newError(ErrConfigInsane, "install_kernel", fmt.Errorf("sysconfig missing root device"))
	}
	if err := r.Enumerator.InstallKernelBlob(kernelDir, k); err != nil {
		return newError(ErrIO, "install_kernel", err)
	}
	if err := backend.InstallKernel(ctx, k); err != nil {
		return newError(ErrEnvironment, "install_kernel", err)
	}
	return nil
}

// RemoveKernel removes k's blob and its boot-menu entry. Some backends
// treat RemoveKernel as a no-op against their in-memory queue (see
// ExtlinuxBackend.RemoveKernel); the blob removal still always happens.
func (r *KernelReconciler) RemoveKernel(ctx context.Context, backend Backend, sys *SystemConfig, kernelDir string, k *Kernel) error {
	if !sys.IsSane() {
		return newError(ErrConfigInsane, "remove_kernel", fmt.Errorf("sysconfig missing root device"))
	}
	if err := r.Enumerator.RemoveKernelBlob(kernelDir, k); err != nil {
		return newError(ErrIO, "remove_kernel", err)
	}
	if err := backend.RemoveKernel(ctx, k); err != nil {
		return newError(ErrEnvironment, "remove_kernel", err)
	}
	return nil
}

// SetDefaultKernel mounts the boot partition if needed (skipped for a
// legacy-only wanted mask, where /boot lives on the root filesystem),
// confirms target is among the discovered kernels by (ktype, version,
// release), then asks backend to mark it default.
func (r *KernelReconciler) SetDefaultKernel(ctx context.Context, backend Backend, sys *SystemConfig, bootTarget BootDirTarget, bootDevice string, kernelDir string, target *Kernel) error {
	if !sys.IsSane() {
		return newError(ErrConfigInsane, "set_default_kernel", fmt.Errorf("sysconfig missing root device"))
	}

	kernels, err := r.Enumerator.EnumerateKernels(kernelDir)
	if err != nil || len(kernels) == 0 {
		return newError(ErrIO, "set_default_kernel", fmt.Errorf("no kernels discovered in %s", kernelDir))
	}

	var matched *Kernel
	for _, k := range kernels {
		if k.SameInstalled(target) {
			matched = k
			break
		}
	}
	if matched == nil {
		return newError(ErrConsistency, "set_default_kernel", fmt.Errorf("no matching kernel in %s", kernelDir))
	}

	result := MountResult{Outcome: MountAlreadyMounted}
	if !sys.WantedBootMask.Has(CapLegacy) {
		result = r.Broker.MountBoot(ctx, bootTarget, bootDevice)
		if result.Outcome == MountFailed {
			return newError(ErrEnvironment, "set_default_kernel", fmt.Errorf("cannot mount boot directory"))
		}
	}
	defer r.Broker.UnmountBoot(ctx, result)

	if err := backend.SetDefaultKernel(ctx, matched); err != nil {
		return newError(ErrEnvironment, "set_default_kernel", err)
	}
	return nil
}

// ListKernels returns the discovered kernels in descending sort order
// together with the bpath of the current default, mounting the boot
// partition transiently if the wanted mask requires it.
func (r *KernelReconciler) ListKernels(ctx context.Context, backend Backend, sys *SystemConfig, bootTarget BootDirTarget, bootDevice string, kernelDir string) (KernelArray, string, error) {
	kernels, err := r.Enumerator.EnumerateKernels(kernelDir)
	if err != nil || len(kernels) == 0 {
		return nil, "", newError(ErrIO, "list_kernels", fmt.Errorf("no kernels discovered in %s", kernelDir))
	}
	kernels.SortDescending()

	result := MountResult{Outcome: MountAlreadyMounted}
	if !sys.WantedBootMask.Has(CapLegacy) {
		result = r.Broker.MountBoot(ctx, bootTarget, bootDevice)
	}

	var defaultBpath string
	if result.Outcome != MountFailed {
		defaultBpath, _ = backend.GetDefaultKernel(ctx)
		r.Broker.UnmountBoot(ctx, result)
	}

	return kernels, defaultBpath, nil
}
