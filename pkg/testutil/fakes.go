// Package testutil provides test helpers and fixtures for nbc-bootctl
// testing: fakes for the core's injectable collaborators, golden-file
// assertions and shared timeout constants.
package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/frostyard/nbc-bootctl/pkg"
)

// TempPrefix creates a temporary directory standing in for a host's root
// prefix and returns its path. Callers populate whatever subtree the test
// needs (usr/lib/kernel, boot, etc).
func TempPrefix(t *testing.T) string {
	t.Helper()
	return t.TempDir()
}

// FakeSystem is an in-memory pkg.SystemStub: no syscalls, every call
// recorded for assertions.
type FakeSystem struct {
	Mounted    map[string]bool
	MountErr   error
	UnmountErr error
	RunErr     error
	Sysfs      string
	MountCalls []string
	RunCalls   [][]string
}

// NewFakeSystem returns a FakeSystem with no paths mounted.
func NewFakeSystem() *FakeSystem {
	return &FakeSystem{Mounted: make(map[string]bool)}
}

func (f *FakeSystem) IsMounted(path string) bool { return f.Mounted[path] }

func (f *FakeSystem) Mount(_ context.Context, source, target, _ string) error {
	f.MountCalls = append(f.MountCalls, source+"->"+target)
	if f.MountErr != nil {
		return f.MountErr
	}
	if f.Mounted == nil {
		f.Mounted = make(map[string]bool)
	}
	f.Mounted[target] = true
	return nil
}

func (f *FakeSystem) Unmount(_ context.Context, target string) error {
	if f.UnmountErr != nil {
		return f.UnmountErr
	}
	delete(f.Mounted, target)
	return nil
}

func (f *FakeSystem) Run(_ context.Context, name string, args ...string) error {
	f.RunCalls = append(f.RunCalls, append([]string{name}, args...))
	return f.RunErr
}

func (f *FakeSystem) SysfsPath() string {
	if f.Sysfs == "" {
		return "/sys"
	}
	return f.Sysfs
}

// FakeBlockDeviceLocator is a scripted pkg.BlockDeviceLocator.
type FakeBlockDeviceLocator struct {
	Boot        string
	BootFound   bool
	LegacyBoot  string
	LegacyFound bool
	Parent      string
	ParentErr   error
	Mountpoints map[string]string
}

func (f *FakeBlockDeviceLocator) BootDevice() (string, bool) { return f.Boot, f.BootFound }

func (f *FakeBlockDeviceLocator) LegacyBootDevice(string) (string, bool) {
	return f.LegacyBoot, f.LegacyFound
}

func (f *FakeBlockDeviceLocator) ParentDisk(string) (string, error) {
	return f.Parent, f.ParentErr
}

func (f *FakeBlockDeviceLocator) MountpointForDevice(dev string) (string, bool) {
	if f.Mountpoints == nil {
		return "", false
	}
	mp, ok := f.Mountpoints[dev]
	return mp, ok
}

// FakeFstypeProber returns a scripted pkg.Capability per device.
type FakeFstypeProber struct {
	ByDevice map[string]pkg.Capability
	Err      error
}

func (f *FakeFstypeProber) Fstype(device string) (pkg.Capability, error) {
	if f.Err != nil {
		return 0, f.Err
	}
	return f.ByDevice[device], nil
}

// FakeRootDeviceProber is a scripted pkg.RootDeviceProber.
type FakeRootDeviceProber struct {
	Device *pkg.RootDevice
	Err    error
}

func (f *FakeRootDeviceProber) ProbePath(string) (*pkg.RootDevice, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Device, nil
}

// FakeOSReleaseReader is a scripted pkg.OSReleaseReader.
type FakeOSReleaseReader struct {
	Release *pkg.OSRelease
	Err     error
}

func (f *FakeOSReleaseReader) ReadOSRelease(string) (*pkg.OSRelease, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Release, nil
}

// FakeCmdlineReader is a scripted pkg.CmdlineReader.
type FakeCmdlineReader struct {
	Cmdline string
	Err     error
}

func (f *FakeCmdlineReader) ReadCmdline(string) (string, error) { return f.Cmdline, f.Err }

// FakeKernelEnumerator is a scripted pkg.KernelEnumerator: EnumerateKernels
// returns Kernels as-is, Install/RemoveKernelBlob record calls instead of
// touching the filesystem.
type FakeKernelEnumerator struct {
	Kernels       pkg.KernelArray
	EnumerateErr  error
	InstallErr    error
	RemoveErr     error
	InstallCalls  []string
	RemoveCalls   []string
}

func (f *FakeKernelEnumerator) EnumerateKernels(string) (pkg.KernelArray, error) {
	if f.EnumerateErr != nil {
		return nil, f.EnumerateErr
	}
	return f.Kernels, nil
}

func (f *FakeKernelEnumerator) InstallKernelBlob(_ string, k *pkg.Kernel) error {
	f.InstallCalls = append(f.InstallCalls, k.Meta.Bpath)
	if f.InstallErr != nil {
		return f.InstallErr
	}
	f.Kernels = append(f.Kernels, k)
	return nil
}

func (f *FakeKernelEnumerator) RemoveKernelBlob(_ string, k *pkg.Kernel) error {
	f.RemoveCalls = append(f.RemoveCalls, k.Meta.Bpath)
	if f.RemoveErr != nil {
		return f.RemoveErr
	}
	for i, existing := range f.Kernels {
		if existing.Meta.Bpath == k.Meta.Bpath {
			f.Kernels = append(f.Kernels[:i], f.Kernels[i+1:]...)
			break
		}
	}
	return nil
}

// FakeBackend is a scripted pkg.Backend. Capabilities is returned verbatim
// from GetCapabilities; every lifecycle call records itself in Calls and
// returns the matching scripted error, if any.
type FakeBackend struct {
	BackendName  string
	Capabilities pkg.Capability
	DefaultPath  string
	Dest         string

	InitErr          error
	InstallErr       error
	UpdateErr        error
	RemoveErr        error
	InstallKernelErr error
	RemoveKernelErr  error
	SetDefaultErr    error
	GetDefaultErr    error

	NeedsInstallVal bool
	NeedsUpdateVal  bool

	Calls []string
}

func (f *FakeBackend) Name() string { return f.BackendName }

func (f *FakeBackend) GetCapabilities(context.Context, *pkg.SystemConfig) pkg.Capability {
	return f.Capabilities
}

func (f *FakeBackend) Init(context.Context, *pkg.SystemConfig, string) error {
	f.Calls = append(f.Calls, "init")
	return f.InitErr
}

func (f *FakeBackend) Destroy(context.Context) { f.Calls = append(f.Calls, "destroy") }

func (f *FakeBackend) NeedsInstall(context.Context) bool { return f.NeedsInstallVal }

func (f *FakeBackend) Install(context.Context) error {
	f.Calls = append(f.Calls, "install")
	return f.InstallErr
}

func (f *FakeBackend) NeedsUpdate(context.Context) bool { return f.NeedsUpdateVal }

func (f *FakeBackend) Update(context.Context) error {
	f.Calls = append(f.Calls, "update")
	return f.UpdateErr
}

func (f *FakeBackend) Remove(context.Context) error {
	f.Calls = append(f.Calls, "remove")
	return f.RemoveErr
}

func (f *FakeBackend) InstallKernel(_ context.Context, k *pkg.Kernel) error {
	f.Calls = append(f.Calls, "install_kernel:"+k.Meta.Bpath)
	return f.InstallKernelErr
}

func (f *FakeBackend) RemoveKernel(_ context.Context, k *pkg.Kernel) error {
	f.Calls = append(f.Calls, "remove_kernel:"+k.Meta.Bpath)
	return f.RemoveKernelErr
}

func (f *FakeBackend) SetDefaultKernel(_ context.Context, k *pkg.Kernel) error {
	f.Calls = append(f.Calls, "set_default:"+k.Meta.Bpath)
	if f.SetDefaultErr != nil {
		return f.SetDefaultErr
	}
	f.DefaultPath = k.Meta.Bpath
	return nil
}

func (f *FakeBackend) GetDefaultKernel(context.Context) (string, error) {
	return f.DefaultPath, f.GetDefaultErr
}

func (f *FakeBackend) GetKernelDestination() string { return f.Dest }

// MustKernel builds a Kernel for test fixtures from a
// "<ktype>.<version>-<release>" bpath, panicking if it doesn't parse. Tests
// use this instead of hand-assembling KernelMeta/KernelSource/KernelTarget.
func MustKernel(bpath string) *pkg.Kernel {
	k, err := pkg.ParseKernelSource(bpath)
	if err != nil {
		panic(fmt.Sprintf("testutil.MustKernel(%q): %v", bpath, err))
	}
	return k
}
