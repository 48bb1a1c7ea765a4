package pkg

import (
	"fmt"
	"path/filepath"
)

// SystemConfig is the result of inspecting a host's boot topology: the
// resolved prefix, the discovered boot device (if any), the probed root
// device, and the capability mask a bootloader backend must satisfy.
type SystemConfig struct {
	Prefix         string
	BootDevice     string
	RootDevice     *RootDevice
	WantedBootMask Capability
	ImageMode      bool
}

// IsSane reports whether config is usable: a root device probe must have
// succeeded. Everything else is optional (boot_device may legitimately be
// empty in image mode with no discoverable ESP).
func (c *SystemConfig) IsSane() bool {
	return c != nil && c.RootDevice != nil
}

// HostInspector discovers the boot topology of a host: native-UEFI
// detection, legacy-GPT-vs-ESP boot device discovery, and root device
// probing. It depends only on the injected collaborators, never touching
// the host directly, so tests can drive every branch with fakes.
type HostInspector struct {
	System   SystemStub
	Blocks   BlockDeviceLocator
	Fstype   FstypeProber
	RootProb RootDeviceProber
}

// NewHostInspector builds a HostInspector wired to the production
// collaborators.
func NewHostInspector() *HostInspector {
	return &HostInspector{
		System:   NewSystemStub(),
		Blocks:   NewBlockDeviceLocator(),
		Fstype:   NewFstypeProber(),
		RootProb: NewRootDeviceProber(),
	}
}

// InspectRoot resolves path to an absolute prefix and builds a SystemConfig
// describing its boot topology, in image mode or on a live system.
//
// Discovery order: native UEFI is checked first (via the sysfs firmware/efi
// marker; never in image mode). Unless native UEFI was detected, a legacy
// GPT boot partition relative to prefix is probed and, if found, takes
// precedence over a system ESP; on a native UEFI host the legacy probe is
// skipped and only the ESP is looked for. If no boot device is found at all, the wanted mask falls
// back to a bare UEFI or LEGACY guess so image-mode builds can proceed
// without a present boot device.
func (h *HostInspector) InspectRoot(path string, imageMode bool) (*SystemConfig, error) {
	if path == "" {
		return nil, newError(ErrConfigInsane, "inspect_root", fmt.Errorf("empty path"))
	}
	realp, err := filepath.EvalSymlinks(path)
	if err != nil {
		return nil, newError(ErrEnvironment, "inspect_root", fmt.Errorf("path does not exist: %s", path))
	}
	realp, err = filepath.Abs(realp)
	if err != nil {
		return nil, newError(ErrEnvironment, "inspect_root", err)
	}

	c := &SystemConfig{Prefix: realp, ImageMode: imageMode}

	nativeUEFI := false
	if !imageMode {
		nativeUEFI = h.hasSysfsFirmwareEFI()
	}

	var boot string
	var found bool
	if !nativeUEFI || imageMode {
		boot, found = h.Blocks.LegacyBootDevice(realp)
	}
	if found {
		c.BootDevice = boot
		c.WantedBootMask = CapLegacy | CapGPT
	} else {
		if !imageMode {
			boot, found = h.Blocks.BootDevice()
		}
		if found {
			c.BootDevice = boot
			c.WantedBootMask = CapUEFI | CapGPT
		} else if !imageMode {
			if nativeUEFI {
				c.WantedBootMask = CapUEFI
			} else {
				c.WantedBootMask = CapLegacy
			}
		} else {
			c.WantedBootMask = CapUEFI
		}
	}

	if c.BootDevice != "" {
		// A boot device that cannot be re-resolved is kept as discovered;
		// inspection carries on.
		if resolved, err := filepath.EvalSymlinks(c.BootDevice); err == nil {
			c.BootDevice = resolved
		}
		c.WantedBootMask |= CapGPT

		fstype, err := h.Fstype.Fstype(c.BootDevice)
		if err == nil {
			c.WantedBootMask |= fstype
		}
	}

	rd, err := h.RootProb.ProbePath(realp)
	if err != nil {
		return nil, newError(ErrEnvironment, "inspect_root", err)
	}
	c.RootDevice = rd

	return c, nil
}

func (h *HostInspector) hasSysfsFirmwareEFI() bool {
	sysfs := h.System.SysfsPath()
	return Exists(filepath.Join(sysfs, "firmware", "efi"))
}
