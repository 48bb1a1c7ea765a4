package pkg

import (
	"fmt"
	"path/filepath"
	"sort"
)

// KernelMeta holds the observable metadata fields of a kernel. The core
// treats a Kernel as largely opaque — these fields come from the external
// kernel-file discovery collaborator (out of scope here) and are only ever
// read, never recomputed.
type KernelMeta struct {
	KType   string // e.g. "linux", "linux-lts"
	Version string // upstream kernel version, e.g. "6.12.4"
	Release int    // build/release counter, used for ordering and as a tiebreak
	Bpath   string // user-visible identifier; also the default-comparison key
	Cmdline string // this kernel's own cmdline fragment
}

// KernelTarget holds the paths a kernel occupies once installed into the
// boot partition.
type KernelTarget struct {
	LegacyPath string // short filename used inside legacy bootloader stanzas
	InitrdPath string // optional; empty when the kernel carries no bundled initrd
}

// KernelSource holds the kernel's location on the source filesystem.
type KernelSource struct {
	Path string // absolute path of the kernel blob on the source filesystem
}

// Kernel is a discovered kernel. Two kernels are the same installed kernel
// iff (KType, Version, Release) are all equal.
type Kernel struct {
	Meta   KernelMeta
	Source KernelSource
	Target KernelTarget
}

// SameInstalled reports whether k and other identify the same installed
// kernel, per the (ktype, version, release) equality rule.
func (k *Kernel) SameInstalled(other *Kernel) bool {
	if k == nil || other == nil {
		return false
	}
	return k.Meta.KType == other.Meta.KType &&
		k.Meta.Version == other.Meta.Version &&
		k.Meta.Release == other.Meta.Release
}

// KernelArray is an ordered, borrowed sequence of kernels. It never owns or
// frees the kernels it references.
type KernelArray []*Kernel

// SortDescending orders the array by a full total order: Release
// descending, then Version descending, then KType ascending. This
// resolves the sort-stability open question left by the source design:
// release-only comparison left equal-release entries in an unspecified
// relative order across runs.
func (ka KernelArray) SortDescending() {
	sort.SliceStable(ka, func(i, j int) bool {
		a, b := ka[i], ka[j]
		if a.Meta.Release != b.Meta.Release {
			return a.Meta.Release > b.Meta.Release
		}
		if a.Meta.Version != b.Meta.Version {
			return a.Meta.Version > b.Meta.Version
		}
		return a.Meta.KType < b.Meta.KType
	})
}

// ParseKernelSource builds a Kernel from a source-filesystem path, recovering
// (ktype, version, release) from its "<ktype>.<version>-<release>" basename.
// Used by the CLI layer when the operator names a kernel blob directly
// rather than one already discovered by EnumerateKernels.
func ParseKernelSource(path string) (*Kernel, error) {
	name := filepath.Base(path)
	meta, ok := parseKernelFilename(name)
	if !ok {
		return nil, fmt.Errorf("%s: not a recognized <ktype>.<version>-<release> kernel filename", name)
	}
	return &Kernel{
		Meta:   meta,
		Source: KernelSource{Path: path},
		Target: KernelTarget{LegacyPath: name},
	}, nil
}

// FreestandingInitrdMap maps the stable key "freestanding-<filename>" to
// "<filename>". Keys are unique; the map's lifetime is tied to the facade
// instance that owns it and is fully repopulated by each enumeration.
type FreestandingInitrdMap map[string]string
