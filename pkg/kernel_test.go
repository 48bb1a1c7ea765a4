package pkg_test

import (
	"testing"

	"github.com/frostyard/nbc-bootctl/pkg"
)

func TestKernelSameInstalled(t *testing.T) {
	a := &pkg.Kernel{Meta: pkg.KernelMeta{KType: "linux", Version: "6.12.4", Release: 1}}
	b := &pkg.Kernel{Meta: pkg.KernelMeta{KType: "linux", Version: "6.12.4", Release: 1}}
	c := &pkg.Kernel{Meta: pkg.KernelMeta{KType: "linux", Version: "6.12.4", Release: 2}}

	if !a.SameInstalled(b) {
		t.Error("expected identical (ktype, version, release) to match")
	}
	if a.SameInstalled(c) {
		t.Error("expected a different release to not match")
	}
	if a.SameInstalled(nil) {
		t.Error("expected a nil comparison to not match")
	}
	var nilKernel *pkg.Kernel
	if nilKernel.SameInstalled(a) {
		t.Error("expected a nil receiver to not match")
	}
}

func TestKernelArraySortDescending(t *testing.T) {
	k1 := &pkg.Kernel{Meta: pkg.KernelMeta{KType: "linux", Version: "6.12.4", Release: 1, Bpath: "r1"}}
	k2 := &pkg.Kernel{Meta: pkg.KernelMeta{KType: "linux", Version: "6.12.4", Release: 3, Bpath: "r3"}}
	k3 := &pkg.Kernel{Meta: pkg.KernelMeta{KType: "linux", Version: "6.12.4", Release: 2, Bpath: "r2"}}

	arr := pkg.KernelArray{k1, k2, k3}
	arr.SortDescending()

	want := []string{"r3", "r2", "r1"}
	for i, w := range want {
		if arr[i].Meta.Bpath != w {
			t.Errorf("arr[%d].Meta.Bpath = %q, want %q", i, arr[i].Meta.Bpath, w)
		}
	}
}

func TestKernelArraySortDescendingTiebreaks(t *testing.T) {
	ltsK := &pkg.Kernel{Meta: pkg.KernelMeta{KType: "linux-lts", Version: "6.6.1", Release: 1, Bpath: "lts"}}
	stdK := &pkg.Kernel{Meta: pkg.KernelMeta{KType: "linux", Version: "6.6.1", Release: 1, Bpath: "std"}}

	arr := pkg.KernelArray{ltsK, stdK}
	arr.SortDescending()

	if arr[0].Meta.Bpath != "std" {
		t.Errorf("expected KType ascending tiebreak to put %q first, got %q", "std", arr[0].Meta.Bpath)
	}
}

func TestParseKernelSource(t *testing.T) {
	t.Run("parses a well-formed kernel filename", func(t *testing.T) {
		k, err := pkg.ParseKernelSource("/srv/kernels/linux.6.12.4-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if k.Meta.KType != "linux" || k.Meta.Version != "6.12.4" || k.Meta.Release != 1 {
			t.Errorf("unexpected meta: %+v", k.Meta)
		}
		if k.Source.Path != "/srv/kernels/linux.6.12.4-1" {
			t.Errorf("Source.Path = %q, want the original path", k.Source.Path)
		}
		if k.Target.LegacyPath != "linux.6.12.4-1" {
			t.Errorf("Target.LegacyPath = %q, want the basename", k.Target.LegacyPath)
		}
	})

	t.Run("rejects a filename missing the release suffix", func(t *testing.T) {
		if _, err := pkg.ParseKernelSource("/srv/kernels/linux-6.12.4"); err == nil {
			t.Fatal("expected an error for a malformed kernel filename")
		}
	})

	t.Run("rejects a filename missing the ktype/version separator", func(t *testing.T) {
		if _, err := pkg.ParseKernelSource("/srv/kernels/linux6124-1"); err == nil {
			t.Fatal("expected an error for a filename with no ktype.version dot")
		}
	})
}
