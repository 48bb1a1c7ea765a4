package pkg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// InitrdReconciler enumerates, installs and prunes freestanding initramfs
// images: initrds that exist as standalone files beside the kernel tree
// rather than bundled with a specific kernel entry. Enumeration is driven
// by a directory scan; installation and orphan removal are driven by the
// resulting FreestandingInitrdMap.
type InitrdReconciler struct {
	SourceDir string
}

// NewInitrdReconciler builds a reconciler rooted at sourceDir, the
// directory freestanding initrd images are discovered in.
func NewInitrdReconciler(sourceDir string) *InitrdReconciler {
	return &InitrdReconciler{SourceDir: sourceDir}
}

// Enumerate scans SourceDir for regular, non-empty files and returns the
// "freestanding-<name>" -> "<name>" map used by Install/Prune. A broken
// symlink, directory or empty file is silently skipped, matching the
// source's lenient discovery pass.
func (r *InitrdReconciler) Enumerate() (FreestandingInitrdMap, error) {
	result := make(FreestandingInitrdMap)
	entries, err := os.ReadDir(r.SourceDir)
	if err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return nil, fmt.Errorf("enumerate freestanding initrds in %s: %w", r.SourceDir, err)
	}
	for _, ent := range entries {
		info, err := ent.Info()
		if err != nil {
			continue
		}
		if info.Mode()&os.ModeSymlink != 0 {
			target, err := os.Stat(filepath.Join(r.SourceDir, ent.Name()))
			if err != nil {
				continue
			}
			info = target
		}
		if !info.Mode().IsRegular() || info.Size() == 0 {
			continue
		}
		result["freestanding-"+ent.Name()] = ent.Name()
	}
	return result, nil
}

// Install copies each freestanding initrd into the boot directory (under
// efiSubdir when the active backend is UEFI), skipping any copy whose
// contents already match. A UEFI backend with an empty kernel destination
// is an error: get_kernel_destination must be non-empty for a UEFI
// backend by contract.
func (r *InitrdReconciler) Install(ctx context.Context, bootDir string, isUEFI bool, efiSubdir string, initrds FreestandingInitrdMap) error {
	if isUEFI && efiSubdir == "" {
		return fmt.Errorf("UEFI backend reported no kernel destination")
	}
	dest := bootDir
	if isUEFI {
		dest = filepath.Join(bootDir, efiSubdir)
	}
	for key, name := range initrds {
		target := filepath.Join(dest, key)
		source := filepath.Join(r.SourceDir, name)
		match, err := FilesMatch(source, target)
		if err != nil {
			return fmt.Errorf("compare initrd %s: %w", target, err)
		}
		if match {
			continue
		}
		if err := MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := CopyAtomic(source, target, 0o644); err != nil {
			return fmt.Errorf("install initrd %s: %w", target, err)
		}
	}
	return nil
}

// Prune removes installed initrds under the "freestanding-" prefix that no
// longer correspond to a key in the current map, i.e. orphans left behind
// by a source file that was deleted since the last reconcile.
func (r *InitrdReconciler) Prune(ctx context.Context, bootDir string, isUEFI bool, efiSubdir string, initrds FreestandingInitrdMap) error {
	if isUEFI && efiSubdir == "" {
		return fmt.Errorf("UEFI backend reported no kernel destination")
	}
	dest := bootDir
	if isUEFI {
		dest = filepath.Join(bootDir, efiSubdir)
	}
	entries, err := os.ReadDir(dest)
	if err != nil {
		return fmt.Errorf("open %s: %w", dest, err)
	}
	for _, ent := range entries {
		if !strings.HasPrefix(ent.Name(), "freestanding-") {
			continue
		}
		if _, known := initrds[ent.Name()]; known {
			continue
		}
		target := filepath.Join(dest, ent.Name())
		if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove orphaned initrd %s: %w", target, err)
		}
	}
	return nil
}
