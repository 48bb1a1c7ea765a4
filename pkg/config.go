package pkg

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/frostyard/nbc-bootctl/pkg/types"
)

const (
	// toolStateSubdir is ToolState's location relative to prefix.
	toolStateSubdir = "var/lib/nbc-bootctl"
	// toolStateFilename is the state sidecar's filename within toolStateSubdir.
	toolStateFilename = "state.json"
	// legacyToolStateSubdir is the pre-migration location relative to prefix.
	legacyToolStateSubdir = "etc/nbc-bootctl"
	// rebootMarkerSubdir is the reboot-required marker's location relative to
	// prefix (tmpfs on a live system; cleared across reboot).
	rebootMarkerSubdir = "run"
	// rebootMarkerFilename is the reboot-required marker's filename.
	rebootMarkerFilename = "nbc-bootctl-reboot-required"
)

// ToolStateDir returns the directory nbc-bootctl keeps its persisted state
// in, under prefix.
func ToolStateDir(prefix string) string { return filepath.Join(prefix, toolStateSubdir) }

// ToolStateFile returns the state sidecar path, under prefix.
func ToolStateFile(prefix string) string { return filepath.Join(ToolStateDir(prefix), toolStateFilename) }

func legacyToolStateDir(prefix string) string { return filepath.Join(prefix, legacyToolStateSubdir) }
func legacyToolStateFile(prefix string) string {
	return filepath.Join(legacyToolStateDir(prefix), toolStateFilename)
}

// RebootRequiredMarker returns the reboot-pending marker path, under prefix.
func RebootRequiredMarker(prefix string) string {
	return filepath.Join(prefix, rebootMarkerSubdir, rebootMarkerFilename)
}

// ToolState is the small JSON sidecar nbc-bootctl keeps across invocations:
// which backend it last selected and when it last completed an operation
// successfully. It is informational only; SetPrefix always re-derives the
// active backend from the live host rather than trusting this cache.
type ToolState struct {
	LastBackend    string `json:"last_backend,omitempty"`
	LastOperation  string `json:"last_operation,omitempty"`
	LastOperatedAt string `json:"last_operated_at,omitempty"`
}

// WriteToolState writes state to prefix's state file, migrating away from
// the legacy location on success.
func WriteToolState(prefix string, state *ToolState, progress Reporter) error {
	dir := ToolStateDir(prefix)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	path := ToolStateFile(prefix)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}

	if err := verifyToolStateFile(path); err != nil {
		return fmt.Errorf("state verification failed: %w", err)
	}

	cleanupLegacyToolState(prefix)

	if progress != nil {
		progress.Message("Wrote tool state to %s", path)
	}
	return nil
}

func verifyToolStateFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read back state: %w", err)
	}
	var state ToolState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("failed to parse state: %w", err)
	}
	return nil
}

// cleanupLegacyToolState removes state from the pre-migration location.
// Errors are intentionally ignored as this is best-effort cleanup.
func cleanupLegacyToolState(prefix string) {
	if _, err := os.Stat(legacyToolStateFile(prefix)); err == nil {
		_ = os.Remove(legacyToolStateFile(prefix))
		_ = os.Remove(legacyToolStateDir(prefix))
	}
}

// ReadToolState reads state from prefix's state file, falling back to the
// legacy location for older installations. Returns a zero-value state (not
// an error) if neither location exists: the state sidecar is informational
// and its absence just means no prior run recorded one.
func ReadToolState(prefix string) (*ToolState, error) {
	data, err := os.ReadFile(ToolStateFile(prefix))
	if err != nil {
		if os.IsNotExist(err) {
			data, err = os.ReadFile(legacyToolStateFile(prefix))
			if err != nil {
				if os.IsNotExist(err) {
					return &ToolState{}, nil
				}
				return nil, fmt.Errorf("failed to read legacy state file: %w", err)
			}
		} else {
			return nil, fmt.Errorf("failed to read state file: %w", err)
		}
	}

	var state ToolState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	return &state, nil
}

// RecordOperation updates and persists the last-backend/last-operation
// fields of the tool state after a successful Facade operation.
func RecordOperation(prefix, backendName, operation, timestamp string, progress Reporter) error {
	state, err := ReadToolState(prefix)
	if err != nil {
		return err
	}
	state.LastBackend = backendName
	state.LastOperation = operation
	state.LastOperatedAt = timestamp
	return WriteToolState(prefix, state, progress)
}

// WriteRebootRequiredMarker creates the reboot-required marker under prefix
// with pending update info.
func WriteRebootRequiredMarker(prefix string, info *types.RebootPendingInfo) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal reboot info: %w", err)
	}

	marker := RebootRequiredMarker(prefix)
	if err := MkdirAll(filepath.Dir(marker), 0755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	if err := os.WriteFile(marker, data, 0644); err != nil {
		return fmt.Errorf("failed to write reboot marker: %w", err)
	}

	return nil
}

// ReadRebootRequiredMarker reads the marker under prefix if it exists,
// returns nil if not present.
func ReadRebootRequiredMarker(prefix string) (*types.RebootPendingInfo, error) {
	data, err := os.ReadFile(RebootRequiredMarker(prefix))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read reboot marker: %w", err)
	}

	var info types.RebootPendingInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to parse reboot marker: %w", err)
	}

	return &info, nil
}

// IsRebootRequired reports whether a reboot is pending under prefix (marker
// exists).
func IsRebootRequired(prefix string) bool {
	_, err := os.Stat(RebootRequiredMarker(prefix))
	return err == nil
}
