package pkg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/frostyard/nbc-bootctl/pkg/types"
)

func TestWriteAndReadToolState(t *testing.T) {
	t.Run("round trips through prefix", func(t *testing.T) {
		prefix := t.TempDir()
		state := &ToolState{LastBackend: "grub2", LastOperation: "update", LastOperatedAt: "2026-01-01T00:00:00Z"}

		if err := WriteToolState(prefix, state, NoopReporter{}); err != nil {
			t.Fatalf("WriteToolState failed: %v", err)
		}

		got, err := ReadToolState(prefix)
		if err != nil {
			t.Fatalf("ReadToolState failed: %v", err)
		}
		if got.LastBackend != state.LastBackend || got.LastOperation != state.LastOperation {
			t.Errorf("got %+v, want %+v", got, state)
		}
	})

	t.Run("returns zero value when nothing written", func(t *testing.T) {
		prefix := t.TempDir()
		got, err := ReadToolState(prefix)
		if err != nil {
			t.Fatalf("ReadToolState should not error on absence: %v", err)
		}
		if got.LastBackend != "" {
			t.Errorf("expected zero-value state, got %+v", got)
		}
	})

	t.Run("migrates away from legacy location", func(t *testing.T) {
		prefix := t.TempDir()
		legacyDir := legacyToolStateDir(prefix)
		if err := os.MkdirAll(legacyDir, 0755); err != nil {
			t.Fatalf("failed to seed legacy dir: %v", err)
		}
		if err := os.WriteFile(legacyToolStateFile(prefix), []byte(`{"last_backend":"extlinux"}`), 0644); err != nil {
			t.Fatalf("failed to seed legacy file: %v", err)
		}

		got, err := ReadToolState(prefix)
		if err != nil {
			t.Fatalf("ReadToolState failed: %v", err)
		}
		if got.LastBackend != "extlinux" {
			t.Fatalf("expected legacy state to be read, got %+v", got)
		}

		if err := WriteToolState(prefix, got, NoopReporter{}); err != nil {
			t.Fatalf("WriteToolState failed: %v", err)
		}
		if _, err := os.Stat(legacyToolStateFile(prefix)); !os.IsNotExist(err) {
			t.Error("legacy state file should be removed after migration")
		}
	})
}

func TestRecordOperation(t *testing.T) {
	prefix := t.TempDir()
	if err := RecordOperation(prefix, "systemd-boot", "install", "2026-02-02T00:00:00Z", NoopReporter{}); err != nil {
		t.Fatalf("RecordOperation failed: %v", err)
	}

	got, err := ReadToolState(prefix)
	if err != nil {
		t.Fatalf("ReadToolState failed: %v", err)
	}
	if got.LastBackend != "systemd-boot" || got.LastOperation != "install" {
		t.Errorf("got %+v", got)
	}
}

func TestRebootRequiredMarker(t *testing.T) {
	t.Run("absent by default", func(t *testing.T) {
		prefix := t.TempDir()
		if IsRebootRequired(prefix) {
			t.Error("expected no reboot required before a marker is written")
		}
		info, err := ReadRebootRequiredMarker(prefix)
		if err != nil {
			t.Fatalf("ReadRebootRequiredMarker failed: %v", err)
		}
		if info != nil {
			t.Errorf("expected nil marker, got %+v", info)
		}
	})

	t.Run("round trips after write", func(t *testing.T) {
		prefix := t.TempDir()
		info := &types.RebootPendingInfo{BootloaderName: "grub2", Operation: "update", Timestamp: "2026-03-03T00:00:00Z"}
		if err := WriteRebootRequiredMarker(prefix, info); err != nil {
			t.Fatalf("WriteRebootRequiredMarker failed: %v", err)
		}
		if !IsRebootRequired(prefix) {
			t.Error("expected reboot required after marker write")
		}

		got, err := ReadRebootRequiredMarker(prefix)
		if err != nil {
			t.Fatalf("ReadRebootRequiredMarker failed: %v", err)
		}
		if got == nil || got.BootloaderName != info.BootloaderName {
			t.Errorf("got %+v, want %+v", got, info)
		}
	})

	t.Run("creates run directory if missing", func(t *testing.T) {
		prefix := t.TempDir()
		marker := RebootRequiredMarker(prefix)
		if _, err := os.Stat(filepath.Dir(marker)); !os.IsNotExist(err) {
			t.Fatalf("run directory should not exist yet")
		}
		if err := WriteRebootRequiredMarker(prefix, &types.RebootPendingInfo{}); err != nil {
			t.Fatalf("WriteRebootRequiredMarker failed: %v", err)
		}
	})
}
