package pkg

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// GetLUKSUUID retrieves the LUKS container UUID (not filesystem UUID) for a
// partition or mapper device. Used by the root device prober to populate
// RootDevice.LUKSUUID, which backends then render as an rd.luks.uuid=
// cmdline argument.
func GetLUKSUUID(ctx context.Context, partition string) (string, error) {
	cmd := exec.CommandContext(ctx, "cryptsetup", "luksUUID", partition)
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("failed to get LUKS UUID for %s: %w", partition, err)
	}

	uuid := strings.TrimSpace(string(output))
	if uuid == "" {
		return "", fmt.Errorf("empty LUKS UUID for %s", partition)
	}

	return uuid, nil
}

// IsTPMAvailable reports whether a TPM2 device node (/dev/tpm0 or
// /dev/tpmrm0) is present on the host. Nothing outside its test calls it.
func IsTPMAvailable() bool {
	tpmDevices := []string{
		"/dev/tpm0",
		"/dev/tpmrm0",
	}

	for _, device := range tpmDevices {
		if Exists(device) {
			return true
		}
	}

	return false
}
