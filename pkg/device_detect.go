package pkg

import (
	"fmt"
	"os/exec"
	"strings"
)

// Device naming helpers.
//
// Partition device names (/dev/sda3, /dev/nvme0n1p3) are unstable across
// disk enumeration order changes, but they are what blkid and cryptsetup
// report, and what the rest of the external-collaborator layer (external.go)
// needs to resolve a root partition or mountpoint back to the physical disk
// a bootloader must be installed onto. These two helpers do that resolution;
// everything else about device identity is left to blkid UUIDs.

// GetBootDeviceFromPartition extracts the parent disk device from a
// partition path. Example: /dev/sda3 -> /dev/sda, /dev/nvme0n1p3 -> /dev/nvme0n1.
func GetBootDeviceFromPartition(partition string) (string, error) {
	partition = strings.TrimPrefix(partition, "/dev/")

	if strings.Contains(partition, "nvme") || strings.Contains(partition, "mmcblk") || strings.HasPrefix(partition, "loop") {
		for i := len(partition) - 1; i >= 0; i-- {
			if partition[i] == 'p' && i < len(partition)-1 {
				suffix := partition[i+1:]
				isAllDigits := true
				for _, c := range suffix {
					if c < '0' || c > '9' {
						isAllDigits = false
						break
					}
				}
				if isAllDigits && len(suffix) > 0 {
					if i > 0 && partition[i-1] >= '0' && partition[i-1] <= '9' {
						return "/dev/" + partition[:i], nil
					}
				}
			}
		}
		return "", fmt.Errorf("invalid nvme/mmcblk/loop partition format: %s", partition)
	}

	var deviceName string
	for i := len(partition) - 1; i >= 0; i-- {
		if partition[i] < '0' || partition[i] > '9' {
			deviceName = partition[:i+1]
			break
		}
	}

	if deviceName == "" {
		return "", fmt.Errorf("could not extract device name from partition: %s", partition)
	}

	return "/dev/" + deviceName, nil
}

// getLUKSBackingDevice gets the underlying physical device for a LUKS mapper
// device. For example: /dev/mapper/root -> /dev/nvme0n1p2.
func getLUKSBackingDevice(mapperDevice string) (string, error) {
	mapperName := strings.TrimPrefix(mapperDevice, "/dev/mapper/")

	cmd := exec.Command("cryptsetup", "status", mapperName)
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("failed to get cryptsetup status for %s: %w", mapperName, err)
	}

	lines := strings.Split(string(output), "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "device:") {
			parts := strings.Fields(line)
			if len(parts) >= 2 {
				return parts[1], nil
			}
		}
	}

	return "", fmt.Errorf("could not find device line in cryptsetup status output for %s", mapperName)
}
