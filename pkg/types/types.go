// Package types provides JSON output types for nbc-bootctl commands.
//
// This package is intended for use by external applications that want to
// parse nbc-bootctl's JSON output programmatically. All types are
// serializable to JSON and match the structure of nbc-bootctl's --json
// output.
//
// Example usage:
//
//	import "github.com/frostyard/nbc-bootctl/pkg/types"
//
//	// Parse nbc-bootctl list-kernels --json output
//	var list types.ListKernelsOutput
//	json.Unmarshal(data, &list)
package types

// =============================================================================
// Progress Events (Streaming JSON Lines)
// =============================================================================

// EventType represents the type of progress event
type EventType string

const (
	EventTypeStep     EventType = "step"
	EventTypeProgress EventType = "progress"
	EventTypeMessage  EventType = "message"
	EventTypeWarning  EventType = "warning"
	EventTypeError    EventType = "error"
	EventTypeComplete EventType = "complete"
)

// ProgressEvent represents a single line of JSON Lines output for streaming
// progress. Used by every bootctl operation for real-time progress updates.
type ProgressEvent struct {
	Type       EventType `json:"type"`
	Timestamp  string    `json:"timestamp"`
	Step       int       `json:"step,omitzero"`
	TotalSteps int       `json:"total_steps,omitzero"`
	StepName   string    `json:"step_name,omitempty"`
	Message    string    `json:"message,omitempty"`
	Percent    int       `json:"percent,omitzero"`
	Details    any       `json:"details,omitempty"`
}

// =============================================================================
// Host Inspection Output
// =============================================================================

// RootDeviceOutput mirrors the observable fields of a probed root device.
type RootDeviceOutput struct {
	UUID     string `json:"uuid"`
	PartUUID string `json:"part_uuid,omitempty"`
	LUKSUUID string `json:"luks_uuid,omitempty"`
}

// InspectOutput is a JSON shape for a dump of the Host Inspector's
// SystemConfig. No nbc-bootctl subcommand emits it.
type InspectOutput struct {
	Prefix         string           `json:"prefix"`
	BootDevice     string           `json:"boot_device,omitempty"`
	RootDevice     RootDeviceOutput `json:"root_device"`
	WantedBootMask []string         `json:"wanted_boot_mask"`
	ImageMode      bool             `json:"image_mode"`
}

// =============================================================================
// Kernel Command Output
// =============================================================================

// KernelEntry represents one kernel in list-kernels JSON output.
type KernelEntry struct {
	Bpath     string `json:"bpath"`
	KType     string `json:"ktype"`
	Version   string `json:"version"`
	Release   int    `json:"release"`
	IsDefault bool   `json:"is_default"`
}

// ListKernelsOutput represents the JSON output structure for list-kernels.
type ListKernelsOutput struct {
	Kernels []KernelEntry `json:"kernels"`
}

// InstallKernelOutput represents the JSON output structure for install-kernel.
type InstallKernelOutput struct {
	Bpath   string `json:"bpath"`
	Success bool   `json:"success"`
}

// RemoveKernelOutput represents the JSON output structure for remove-kernel.
type RemoveKernelOutput struct {
	Bpath   string `json:"bpath"`
	Success bool   `json:"success"`
}

// SetDefaultKernelOutput represents the JSON output structure for
// set-default-kernel.
type SetDefaultKernelOutput struct {
	Bpath   string `json:"bpath,omitempty"`
	Success bool   `json:"success"`
}

// =============================================================================
// Bootloader Command Output
// =============================================================================

// ModifyBootloaderOutput represents the JSON output structure for
// modify-bootloader.
type ModifyBootloaderOutput struct {
	Operation      string `json:"operation"`
	BootloaderName string `json:"bootloader_name"`
	Changed        bool   `json:"changed"`
	Success        bool   `json:"success"`
}

// NeedsOutput represents the JSON output structure for needs-install /
// needs-update.
type NeedsOutput struct {
	BootloaderName string `json:"bootloader_name"`
	Needed         bool   `json:"needed"`
}

// =============================================================================
// Reboot-Pending Marker
// =============================================================================

// RebootPendingInfo is the payload written to the reboot-required marker
// after a modify-bootloader install or update that changed something,
// recording which bootloader and operation triggered it. No nbc-bootctl
// subcommand reads it back.
type RebootPendingInfo struct {
	BootloaderName string `json:"bootloader_name"`
	Operation      string `json:"operation"`
	Timestamp      string `json:"timestamp"`
}
