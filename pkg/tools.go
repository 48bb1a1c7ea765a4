package pkg

import "os/exec"

// RequiredTools lists the external binaries a fully-capable install might
// shell out to across all backends. Missing tools are not fatal here: a
// backend whose binary is absent simply reports zero capability and drops
// out of Selector consideration.
var RequiredTools = []string{
	"extlinux",
	"grub-install",
	"grub-mkconfig",
	"bootctl",
	"efibootmgr",
	"blkid",
	"cryptsetup",
}

// CheckRequiredTools reports (via progress.Warning, never an error) which of
// RequiredTools are missing from PATH, so the operator can see why a given
// backend might be unavailable. Neither the facade nor the CLI calls it.
func CheckRequiredTools(progress Reporter) {
	if progress == nil {
		progress = NoopReporter{}
	}
	for _, tool := range RequiredTools {
		if _, err := exec.LookPath(tool); err != nil {
			progress.Warning("%s not found in PATH; any backend requiring it will be unavailable", tool)
		}
	}
}
