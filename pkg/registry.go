package pkg

import (
	"context"
	"fmt"
)

// KnownBackends lists the backend constructors the registry scans, in
// selection order. GRUB2 is placed first so a host capable of either GRUB2
// or extlinux prefers GRUB2; extlinux is last as the universal fallback.
// Shim-wrapped UEFI is tried ahead of plain systemd-boot since a Secure
// Boot capable host should get the chain-loading backend.
var KnownBackends = []func() Backend{
	NewGRUB2Backend,
	NewShimBackend,
	NewSystemdBootBackend,
	NewExtlinuxBackend,
}

// SelectBackend scans candidates in order and returns the first whose
// capabilities are a superset of sys.WantedBootMask, initialized against
// bootDir. It is a hard error if no candidate matches.
func SelectBackend(ctx context.Context, candidates []func() Backend, sys *SystemConfig, bootDir string) (Backend, error) {
	for _, ctor := range candidates {
		b := ctor()
		caps := b.GetCapabilities(ctx, sys)
		if !caps.Has(sys.WantedBootMask) {
			continue
		}
		if err := b.Init(ctx, sys, bootDir); err != nil {
			b.Destroy(ctx)
			return nil, newError(ErrEnvironment, "select_bootloader",
				fmt.Errorf("cannot initialize bootloader %s: %w", b.Name(), err))
		}
		return b, nil
	}
	return nil, newError(ErrEnvironment, "select_bootloader",
		fmt.Errorf("no appropriate bootloader found for wanted mask %s", sys.WantedBootMask))
}
