package cmd

import (
	"context"
	"os"

	"github.com/frostyard/nbc-bootctl/pkg"
	"github.com/frostyard/nbc-bootctl/pkg/types"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var needsInstallCmd = &cobra.Command{
	Use:   "needs-install",
	Short: "Report whether the active backend has never been installed",
	RunE:  runNeeds(func(ctx context.Context, m *pkg.BootManager) (bool, error) { return m.NeedsInstall(ctx) }),
}

var needsUpdateCmd = &cobra.Command{
	Use:   "needs-update",
	Short: "Report whether the active backend is stale relative to the source tree",
	RunE:  runNeeds(func(ctx context.Context, m *pkg.BootManager) (bool, error) { return m.NeedsUpdate(ctx) }),
}

func init() {
	rootCmd.AddCommand(needsInstallCmd)
	rootCmd.AddCommand(needsUpdateCmd)
}

// runNeeds builds a RunE that probes check against the resolved
// BootManager and reports the result. Exit status follows the
// shell-scriptable boolean-command convention (0 when needed, 1 when
// not), so scripts can write `if nbc-bootctl needs-update; then ...`.
func runNeeds(check func(ctx context.Context, m *pkg.BootManager) (bool, error)) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		jsonOutput := viper.GetBool("json")
		needed := false

		err := withBootManager(cmd.Context(), func(ctx context.Context, m *pkg.BootManager, progress pkg.Reporter) error {
			var err error
			needed, err = check(ctx, m)
			if err != nil {
				if jsonOutput {
					return outputJSONError("failed to check bootloader status", err)
				}
				return err
			}

			if jsonOutput {
				return outputJSON(types.NeedsOutput{BootloaderName: m.BackendName(), Needed: needed})
			}
			progress.MessagePlain("%v", needed)
			return nil
		})
		if err != nil {
			return err
		}
		if !needed {
			os.Exit(1)
		}
		return nil
	}
}
