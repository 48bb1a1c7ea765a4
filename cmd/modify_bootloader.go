package cmd

import (
	"context"
	"fmt"

	"github.com/frostyard/nbc-bootctl/pkg"
	"github.com/frostyard/nbc-bootctl/pkg/types"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var modifyBootloaderNoCheck bool

var modifyBootloaderCmd = &cobra.Command{
	Use:   "modify-bootloader {install|update|remove}",
	Short: "Install, update or remove the active bootloader backend",
	Long: `Dispatch an install, update or remove operation to the bootloader
backend selected for this host. install and update honor the backend's
own needs-install/needs-update gate unless --no-check is given; remove
always runs.`,
	Args: cobra.ExactArgs(1),
	RunE: runModifyBootloader,
}

func init() {
	modifyBootloaderCmd.Flags().BoolVar(&modifyBootloaderNoCheck, "no-check", false, "bypass the backend's needs-install/needs-update gate")
	rootCmd.AddCommand(modifyBootloaderCmd)
}

func runModifyBootloader(cmd *cobra.Command, args []string) error {
	jsonOutput := viper.GetBool("json")
	dryRun := viper.GetBool("dry-run")

	op, opName, err := parseModifyOperation(args[0])
	if err != nil {
		if jsonOutput {
			return outputJSONError("invalid operation", err)
		}
		return err
	}

	var flags pkg.OperationFlags
	if modifyBootloaderNoCheck {
		flags |= pkg.NoChecks
	}

	return withBootManager(cmd.Context(), func(ctx context.Context, m *pkg.BootManager, progress pkg.Reporter) error {
		if dryRun {
			progress.MessagePlain("[DRY RUN] Would run %s against backend %s", opName, m.BackendName())
			return reportModifyBootloader(jsonOutput, opName, m.BackendName(), true, true)
		}

		progress.Step(1, 1, fmt.Sprintf("%s bootloader %s", opName, m.BackendName()))
		changed, err := m.ModifyBootloader(ctx, op, flags)
		if err != nil {
			if jsonOutput {
				return outputJSONError(fmt.Sprintf("failed to %s bootloader", opName), err)
			}
			progress.Error(err, fmt.Sprintf("failed to %s bootloader", opName))
			return err
		}

		if changed {
			_ = pkg.RecordOperation(m.GetPrefix(), m.BackendName(), opName, recordTimestamp(), progress)
			if op == pkg.OpUpdate || op == pkg.OpInstall {
				_ = pkg.WriteRebootRequiredMarker(m.GetPrefix(), &types.RebootPendingInfo{
					BootloaderName: m.BackendName(),
					Operation:      opName,
					Timestamp:      recordTimestamp(),
				})
			}
			progress.Complete(fmt.Sprintf("Bootloader %s complete", opName), nil)
		} else {
			progress.Message("Bootloader %s already up to date; nothing to do", opName)
		}

		return reportModifyBootloader(jsonOutput, opName, m.BackendName(), changed, true)
	})
}

func parseModifyOperation(arg string) (pkg.ModifyOperation, string, error) {
	switch arg {
	case "install":
		return pkg.OpInstall, "install", nil
	case "update":
		return pkg.OpUpdate, "update", nil
	case "remove":
		return pkg.OpRemove, "remove", nil
	default:
		return 0, "", fmt.Errorf("unknown operation %q; must be install, update or remove", arg)
	}
}

func reportModifyBootloader(jsonOutput bool, operation, backendName string, changed, success bool) error {
	if !jsonOutput {
		return nil
	}
	return outputJSON(types.ModifyBootloaderOutput{
		Operation:      operation,
		BootloaderName: backendName,
		Changed:        changed,
		Success:        success,
	})
}
