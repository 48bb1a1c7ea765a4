package cmd

import (
	"context"
	"fmt"

	"github.com/frostyard/nbc-bootctl/pkg"
	"github.com/frostyard/nbc-bootctl/pkg/types"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var removeKernelCmd = &cobra.Command{
	Use:   "remove-kernel <path>",
	Short: "Remove a kernel blob and its boot-menu entry",
	Long: `Remove the kernel blob at path from the kernel directory and ask the
active bootloader backend to drop its boot-menu entry. path's basename
must follow the "<ktype>.<version>-<release>" naming convention.`,
	Args: cobra.ExactArgs(1),
	RunE: runRemoveKernel,
}

func init() {
	rootCmd.AddCommand(removeKernelCmd)
}

func runRemoveKernel(cmd *cobra.Command, args []string) error {
	jsonOutput := viper.GetBool("json")
	dryRun := viper.GetBool("dry-run")
	path := args[0]

	k, err := pkg.ParseKernelSource(path)
	if err != nil {
		if jsonOutput {
			return outputJSONError("invalid kernel path", err)
		}
		return err
	}

	return withBootManager(cmd.Context(), func(ctx context.Context, m *pkg.BootManager, progress pkg.Reporter) error {
		if dryRun {
			progress.MessagePlain("[DRY RUN] Would remove kernel %s", k.Meta.Bpath)
			return reportRemoveKernel(jsonOutput, k, true)
		}

		progress.Step(1, 1, fmt.Sprintf("Removing kernel %s", k.Meta.Bpath))
		if err := m.RemoveKernel(ctx, k); err != nil {
			if jsonOutput {
				return outputJSONError("failed to remove kernel", err)
			}
			progress.Error(err, "failed to remove kernel")
			return err
		}
		_ = pkg.RecordOperation(m.GetPrefix(), m.BackendName(), "remove-kernel", recordTimestamp(), progress)
		progress.Complete(fmt.Sprintf("Removed %s", k.Meta.Bpath), nil)
		return reportRemoveKernel(jsonOutput, k, true)
	})
}

func reportRemoveKernel(jsonOutput bool, k *pkg.Kernel, success bool) error {
	if !jsonOutput {
		return nil
	}
	return outputJSON(types.RemoveKernelOutput{Bpath: k.Meta.Bpath, Success: success})
}
