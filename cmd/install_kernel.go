package cmd

import (
	"context"
	"fmt"

	"github.com/frostyard/nbc-bootctl/pkg"
	"github.com/frostyard/nbc-bootctl/pkg/types"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var installKernelCmd = &cobra.Command{
	Use:   "install-kernel <path>",
	Short: "Install a kernel blob and add it to the boot menu",
	Long: `Copy the kernel blob at path into the kernel directory and ask the
active bootloader backend to add a corresponding boot-menu entry. path's
basename must follow the "<ktype>.<version>-<release>" naming convention.`,
	Args: cobra.ExactArgs(1),
	RunE: runInstallKernel,
}

func init() {
	rootCmd.AddCommand(installKernelCmd)
}

func runInstallKernel(cmd *cobra.Command, args []string) error {
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
			progress.MessagePlain("[DRY RUN] Would install kernel %s", k.Meta.Bpath)
			return reportInstallKernel(jsonOutput, k, true)
		}

		progress.Step(1, 1, fmt.Sprintf("Installing kernel %s", k.Meta.Bpath))
		if err := m.InstallKernel(ctx, k); err != nil {
			if jsonOutput {
				return outputJSONError("failed to install kernel", err)
			}
			progress.Error(err, "failed to install kernel")
			return err
		}
		_ = pkg.RecordOperation(m.GetPrefix(), m.BackendName(), "install-kernel", recordTimestamp(), progress)
		progress.Complete(fmt.Sprintf("Installed %s", k.Meta.Bpath), nil)
		return reportInstallKernel(jsonOutput, k, true)
	})
}

func reportInstallKernel(jsonOutput bool, k *pkg.Kernel, success bool) error {
	if !jsonOutput {
		return nil
	}
	return outputJSON(types.InstallKernelOutput{Bpath: k.Meta.Bpath, Success: success})
}
