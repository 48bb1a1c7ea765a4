package cmd

import (
	"context"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/frostyard/nbc-bootctl/pkg"
	"github.com/frostyard/nbc-bootctl/pkg/types"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var setDefaultKernelCmd = &cobra.Command{
	Use:   "set-default-kernel [path]",
	Short: "Mark a kernel as the default boot entry",
	Long: `Ask the active bootloader backend to mark the given kernel as the
default boot-menu entry. If path is omitted, an interactive picker lists
the discovered kernels to choose from.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSetDefaultKernel,
}

func init() {
	rootCmd.AddCommand(setDefaultKernelCmd)
}

func runSetDefaultKernel(cmd *cobra.Command, args []string) error {
	jsonOutput := viper.GetBool("json")
	dryRun := viper.GetBool("dry-run")

	return withBootManager(cmd.Context(), func(ctx context.Context, m *pkg.BootManager, progress pkg.Reporter) error {
		var target *pkg.Kernel
		var err error

		if len(args) == 1 {
			target, err = pkg.ParseKernelSource(args[0])
			if err != nil {
				if jsonOutput {
					return outputJSONError("invalid kernel path", err)
				}
				return err
			}
		} else {
			if jsonOutput {
				return outputJSONError("kernel path required with --json", fmt.Errorf("no path given and interactive picker requires a terminal"))
			}
			target, err = pickKernelInteractively(ctx, m)
			if err != nil {
				return err
			}
		}

		if dryRun {
			progress.MessagePlain("[DRY RUN] Would set default kernel to %s", target.Meta.Bpath)
			return reportSetDefaultKernel(jsonOutput, target, true)
		}

		progress.Step(1, 1, fmt.Sprintf("Setting default kernel to %s", target.Meta.Bpath))
		if err := m.SetDefaultKernel(ctx, target); err != nil {
			if jsonOutput {
				return outputJSONError("failed to set default kernel", err)
			}
			progress.Error(err, "failed to set default kernel")
			return err
		}
		_ = pkg.RecordOperation(m.GetPrefix(), m.BackendName(), "set-default-kernel", recordTimestamp(), progress)
		progress.Complete(fmt.Sprintf("Default kernel set to %s", target.Meta.Bpath), nil)
		return reportSetDefaultKernel(jsonOutput, target, true)
	})
}

func pickKernelInteractively(ctx context.Context, m *pkg.BootManager) (*pkg.Kernel, error) {
	kernels, _, err := m.ListKernels(ctx)
	if err != nil {
		return nil, err
	}
	if len(kernels) == 0 {
		return nil, fmt.Errorf("no kernels discovered in %s", m.GetKernelDir())
	}

	options := make([]huh.Option[int], len(kernels))
	for i, k := range kernels {
		label := fmt.Sprintf("%s (ktype=%s version=%s release=%d)", k.Meta.Bpath, k.Meta.KType, k.Meta.Version, k.Meta.Release)
		options[i] = huh.NewOption(label, i)
	}

	var picked int
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[int]().
				Title("Default kernel").
				Description("Choose the kernel the bootloader should boot by default").
				Options(options...).
				Value(&picked),
		),
	)
	if err := form.Run(); err != nil {
		return nil, err
	}
	return kernels[picked], nil
}

func reportSetDefaultKernel(jsonOutput bool, k *pkg.Kernel, success bool) error {
	if !jsonOutput {
		return nil
	}
	return outputJSON(types.SetDefaultKernelOutput{Bpath: k.Meta.Bpath, Success: success})
}
