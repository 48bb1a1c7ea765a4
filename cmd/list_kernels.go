package cmd

import (
	"context"
	"fmt"

	"github.com/frostyard/nbc-bootctl/pkg"
	"github.com/frostyard/nbc-bootctl/pkg/types"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var listKernelsCmd = &cobra.Command{
	Use:   "list-kernels",
	Short: "List the kernels discovered in the kernel directory",
	Long: `List every kernel discovered under <prefix>/usr/lib/kernel, newest first
(by release, then version, then ktype), marking the one the active
bootloader currently boots by default.`,
	RunE: runListKernels,
}

func init() {
	rootCmd.AddCommand(listKernelsCmd)
}

func runListKernels(cmd *cobra.Command, args []string) error {
	jsonOutput := viper.GetBool("json")

	return withBootManager(cmd.Context(), func(ctx context.Context, m *pkg.BootManager, progress pkg.Reporter) error {
		kernels, defaultBpath, err := m.ListKernels(ctx)
		if err != nil {
			if jsonOutput {
				return outputJSONError("failed to list kernels", err)
			}
			return err
		}

		if jsonOutput {
			out := types.ListKernelsOutput{Kernels: make([]types.KernelEntry, 0, len(kernels))}
			for _, k := range kernels {
				out.Kernels = append(out.Kernels, types.KernelEntry{
					Bpath:     k.Meta.Bpath,
					KType:     k.Meta.KType,
					Version:   k.Meta.Version,
					Release:   k.Meta.Release,
					IsDefault: k.Meta.Bpath == defaultBpath,
				})
			}
			return outputJSON(out)
		}

		if len(kernels) == 0 {
			fmt.Println("No kernels found.")
			return nil
		}

		for _, k := range kernels {
			marker := " "
			if k.Meta.Bpath == defaultBpath {
				marker = "*"
			}
			fmt.Printf("%s %-40s ktype=%-10s version=%-14s release=%d\n",
				marker, k.Meta.Bpath, k.Meta.KType, k.Meta.Version, k.Meta.Release)
		}
		return nil
	})
}
