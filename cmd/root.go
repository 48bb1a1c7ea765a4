package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "nbc-bootctl",
		Short: "Reconcile a host's bootloader against its installed kernels",
		Long: `nbc-bootctl inspects a host's boot topology (UEFI or legacy GPT/BIOS),
selects the bootloader backend with the matching capabilities, and keeps its
boot menu in sync with the kernels present on disk.`,
	}
)

// SetVersion sets the version for the root command.
func SetVersion(version string) {
	rootCmd.Version = version
}

// Execute runs the root command.
func Execute() error {
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(rootCmd.Version),
		fang.WithNotifySignal(os.Interrupt, os.Kill),
	); err != nil {
		return err
	}
	return nil
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.nbc-bootctl.yaml)")
	rootCmd.PersistentFlags().String("prefix", "/", "root prefix to operate against")
	rootCmd.PersistentFlags().Bool("image-mode", false, "treat prefix as a disk image root rather than the running system")
	rootCmd.PersistentFlags().Bool("json", false, "emit machine-readable JSON Lines progress events")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolP("dry-run", "n", false, "dry run mode (no actual changes)")

	_ = viper.BindPFlag("prefix", rootCmd.PersistentFlags().Lookup("prefix"))
	_ = viper.BindPFlag("image-mode", rootCmd.PersistentFlags().Lookup("image-mode"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("dry-run", rootCmd.PersistentFlags().Lookup("dry-run"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error getting home directory: %v\n", err)
			os.Exit(1)
		}

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".nbc-bootctl")
	}

	viper.SetEnvPrefix("NBC_BOOTCTL")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}
