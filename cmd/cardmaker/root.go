package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rm01-labs/cardmaker/internal/config"
	"github.com/rm01-labs/cardmaker/internal/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "CARDMAKER"

var Cmd = &cobra.Command{
	Use:   "cardmaker",
	Short: "RM-01 CFe-B card maker",
	Long:  "Provisions CFe-B storage cards for the RM-01 edge inference appliance from a labeled master data disk",

	// Runs before this command and any subcommands
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		viper.SetEnvPrefix(envPrefix)
		viper.SetEnvKeyReplacer(strings.NewReplacer(
			`-`, `_`,
			`.`, `_`,
		))
		viper.AutomaticEnv()

		if err := viper.BindPFlags(cmd.Flags()); err != nil {
			return err
		}
		if err := viper.BindPFlags(cmd.PersistentFlags()); err != nil {
			return err
		}

		if err := config.LoadEnvAndConfigFiles(); err != nil {
			return err
		}

		log, err := logger.InitLogger(config.GetConfig())
		if err != nil {
			return err
		}

		if os.Geteuid() != 0 {
			log.Warn("not running as root; device discovery and unmounting may fail")
		}

		return nil
	},
}

func Execute(ctx context.Context) {
	if err := Cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pflags := Cmd.PersistentFlags()

	pflags.String("cardmaker-home", "", "Path to the cardmaker home directory")
	pflags.String("config-file", "", "Path to the config file")
	pflags.String("env-file", "", "Path to the env file")
	pflags.String("master-label", "", "Filesystem label of the master data disk")
	pflags.String("models-root", "", "Override the model catalog root on the master disk")
	pflags.Int("workers", 0, "Number of concurrent transfer workers")
	pflags.Bool("keep-mounted", false, "Leave the card partitions mounted when the command finishes")

	viper.BindPFlag("cardmaker_home", pflags.Lookup("cardmaker-home"))
	viper.BindPFlag("config_file", pflags.Lookup("config-file"))
	viper.BindPFlag("env_file", pflags.Lookup("env-file"))
	viper.BindPFlag("master_label", pflags.Lookup("master-label"))
	viper.BindPFlag("models_root", pflags.Lookup("models-root"))
	viper.BindPFlag("transfer_workers", pflags.Lookup("workers"))
	viper.BindPFlag("keep_mounted", pflags.Lookup("keep-mounted"))

	Cmd.AddCommand(createCmd, ragCmd, optimizeCmd, normalizeCmd, catalogCmd, settingsCmd)
	Cmd.CompletionOptions.HiddenDefaultCmd = true
}
