package cmd

import (
	"fmt"
	"strings"

	"github.com/rm01-labs/cardmaker/internal/config"

	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show the persisted settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.GetConfig()

		fmt.Printf("home:              %s\n", cfg.CardmakerHome)
		fmt.Printf("master label:      %s\n", cfg.MasterLabel)
		fmt.Printf("master path:       %s\n", orDash(cfg.MasterPath))
		fmt.Printf("models root:       %s\n", orDash(cfg.ModelsRoot))
		fmt.Printf("manufacturers:     %s\n", strings.Join(cfg.Manufacturers, ", "))
		fmt.Printf("target device:     %s\n", orDash(cfg.TargetDevice))
		fmt.Printf("target roles:      %s\n", strings.Join(cfg.TargetLabels, ", "))
		fmt.Printf("target partitions: %s\n", orDash(strings.Join(cfg.TargetPartitions, ", ")))
		fmt.Printf("transfer workers:  %d\n", cfg.TransferWorkers)
		fmt.Printf("discover timeout:  %ds\n", cfg.DiscoverTimeout)

		return nil
	},
}

func init() {
	settingsCmd.AddCommand(&cobra.Command{
		Use:   "discover",
		Short: "Run device discovery and persist the results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			orch := buildOrchestrator()
			ctx := cmd.Context()

			sess, err := orch.Discover(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("master disk:  %s (%s)\n", sess.Master.Path, sess.MasterPath)
			fmt.Printf("target card:  %s\n", sess.Card.Device.Path)
			fmt.Printf("models root:  %s (%d models)\n", sess.ModelsRoot, sess.Catalog.Len())

			return finishSession(ctx, orch, sess)
		},
	})

	settingsCmd.AddCommand(&cobra.Command{
		Use:   "save",
		Short: "Write the effective settings to the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.GetConfig().Save(); err != nil {
				return err
			}

			fmt.Println("settings saved")
			return nil
		},
	})
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}

	return s
}
