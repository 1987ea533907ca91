package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "Re-apply permissions and ownership to every provisioned tree on the card",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		orch := buildOrchestrator()
		ctx := cmd.Context()

		sess, err := orch.Discover(ctx)
		if err != nil {
			return err
		}

		if err := orch.NormalizeCard(sess); err != nil {
			return err
		}

		fmt.Println("card normalized")

		return finishSession(ctx, orch, sess)
	},
}
