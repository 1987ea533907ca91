package cmd

import (
	"fmt"

	"github.com/rm01-labs/cardmaker/internal/backend"
	"github.com/rm01-labs/cardmaker/internal/naming"
	"github.com/rm01-labs/cardmaker/internal/transfer"

	"github.com/spf13/cobra"
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize <model>",
	Short: "Install fused-MoE kernel configs on a provisioned card",
	Args:  cobra.ExactArgs(1),
	RunE:  runOptimize,
}

func init() {
	optimizeCmd.Flags().String("vram", "", "VRAM tier: 32G, 48G, 64G, or 128G")
	optimizeCmd.MarkFlagRequired("vram")
}

func runOptimize(cmd *cobra.Command, args []string) error {
	vramFlag, _ := cmd.Flags().GetString("vram")
	tier, err := backend.ParseTier(vramFlag)
	if err != nil {
		return err
	}

	orch := buildOrchestrator()
	ctx := cmd.Context()

	sess, err := orch.Discover(ctx)
	if err != nil {
		return err
	}

	model, err := findModel(sess.Catalog, naming.ClassLLM, args[0])
	if err != nil {
		return err
	}

	sink := transfer.NewBarSink("fused-moe " + string(tier))
	report, err := orch.AddOptimization(ctx, sess, model, tier, sink)
	sink.Wait()
	if err != nil {
		return err
	}

	fmt.Printf("%s optimizations installed for %s (%s)\n", tier.Platform(), model.FullName, report)

	return finishSession(ctx, orch, sess)
}
