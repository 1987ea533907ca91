package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rm01-labs/cardmaker/internal/backend"
	"github.com/rm01-labs/cardmaker/internal/naming"
	"github.com/rm01-labs/cardmaker/internal/provision"
	"github.com/rm01-labs/cardmaker/internal/transfer"

	"github.com/spf13/cobra"
)

var createCmd = &cobra.Command{
	Use:   "create <model>",
	Short: "Provision a card with a model and its inference backend",
	Long: "Copies the chosen model and the matching backend bundle from the master disk " +
		"onto the inserted card, optionally with per-tier run configs and kernel optimizations",
	Args: cobra.ExactArgs(1),
	RunE: runCreate,
}

func init() {
	flags := createCmd.Flags()

	flags.String("backend", "auto", "Inference backend: flash-attention, flash-infer, or auto")
	flags.String("vram", "", "VRAM tier for run configs: 32G, 48G, 64G, or 128G")
	flags.Bool("optimize", false, "Also install fused-MoE kernel configs for the chosen tier")
}

func runCreate(cmd *cobra.Command, args []string) error {
	choiceFlag, _ := cmd.Flags().GetString("backend")
	choice, err := parseBackendChoice(choiceFlag)
	if err != nil {
		return err
	}

	vramFlag, _ := cmd.Flags().GetString("vram")
	var tier *backend.VramTier
	if vramFlag != "" {
		t, err := backend.ParseTier(vramFlag)
		if err != nil {
			return err
		}
		tier = &t
	}

	optimize, _ := cmd.Flags().GetBool("optimize")
	if optimize && tier == nil {
		return errors.New("--optimize requires --vram")
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

	sink := transfer.NewBarSink(model.FullName)
	report, err := orch.CreateCard(ctx, sess, provision.CreateRequest{
		Model:            model,
		Backend:          choice,
		Tier:             tier,
		WithOptimization: optimize,
	}, sink)
	sink.Wait()
	if err != nil {
		if errors.Is(err, backend.ErrUnresolved) {
			return fmt.Errorf("%w; pass --backend flash-attention or --backend flash-infer", err)
		}
		return err
	}

	fmt.Printf("card created: %s (%s)\n", model.FullName, report)

	return finishSession(ctx, orch, sess)
}

func parseBackendChoice(s string) (backend.Choice, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return backend.ChoiceAuto, nil
	case "flash-attention", "flashattention", "attention":
		return backend.ChoiceFlashAttention, nil
	case "flash-infer", "flashinfer", "infer":
		return backend.ChoiceFlashInfer, nil
	default:
		return "", fmt.Errorf("unknown backend %q (want flash-attention, flash-infer, or auto)", s)
	}
}
