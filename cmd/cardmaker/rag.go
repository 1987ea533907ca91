package cmd

import (
	"fmt"

	"github.com/rm01-labs/cardmaker/internal/naming"
	"github.com/rm01-labs/cardmaker/internal/provision"
	"github.com/rm01-labs/cardmaker/internal/transfer"

	"github.com/spf13/cobra"
)

var ragCmd = &cobra.Command{
	Use:   "rag <model>",
	Short: "Add an embedding or reranker model to a provisioned card",
	Long: "Copies a RAG model from the master disk onto the card's models partition. " +
		"Trees that already exist on the card are left untouched",
	Args: cobra.ExactArgs(1),
	RunE: runRAG,
}

func init() {
	ragCmd.Flags().String("class", "", "Model class: embedding or reranker (inferred from the catalog when omitted)")
}

func runRAG(cmd *cobra.Command, args []string) error {
	orch := buildOrchestrator()
	ctx := cmd.Context()

	sess, err := orch.Discover(ctx)
	if err != nil {
		return err
	}

	classFlag, _ := cmd.Flags().GetString("class")
	model, err := findRAGModel(sess, classFlag, args[0])
	if err != nil {
		return err
	}

	sink := transfer.NewBarSink(model.FullName)
	report, err := orch.AddRAGModel(ctx, sess, model, sink)
	sink.Wait()
	if err != nil {
		return err
	}

	if len(report.SkippedExisting) > 0 {
		fmt.Printf("%s already on card, left untouched\n", model.FullName)
	} else {
		fmt.Printf("%s model added: %s (%s)\n", model.Class, model.FullName, report)
	}

	return finishSession(ctx, orch, sess)
}

func findRAGModel(sess *provision.Session, classFlag, arg string) (naming.Identity, error) {
	switch classFlag {
	case "":
		// Try both RAG buckets.
		if id, err := findModel(sess.Catalog, naming.ClassEmbedding, arg); err == nil {
			return id, nil
		}
		return findModel(sess.Catalog, naming.ClassReranker, arg)
	case string(naming.ClassEmbedding):
		return findModel(sess.Catalog, naming.ClassEmbedding, arg)
	case string(naming.ClassReranker):
		return findModel(sess.Catalog, naming.ClassReranker, arg)
	default:
		return naming.Identity{}, fmt.Errorf("unknown class %q (want embedding or reranker)", classFlag)
	}
}
