package provision

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rm01-labs/cardmaker/internal/backend"
	"github.com/rm01-labs/cardmaker/internal/layout"
	"github.com/rm01-labs/cardmaker/internal/naming"
	"github.com/rm01-labs/cardmaker/internal/transfer"

	"go.uber.org/zap"
)

// CreateRequest describes one card-creation run: the chosen model, how to
// pick the backend, and optionally which VRAM tier's run configs and
// optimization bundle to install.
type CreateRequest struct {
	Model            naming.Identity
	Backend          backend.Choice
	Tier             *backend.VramTier
	WithOptimization bool
}

// CreateCard is the full provisioning workflow: backend bundle onto the
// rootfs partition, the model tree onto the models partition, then dev
// run configs and the fused-MoE bundle when a tier was chosen.
func (o *Orchestrator) CreateCard(ctx context.Context, sess *Session, req CreateRequest, sink transfer.Sink) (*transfer.Report, error) {
	resolver := backend.NewResolver(sess.MasterPath, sess.Mapping, o.logger)
	assignment, err := resolver.Resolve(req.Model, req.Backend)
	if err != nil {
		// Auto-detection failed; the caller must re-prompt for an
		// explicit choice. Never fall back to a default bundle.
		return nil, err
	}

	modelDest := filepath.Join(sess.ModelsMount, string(naming.ClassLLM), req.Model.FullName)

	plan := transfer.NewPlan(
		transfer.Entry{
			Source:      assignment.BundlePath,
			Destination: filepath.Join(sess.RootfsMount, layout.AutoShellDest),
			Mode:        transfer.ModeReplaceTree,
			Label:       "backend " + string(assignment.Tag),
		},
		transfer.Entry{
			Source:      req.Model.SourcePath,
			Destination: modelDest,
			Mode:        transfer.ModeReplaceTree,
			Label:       "model " + req.Model.FullName,
		},
	)

	normalizeRoots := []string{
		filepath.Join(sess.RootfsMount, layout.AutoShellDest),
		modelDest,
	}

	if req.Tier != nil {
		o.addDevConfigEntries(&plan, sess, *req.Tier, req.Model.FullName)

		if req.WithOptimization {
			if err := o.addOptimizationEntry(&plan, sess, *req.Tier, req.Model.FullName); err != nil {
				return nil, err
			}
		}
	}

	o.logger.Info("card creation plan built",
		zap.String("model", req.Model.FullName),
		zap.String("backend", string(assignment.Tag)),
		zap.String("mode", string(assignment.Mode)),
		zap.Int("entries", len(plan.Entries)),
	)

	return o.runPlan(ctx, plan, sink, normalizeRoots)
}

// AddRAGModel deploys an embedding or reranker model onto the models
// partition. Already-deployed trees are preserved, so re-running the
// workflow never re-copies gigabytes of unchanged weights.
func (o *Orchestrator) AddRAGModel(ctx context.Context, sess *Session, model naming.Identity, sink transfer.Sink) (*transfer.Report, error) {
	if model.Class != naming.ClassEmbedding && model.Class != naming.ClassReranker {
		return nil, fmt.Errorf("model %s is not a RAG model (class %s)", model.FullName, model.Class)
	}

	dest := filepath.Join(sess.ModelsMount, string(model.Class), model.FullName)
	plan := transfer.NewPlan(transfer.Entry{
		Source:      model.SourcePath,
		Destination: dest,
		Mode:        transfer.ModeCopyIfAbsent,
		Label:       string(model.Class) + " " + model.FullName,
	})

	return o.runPlan(ctx, plan, sink, []string{dest})
}

// AddOptimization installs the fused-MoE kernel configs for one model and
// tier into the vLLM tree on the rootfs partition. Runs standalone against
// an already-provisioned card.
func (o *Orchestrator) AddOptimization(ctx context.Context, sess *Session, model naming.Identity, tier backend.VramTier, sink transfer.Sink) (*transfer.Report, error) {
	plan := transfer.NewPlan()
	if err := o.addOptimizationEntry(&plan, sess, tier, model.FullName); err != nil {
		return nil, err
	}

	return o.runPlan(ctx, plan, sink, nil)
}

// NormalizeCard re-applies permission and ownership normalization to every
// provisioned tree on the card. Idempotent; needs no preceding copy.
func (o *Orchestrator) NormalizeCard(sess *Session) error {
	roots := []string{
		filepath.Join(sess.RootfsMount, layout.AutoShellDest),
		filepath.Join(sess.ModelsMount, string(naming.ClassLLM)),
		filepath.Join(sess.ModelsMount, string(naming.ClassEmbedding)),
		filepath.Join(sess.ModelsMount, string(naming.ClassReranker)),
		filepath.Join(sess.ModelsMount, layout.DevDest),
	}

	for _, root := range roots {
		if _, err := os.Stat(root); err != nil {
			continue
		}
		if err := o.normalizer.Normalize(root); err != nil {
			return err
		}
	}

	return nil
}

// addDevConfigEntries plans the per-class run-config file copies. A file
// missing from the tier bundle is skipped with a warning, matching how
// incomplete bundles are shipped in practice.
func (o *Orchestrator) addDevConfigEntries(plan *transfer.Plan, sess *Session, tier backend.VramTier, modelFullName string) {
	src := layout.DevConfig(sess.MasterPath, string(tier), modelFullName)

	names := make([]string, 0, len(layout.DevConfigFiles))
	for name := range layout.DevConfigFiles {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		file := filepath.Join(src, name)
		if _, err := os.Stat(file); err != nil {
			o.logger.Warn("run config missing, skipping",
				zap.String("file", file),
				zap.String("tier", string(tier)),
			)
			continue
		}

		classDir := layout.DevConfigFiles[name]
		plan.Add(transfer.Entry{
			Source:      file,
			Destination: filepath.Join(sess.ModelsMount, layout.DevDest, classDir, name),
			Mode:        transfer.ModeOverwriteMerge,
			Label:       name,
		})
	}
}

func (o *Orchestrator) addOptimizationEntry(plan *transfer.Plan, sess *Session, tier backend.VramTier, modelFullName string) error {
	src := layout.FusedMoE(sess.MasterPath, tier.Platform(), modelFullName)
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("no %s optimization bundle for %s: %w", tier.Platform(), modelFullName, err)
	}

	plan.Add(transfer.Entry{
		Source:      src,
		Destination: filepath.Join(sess.RootfsMount, layout.FusedMoEDest),
		Mode:        transfer.ModeOverwriteMerge,
		Label:       "fused-moe " + string(tier),
	})

	return nil
}

// runPlan is the shared execute-then-normalize tail of every workflow.
func (o *Orchestrator) runPlan(ctx context.Context, plan transfer.Plan, sink transfer.Sink, normalizeRoots []string) (*transfer.Report, error) {
	report, err := o.engine.Execute(ctx, plan, sink)
	if err != nil {
		return report, err
	}

	for _, root := range normalizeRoots {
		if _, statErr := os.Stat(root); statErr != nil {
			continue
		}
		if err := o.normalizer.Normalize(root); err != nil {
			return report, err
		}
	}

	return report, nil
}
