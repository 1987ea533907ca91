package backend

import (
	"errors"
	"fmt"

	"github.com/rm01-labs/cardmaker/internal/layout"
	"github.com/rm01-labs/cardmaker/internal/naming"

	"go.uber.org/zap"
)

// Tag names one of the two inference runtime bundles.
type Tag string

const (
	TagFlashAttention Tag = "flash-attention"
	TagFlashInfer     Tag = "flash-infer"
)

// Mode records how an assignment was decided.
type Mode string

const (
	ModeExplicit Mode = "explicit"
	ModeAuto     Mode = "auto"
)

// Choice is the user-facing backend selection: one of the two explicit
// tags, or auto-detection against the mapping artifact.
type Choice string

const (
	ChoiceFlashAttention Choice = Choice(TagFlashAttention)
	ChoiceFlashInfer     Choice = Choice(TagFlashInfer)
	ChoiceAuto           Choice = "auto"
)

// ErrUnresolved means auto-detection found no mapping entry for a model.
// It is never downgraded to a default backend; the caller must prompt for
// an explicit choice.
var ErrUnresolved = errors.New("backend could not be resolved automatically")

// UnresolvedError wraps ErrUnresolved with the identity that failed.
type UnresolvedError struct {
	Identity naming.Identity
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("no backend mapping for model %s", e.Identity.FullName)
}

func (e *UnresolvedError) Unwrap() error { return ErrUnresolved }

// Assignment binds a model to the backend bundle that will be copied onto
// the card's rootfs partition. Consumed immediately by the transfer
// engine, never retained.
type Assignment struct {
	Identity   naming.Identity
	Tag        Tag
	Mode       Mode
	BundlePath string
}

// Resolver maps an identity plus a user choice to an Assignment.
type Resolver struct {
	masterRoot string
	mapping    *Mapping
	logger     *zap.Logger
}

// NewResolver takes the master disk root (bundle paths are built under its
// backend-scripts directory) and the externally authored mapping artifact.
// The mapping may be nil when only explicit choices will be made.
func NewResolver(masterRoot string, mapping *Mapping, logger *zap.Logger) *Resolver {
	return &Resolver{
		masterRoot: masterRoot,
		mapping:    mapping,
		logger:     logger.Named("backend"),
	}
}

// Resolve returns the assignment for one model. Explicit choices always
// win regardless of identity; auto consults the mapping artifact and fails
// with UnresolvedError rather than guessing.
func (r *Resolver) Resolve(id naming.Identity, choice Choice) (Assignment, error) {
	switch choice {
	case ChoiceFlashAttention:
		return r.explicit(id, TagFlashAttention), nil
	case ChoiceFlashInfer:
		return r.explicit(id, TagFlashInfer), nil
	case ChoiceAuto:
		return r.auto(id)
	default:
		return Assignment{}, fmt.Errorf("unknown backend choice %q", choice)
	}
}

func (r *Resolver) explicit(id naming.Identity, tag Tag) Assignment {
	return Assignment{
		Identity:   id,
		Tag:        tag,
		Mode:       ModeExplicit,
		BundlePath: r.bundlePath(tag),
	}
}

func (r *Resolver) auto(id naming.Identity) (Assignment, error) {
	if r.mapping == nil {
		return Assignment{}, &UnresolvedError{Identity: id}
	}

	// Exact keys first: manufacturer_model, the full folder name (glued
	// names like "Qwen3-VL-8B" never produce a separator key), the bare
	// model name, then the manufacturer-only fallback.
	var (
		tag Tag
		ok  bool
	)
	for _, key := range []string{id.Key(), id.FullName, id.Model, id.Manufacturer} {
		if tag, ok = r.mapping.Lookup(key); ok {
			break
		}
	}
	if !ok {
		// Artifact entries may name a family prefix or a longer variant
		// of the deployed folder.
		tag, ok = r.mapping.Match(id.FullName)
	}
	if !ok {
		return Assignment{}, &UnresolvedError{Identity: id}
	}

	r.logger.Info("backend auto-detected",
		zap.String("model", id.FullName),
		zap.String("backend", string(tag)),
	)

	return Assignment{
		Identity:   id,
		Tag:        tag,
		Mode:       ModeAuto,
		BundlePath: r.bundlePath(tag),
	}, nil
}

func (r *Resolver) bundlePath(tag Tag) string {
	bundle := layout.AttentionBundle
	if tag == TagFlashInfer {
		bundle = layout.InferBundle
	}

	return layout.BackendBundle(r.masterRoot, bundle)
}
