package transfer

import (
	"fmt"

	"github.com/google/uuid"
)

// Mode selects how one plan entry treats its destination.
type Mode string

const (
	// ModeCopyIfAbsent never touches a destination that already exists,
	// even if source content differs. Used to preserve already-deployed
	// trees when refreshing templates.
	ModeCopyIfAbsent Mode = "copy-if-absent"

	// ModeOverwriteMerge overwrites files individually, leaving unrelated
	// destination files in place. Partial merges on interruption are an
	// accepted risk; merge mode is for incremental updates, not atomic
	// replacement.
	ModeOverwriteMerge Mode = "overwrite-merge"

	// ModeReplaceTree replaces the destination subtree wholesale. The new
	// tree is written to a temporary sibling and renamed into place, so an
	// interrupted entry leaves the destination in its pre-operation state.
	ModeReplaceTree Mode = "replace-tree"
)

// Entry is one (source, destination, mode) element of a plan. Entries
// target disjoint destination subtrees, which is what lets the engine run
// them concurrently without locking.
type Entry struct {
	Source      string
	Destination string
	Mode        Mode

	// Label names the entry in progress output and logs.
	Label string
}

// Plan is an ordered list of transfer entries, built by the orchestrator
// and executed once. Ephemeral per operation.
type Plan struct {
	ID      string
	Entries []Entry
}

func NewPlan(entries ...Entry) Plan {
	return Plan{
		ID:      uuid.NewString(),
		Entries: entries,
	}
}

func (p *Plan) Add(entry Entry) {
	p.Entries = append(p.Entries, entry)
}

func (e Entry) String() string {
	return fmt.Sprintf("%s: %s -> %s (%s)", e.Label, e.Source, e.Destination, e.Mode)
}
