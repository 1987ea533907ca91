package transfer

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gammazero/workerpool"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Engine executes transfer plans. Independent entries run concurrently on
// a bounded worker pool; entries target disjoint destination subtrees, so
// no locking beyond per-entry sequencing is needed. A requested abort is
// honored only at entry boundaries.
type Engine struct {
	logger  *zap.Logger
	workers int
}

func NewEngine(logger *zap.Logger, workers int) *Engine {
	if workers <= 0 {
		workers = 1
	}

	return &Engine{
		logger:  logger.Named("transfer"),
		workers: workers,
	}
}

// Execute runs every entry of the plan, reporting progress after each
// file. On entry failure, already-completed entries stay in place and the
// returned error names the offending path.
func (e *Engine) Execute(ctx context.Context, plan Plan, sink Sink) (*Report, error) {
	start := time.Now()

	sizes := make([]int64, len(plan.Entries))
	var bytesTotal int64
	for idx, entry := range plan.Entries {
		n, err := treeSize(ctx, entry.Source)
		if err != nil {
			return nil, err
		}
		sizes[idx] = n
		bytesTotal += n
	}

	tr := newTracker(sink, len(plan.Entries), bytesTotal)

	var (
		mu       sync.Mutex
		firstErr error
		skipped  []string
		aborted  atomic.Bool
	)

	wp := workerpool.New(e.workers)
	for idx, entry := range plan.Entries {
		idx, entry := idx, entry
		wp.Submit(func() {
			if aborted.Load() || ctx.Err() != nil {
				return
			}

			e.logger.Info("entry start",
				zap.String("plan", plan.ID),
				zap.String("entry", entry.String()),
			)

			skip, err := e.runEntry(entry, sizes[idx], tr)
			if err != nil {
				aborted.Store(true)
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}

			if skip {
				mu.Lock()
				skipped = append(skipped, entry.Destination)
				mu.Unlock()
			}
			tr.entryDone()
		})
	}
	wp.StopWait()

	snap := tr.snapshot()
	report := &Report{
		PlanID:           plan.ID,
		EntriesCompleted: snap.EntriesCompleted,
		EntriesTotal:     snap.EntriesTotal,
		BytesCopied:      snap.BytesCompleted,
		BytesTotal:       snap.BytesTotal,
		SkippedExisting:  skipped,
		Duration:         time.Since(start),
	}

	if firstErr != nil {
		return report, firstErr
	}
	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("plan %s aborted: %w", plan.ID, err)
	}

	e.logger.Info("plan complete",
		zap.String("plan", plan.ID),
		zap.Int("entries", report.EntriesCompleted),
		zap.String("copied", humanize.IBytes(uint64(report.BytesCopied))),
	)

	return report, nil
}

func (e *Engine) runEntry(entry Entry, size int64, tr *tracker) (skipped bool, err error) {
	switch entry.Mode {
	case ModeCopyIfAbsent:
		if _, err := os.Lstat(entry.Destination); err == nil {
			// Destination kept as-is; credit its weight so overall
			// progress still reaches the total.
			tr.addBytes(size)
			return true, nil
		}
		return false, e.replaceTree(entry, tr)
	case ModeReplaceTree:
		return false, e.replaceTree(entry, tr)
	case ModeOverwriteMerge:
		return false, e.mergeTree(entry, tr)
	default:
		return false, &Error{Op: "plan", Path: entry.Destination, Err: fmt.Errorf("unknown mode %q", entry.Mode)}
	}
}

// replaceTree writes the new tree to a temporary sibling of the
// destination and renames it into place, so an interrupted entry leaves
// the destination untouched.
func (e *Engine) replaceTree(entry Entry, tr *tracker) error {
	dest := filepath.Clean(entry.Destination)
	tmp := filepath.Join(filepath.Dir(dest), "."+filepath.Base(dest)+".partial-"+uuid.NewString()[:8])
	defer os.RemoveAll(tmp)

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return &Error{Op: "mkdir", Path: filepath.Dir(dest), Err: err}
	}

	if err := copyTree(entry.Source, tmp, tr); err != nil {
		return err
	}

	if _, err := os.Lstat(dest); err == nil {
		if err := os.RemoveAll(dest); err != nil {
			return &Error{Op: "replace", Path: dest, Err: err}
		}
	}

	if err := os.Rename(tmp, dest); err != nil {
		return &Error{Op: "rename", Path: dest, Err: err}
	}

	return nil
}

// mergeTree overwrites destination files individually, leaving unrelated
// files in place.
func (e *Engine) mergeTree(entry Entry, tr *tracker) error {
	info, err := os.Lstat(entry.Source)
	if err != nil {
		return sourceError(entry.Source, err)
	}

	if !info.IsDir() {
		if err := os.MkdirAll(filepath.Dir(entry.Destination), 0o755); err != nil {
			return &Error{Op: "mkdir", Path: filepath.Dir(entry.Destination), Err: err}
		}
		return copyFile(entry.Source, entry.Destination, info, tr)
	}

	return filepath.WalkDir(entry.Source, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return sourceError(path, err)
		}

		rel, err := filepath.Rel(entry.Source, path)
		if err != nil {
			return &Error{Op: "walk", Path: path, Err: err}
		}
		target := filepath.Join(entry.Destination, rel)

		if d.IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return &Error{Op: "mkdir", Path: target, Err: err}
			}
			return nil
		}

		return copyEntry(path, target, d, tr)
	})
}

// copyTree copies a file or directory tree from src to dst. dst must not
// exist yet.
func copyTree(src, dst string, tr *tracker) error {
	info, err := os.Lstat(src)
	if err != nil {
		return sourceError(src, err)
	}

	if !info.IsDir() {
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return &Error{Op: "mkdir", Path: filepath.Dir(dst), Err: err}
		}
		return copyFile(src, dst, info, tr)
	}

	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return sourceError(path, err)
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return &Error{Op: "walk", Path: path, Err: err}
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return &Error{Op: "mkdir", Path: target, Err: err}
			}
			return nil
		}

		return copyEntry(path, target, d, tr)
	})
}

func copyEntry(src, dst string, d fs.DirEntry, tr *tracker) error {
	info, err := d.Info()
	if err != nil {
		return sourceError(src, err)
	}

	if info.Mode()&os.ModeSymlink != 0 {
		link, err := os.Readlink(src)
		if err != nil {
			return sourceError(src, err)
		}
		os.Remove(dst)
		if err := os.Symlink(link, dst); err != nil {
			return &Error{Op: "symlink", Path: dst, Err: err}
		}
		return nil
	}

	return copyFile(src, dst, info, tr)
}

func copyFile(src, dst string, info fs.FileInfo, tr *tracker) error {
	in, err := os.Open(src)
	if err != nil {
		return sourceError(src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return &Error{Op: "create", Path: dst, Err: err}
	}

	n, err := io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return &Error{Op: "write", Path: dst, Err: err}
	}

	tr.addBytes(n)
	return nil
}

// treeSize totals the file bytes under path. Removable media can stall,
// so the walk checks the deadline per directory.
func treeSize(ctx context.Context, path string) (int64, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return 0, sourceError(path, err)
	}
	if !info.IsDir() {
		return info.Size(), nil
	}

	var total int64
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return sourceError(p, err)
		}
		if d.IsDir() {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fmt.Errorf("sizing %s: %w", p, ctxErr)
			}
			return nil
		}
		if info, err := d.Info(); err == nil && info.Mode().IsRegular() {
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return total, nil
}

func sourceError(path string, err error) error {
	if os.IsNotExist(err) {
		return &Error{Op: "read", Path: path, Err: ErrSourceVanished}
	}

	return &Error{Op: "read", Path: path, Err: err}
}
