package transfer

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

// recordingSink captures every delivered snapshot.
type recordingSink struct {
	mu        sync.Mutex
	snapshots []Progress
}

func (s *recordingSink) Update(p Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, p)
}

func newTestEngine(workers int) *Engine {
	return NewEngine(zap.NewNop(), workers)
}

func TestExecute_ReplaceTree(t *testing.T) {
	src := t.TempDir()
	dstRoot := t.TempDir()
	writeTree(t, src, map[string]string{
		"model.bin":          "weights",
		"config.json":        "{}",
		"sub/tokenizer.json": "tok",
	})

	dst := filepath.Join(dstRoot, "llm", "model")
	writeTree(t, dst, map[string]string{"stale.bin": "old"})

	plan := NewPlan(Entry{Source: src, Destination: dst, Mode: ModeReplaceTree, Label: "model"})
	report, err := newTestEngine(2).Execute(context.Background(), plan, nil)
	require.NoError(t, err)

	assert.Equal(t, "weights", readFile(t, filepath.Join(dst, "model.bin")))
	assert.Equal(t, "tok", readFile(t, filepath.Join(dst, "sub", "tokenizer.json")))
	assert.NoFileExists(t, filepath.Join(dst, "stale.bin"))
	assert.Equal(t, 1, report.EntriesCompleted)
	assert.Equal(t, report.BytesTotal, report.BytesCopied)
}

func TestExecute_ReplaceTreeIdempotent(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "out")
	writeTree(t, src, map[string]string{"a.txt": "A", "d/b.txt": "B"})

	plan := NewPlan(Entry{Source: src, Destination: dst, Mode: ModeReplaceTree, Label: "tree"})
	engine := newTestEngine(1)

	for i := 0; i < 2; i++ {
		_, err := engine.Execute(context.Background(), plan, nil)
		require.NoError(t, err)
		assert.Equal(t, "A", readFile(t, filepath.Join(dst, "a.txt")))
		assert.Equal(t, "B", readFile(t, filepath.Join(dst, "d", "b.txt")))
	}
}

func TestExecute_CopyIfAbsentPreservesExisting(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "deployed")
	writeTree(t, src, map[string]string{"f.txt": "new content"})
	writeTree(t, dst, map[string]string{"f.txt": "deployed content", "extra.txt": "keep"})

	plan := NewPlan(Entry{Source: src, Destination: dst, Mode: ModeCopyIfAbsent, Label: "keep"})
	report, err := newTestEngine(1).Execute(context.Background(), plan, nil)
	require.NoError(t, err)

	assert.Equal(t, "deployed content", readFile(t, filepath.Join(dst, "f.txt")))
	assert.FileExists(t, filepath.Join(dst, "extra.txt"))
	assert.Equal(t, []string{dst}, report.SkippedExisting)

	// Progress still reaches the total even though nothing was written.
	assert.Equal(t, report.BytesTotal, report.BytesCopied)
}

func TestExecute_CopyIfAbsentCopiesWhenMissing(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "fresh")
	writeTree(t, src, map[string]string{"f.txt": "content"})

	plan := NewPlan(Entry{Source: src, Destination: dst, Mode: ModeCopyIfAbsent, Label: "fresh"})
	report, err := newTestEngine(1).Execute(context.Background(), plan, nil)
	require.NoError(t, err)

	assert.Equal(t, "content", readFile(t, filepath.Join(dst, "f.txt")))
	assert.Empty(t, report.SkippedExisting)
}

func TestExecute_OverwriteMerge(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeTree(t, src, map[string]string{"llm_run.yaml": "new", "nested/extra.yaml": "n"})
	writeTree(t, dst, map[string]string{"llm_run.yaml": "old", "unrelated.yaml": "keep"})

	plan := NewPlan(Entry{Source: src, Destination: dst, Mode: ModeOverwriteMerge, Label: "merge"})
	_, err := newTestEngine(1).Execute(context.Background(), plan, nil)
	require.NoError(t, err)

	assert.Equal(t, "new", readFile(t, filepath.Join(dst, "llm_run.yaml")))
	assert.Equal(t, "keep", readFile(t, filepath.Join(dst, "unrelated.yaml")))
	assert.Equal(t, "n", readFile(t, filepath.Join(dst, "nested", "extra.yaml")))
}

func TestExecute_SingleFileEntry(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"llm_run.yaml": "cfg"})
	dst := filepath.Join(t.TempDir(), "dev", "llm", "llm_run.yaml")

	plan := NewPlan(Entry{
		Source:      filepath.Join(src, "llm_run.yaml"),
		Destination: dst,
		Mode:        ModeOverwriteMerge,
		Label:       "llm_run.yaml",
	})
	_, err := newTestEngine(1).Execute(context.Background(), plan, nil)
	require.NoError(t, err)

	assert.Equal(t, "cfg", readFile(t, dst))
}

func TestExecute_ProgressMonotonic(t *testing.T) {
	src1, src2 := t.TempDir(), t.TempDir()
	dstRoot := t.TempDir()
	writeTree(t, src1, map[string]string{"a": "aaaa", "b": "bb"})
	writeTree(t, src2, map[string]string{"c": "cccccc", "d/e": "ee"})

	plan := NewPlan(
		Entry{Source: src1, Destination: filepath.Join(dstRoot, "one"), Mode: ModeReplaceTree, Label: "one"},
		Entry{Source: src2, Destination: filepath.Join(dstRoot, "two"), Mode: ModeReplaceTree, Label: "two"},
	)

	sink := &recordingSink{}
	report, err := newTestEngine(2).Execute(context.Background(), plan, sink)
	require.NoError(t, err)

	require.NotEmpty(t, sink.snapshots)
	var prev Progress
	for _, p := range sink.snapshots {
		assert.GreaterOrEqual(t, p.BytesCompleted, prev.BytesCompleted)
		assert.GreaterOrEqual(t, p.EntriesCompleted, prev.EntriesCompleted)
		prev = p
	}

	last := sink.snapshots[len(sink.snapshots)-1]
	assert.Equal(t, last.BytesTotal, last.BytesCompleted)
	assert.Equal(t, 2, last.EntriesCompleted)
	assert.Equal(t, report.BytesTotal, last.BytesTotal)
}

func TestExecute_PanickingSinkDoesNotAbort(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"a": "x"})

	plan := NewPlan(Entry{Source: src, Destination: filepath.Join(t.TempDir(), "out"), Mode: ModeReplaceTree, Label: "a"})

	panicky := sinkFunc(func(Progress) { panic("broken terminal") })
	_, err := newTestEngine(1).Execute(context.Background(), plan, panicky)
	assert.NoError(t, err)
}

type sinkFunc func(Progress)

func (f sinkFunc) Update(p Progress) { f(p) }

func TestExecute_VanishedSource(t *testing.T) {
	plan := NewPlan(Entry{
		Source:      filepath.Join(t.TempDir(), "gone"),
		Destination: filepath.Join(t.TempDir(), "out"),
		Mode:        ModeReplaceTree,
		Label:       "gone",
	})

	_, err := newTestEngine(1).Execute(context.Background(), plan, nil)
	require.ErrorIs(t, err, ErrSourceVanished)

	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Contains(t, terr.Path, "gone")
}

func TestExecute_FailureNamesDestinationAndKeepsCompleted(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"a": "x"})

	good := filepath.Join(t.TempDir(), "good")
	blocked := t.TempDir()
	// A file where a directory is needed makes the second entry fail.
	bad := filepath.Join(blocked, "occupied")
	require.NoError(t, os.WriteFile(bad, []byte("wall"), 0o644))

	plan := NewPlan(
		Entry{Source: src, Destination: good, Mode: ModeReplaceTree, Label: "good"},
		Entry{Source: src, Destination: filepath.Join(bad, "nested"), Mode: ModeReplaceTree, Label: "bad"},
	)

	_, err := newTestEngine(1).Execute(context.Background(), plan, nil)
	require.Error(t, err)

	var terr *Error
	require.ErrorAs(t, err, &terr)

	// The completed entry is not rolled back.
	assert.FileExists(t, filepath.Join(good, "a"))
}

func TestExecute_AbortBeforeEntries(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"a": "x"})
	dst := filepath.Join(t.TempDir(), "out")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	plan := NewPlan(Entry{Source: src, Destination: dst, Mode: ModeReplaceTree, Label: "a"})
	_, err := newTestEngine(1).Execute(ctx, plan, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoDirExists(t, dst)
}

func TestNormalize(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.txt": "x", "sub/b.txt": "y"})
	require.NoError(t, os.Chmod(filepath.Join(root, "a.txt"), 0o600))

	n := NewNormalizer(zap.NewNop())
	n.UID, n.GID = -1, -1 // ownership change needs root; mode is enough here

	// Idempotent: a second pass changes nothing and still succeeds.
	for i := 0; i < 2; i++ {
		require.NoError(t, n.Normalize(root))

		info, err := os.Stat(filepath.Join(root, "a.txt"))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())

		info, err = os.Stat(filepath.Join(root, "sub"))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
	}
}

func TestNormalize_MissingRoot(t *testing.T) {
	n := NewNormalizer(zap.NewNop())
	n.UID, n.GID = -1, -1

	err := n.Normalize(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
