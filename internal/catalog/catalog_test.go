package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rm01-labs/cardmaker/internal/naming"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestScanner() *Scanner {
	resolver := naming.NewResolver([]string{"Qwen", "GPT", "Llama", "DeepSeek", "Gemma"})
	return NewScanner(resolver, zap.NewNop())
}

func makeModelsRoot(t *testing.T, rootName string) (diskPath, root string) {
	t.Helper()

	diskPath = t.TempDir()
	root = filepath.Join(diskPath, rootName)

	for _, dir := range []string{
		"Qwen_ChatGLM-7B",
		"Llama-3.1-70B",
		"unbranded-model",
		filepath.Join("embedding", "Qwen_Embedding-0.6B"),
		filepath.Join("reranker", "bge-reranker-v2"),
	} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, dir), 0o755))
	}

	// Stray file entries must be skipped, not errored.
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.txt"), []byte("x"), 0o644))

	return diskPath, root
}

func TestResolveRoot_CaseVariants(t *testing.T) {
	for _, name := range []string{"Models_download", "models_download"} {
		diskPath, want := makeModelsRoot(t, name)

		got, err := ResolveRoot(diskPath)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestResolveRoot_Missing(t *testing.T) {
	_, err := ResolveRoot(t.TempDir())

	var notFound *PathNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestScan_BucketsByClass(t *testing.T) {
	_, root := makeModelsRoot(t, "Models_download")

	cat, err := newTestScanner().Scan(context.Background(), root)
	require.NoError(t, err)

	require.Len(t, cat.LLM, 3)
	require.Len(t, cat.Embedding, 1)
	require.Len(t, cat.Reranker, 1)
	assert.Equal(t, 5, cat.Len())

	// Directory-listing order is preserved within each bucket.
	assert.Equal(t, "Llama-3.1-70B", cat.LLM[0].FullName)
	assert.Equal(t, "Qwen_ChatGLM-7B", cat.LLM[1].FullName)
	assert.Equal(t, "unbranded-model", cat.LLM[2].FullName)

	// Sub-root entries carry the hinted class and their source path.
	emb := cat.Embedding[0]
	assert.Equal(t, naming.ClassEmbedding, emb.Class)
	assert.Equal(t, filepath.Join(root, "embedding", "Qwen_Embedding-0.6B"), emb.SourcePath)
}

func TestScan_SubRootClassHintWins(t *testing.T) {
	diskPath := t.TempDir()
	root := filepath.Join(diskPath, "Models_download")

	// A folder under reranker/ whose own name would classify as LLM.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "reranker", "Qwen_Plain-0.6B"), 0o755))

	cat, err := newTestScanner().Scan(context.Background(), root)
	require.NoError(t, err)

	require.Len(t, cat.Reranker, 1)
	assert.Empty(t, cat.LLM)
	assert.Equal(t, naming.ClassReranker, cat.Reranker[0].Class)
}

func TestScan_MissingRoot(t *testing.T) {
	_, err := newTestScanner().Scan(context.Background(), filepath.Join(t.TempDir(), "nope"))

	var notFound *PathNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestScan_CancelledContext(t *testing.T) {
	_, root := makeModelsRoot(t, "Models_download")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestScanner().Scan(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFilterManufacturer(t *testing.T) {
	_, root := makeModelsRoot(t, "Models_download")

	cat, err := newTestScanner().Scan(context.Background(), root)
	require.NoError(t, err)

	qwen := cat.FilterManufacturer("Qwen")
	require.Len(t, qwen, 1)
	assert.Equal(t, "Qwen_ChatGLM-7B", qwen[0].FullName)

	other := cat.FilterManufacturer(naming.Other)
	require.Len(t, other, 1)
	assert.Equal(t, "unbranded-model", other[0].FullName)
}
