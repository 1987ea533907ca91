package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rm01-labs/cardmaker/internal/layout"
	"github.com/rm01-labs/cardmaker/internal/naming"

	"go.uber.org/zap"
)

// PathNotFoundError reports a scan root that does not exist.
type PathNotFoundError struct {
	Path string
}

func (e *PathNotFoundError) Error() string {
	return fmt.Sprintf("path not found: %s", e.Path)
}

// Catalog groups scanned model identities by class, in directory-listing
// order so that menu numbering stays stable for a fixed filesystem state.
type Catalog struct {
	LLM       []naming.Identity
	Embedding []naming.Identity
	Reranker  []naming.Identity
}

func (c *Catalog) Len() int {
	return len(c.LLM) + len(c.Embedding) + len(c.Reranker)
}

// ByClass returns the bucket for one model class.
func (c *Catalog) ByClass(class naming.Class) []naming.Identity {
	switch class {
	case naming.ClassEmbedding:
		return c.Embedding
	case naming.ClassReranker:
		return c.Reranker
	default:
		return c.LLM
	}
}

// FilterManufacturer returns the LLM entries for one manufacturer. Choosing
// naming.Other selects every entry whose manufacturer is outside the known
// token set.
func (c *Catalog) FilterManufacturer(manufacturer string) []naming.Identity {
	var out []naming.Identity
	for _, id := range c.LLM {
		if id.Manufacturer == manufacturer {
			out = append(out, id)
		}
	}

	return out
}

// Scanner walks a models root and parses each subdirectory into an Identity.
type Scanner struct {
	resolver *naming.Resolver
	logger   *zap.Logger
}

func NewScanner(resolver *naming.Resolver, logger *zap.Logger) *Scanner {
	return &Scanner{
		resolver: resolver,
		logger:   logger.Named("catalog"),
	}
}

// ResolveRoot locates the models root under a master disk path, accepting
// either case variant of the expected directory name.
func ResolveRoot(diskPath string) (string, error) {
	for _, name := range []string{layout.ModelsRootName, layout.ModelsRootAltName} {
		root := filepath.Join(diskPath, name)
		if info, err := os.Stat(root); err == nil && info.IsDir() {
			return root, nil
		}
	}

	return "", &PathNotFoundError{Path: filepath.Join(diskPath, layout.ModelsRootName)}
}

// Scan builds a fresh catalog from the immediate subdirectories of root.
// The embedding/ and reranker/ sub-roots are descended one level with a
// class hint; everything else is bucketed by its own parsed class.
func (s *Scanner) Scan(ctx context.Context, root string) (*Catalog, error) {
	entries, err := readDir(ctx, root)
	if err != nil {
		return nil, err
	}

	cat := &Catalog{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		switch entry.Name() {
		case layout.EmbeddingSubdir:
			if err := s.scanSubRoot(ctx, filepath.Join(root, entry.Name()), naming.ClassEmbedding, cat); err != nil {
				return nil, err
			}
		case layout.RerankerSubdir:
			if err := s.scanSubRoot(ctx, filepath.Join(root, entry.Name()), naming.ClassReranker, cat); err != nil {
				return nil, err
			}
		default:
			id := s.resolver.Parse(entry.Name())
			id.SourcePath = filepath.Join(root, entry.Name())
			s.add(cat, id)
		}
	}

	s.logger.Info("scan complete",
		zap.String("root", root),
		zap.Int("llm", len(cat.LLM)),
		zap.Int("embedding", len(cat.Embedding)),
		zap.Int("reranker", len(cat.Reranker)),
	)

	return cat, nil
}

// scanSubRoot lists one level of an embedding/reranker sub-root, forcing
// the hinted class on every entry.
func (s *Scanner) scanSubRoot(ctx context.Context, root string, hint naming.Class, cat *Catalog) error {
	entries, err := readDir(ctx, root)
	if err != nil {
		// A missing sub-root is fine; the card simply gets no models of
		// that class.
		var notFound *PathNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		id := s.resolver.Parse(entry.Name())
		id.Class = hint
		id.SourcePath = filepath.Join(root, entry.Name())
		s.add(cat, id)
	}

	return nil
}

func (s *Scanner) add(cat *Catalog, id naming.Identity) {
	s.logger.Debug("found model",
		zap.String("manufacturer", id.Manufacturer),
		zap.String("model", id.Model),
		zap.String("class", string(id.Class)),
	)

	switch id.Class {
	case naming.ClassEmbedding:
		cat.Embedding = append(cat.Embedding, id)
	case naming.ClassReranker:
		cat.Reranker = append(cat.Reranker, id)
	default:
		cat.LLM = append(cat.LLM, id)
	}
}

// readDir lists a directory under the caller's deadline. Removable media
// can stall, so the listing runs off-thread and the wait is bounded.
func readDir(ctx context.Context, path string) ([]os.DirEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("listing %s: %w", path, err)
	}

	type result struct {
		entries []os.DirEntry
		err     error
	}

	ch := make(chan result, 1)
	go func() {
		entries, err := os.ReadDir(path)
		ch <- result{entries, err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("listing %s: %w", path, ctx.Err())
	case res := <-ch:
		if res.err != nil {
			if os.IsNotExist(res.err) {
				return nil, &PathNotFoundError{Path: path}
			}
			return nil, fmt.Errorf("listing %s: %w", path, res.err)
		}
		return res.entries, nil
	}
}
