package transfer

import (
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Card filesystem owner: the rm01 user on the appliance.
const (
	DefaultOwnerUID = 1000
	DefaultOwnerGID = 1000
)

// Normalizer applies a fixed permission mode and ownership to a
// destination root recursively. The pass is idempotent and can run
// standalone, without any preceding copy.
type Normalizer struct {
	Mode os.FileMode
	UID  int
	GID  int

	logger *zap.Logger
}

func NewNormalizer(logger *zap.Logger) *Normalizer {
	return &Normalizer{
		Mode:   0o755,
		UID:    DefaultOwnerUID,
		GID:    DefaultOwnerGID,
		logger: logger.Named("normalize"),
	}
}

// Normalize walks root applying mode and ownership to every entry.
// Symlinks are skipped; chmod would follow them out of the tree. A UID or
// GID below zero leaves ownership untouched.
func (n *Normalizer) Normalize(root string) error {
	count := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return sourceError(path, err)
		}
		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		if err := os.Chmod(path, n.Mode); err != nil {
			return &Error{Op: "chmod", Path: path, Err: err}
		}
		if n.UID >= 0 && n.GID >= 0 {
			if err := os.Chown(path, n.UID, n.GID); err != nil {
				return &Error{Op: "chown", Path: path, Err: err}
			}
		}

		count++
		return nil
	})
	if err != nil {
		return err
	}

	n.logger.Info("normalized permissions",
		zap.String("root", root),
		zap.Int("entries", count),
		zap.String("mode", n.Mode.String()),
	)

	return nil
}
