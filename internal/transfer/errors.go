package transfer

import (
	"errors"
	"fmt"
)

// ErrSourceVanished marks a source entry that disappeared between plan
// construction and execution.
var ErrSourceVanished = errors.New("source vanished during transfer")

// Error identifies exactly which path a transfer failed on. Completed
// entries are never rolled back; re-running the same plan is safe because
// entries are idempotent or overwrite-safe by construction.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transfer %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
