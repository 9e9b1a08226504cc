// Package workspace reads source file contents for the recall policy and the
// interactive agent.
package workspace

import (
	"context"
	"errors"
)

// ErrOutsideRoot is returned for paths that resolve outside the reader's root.
var ErrOutsideRoot = errors.New("access denied: path is outside working directory")

// Reader returns the current content of a source file.
type Reader interface {
	Read(ctx context.Context, path string) (string, error)
}
