// Package fileutil holds small filesystem helpers.
package fileutil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteAtomic creates path by letting fill write into a temporary file in
// the same directory and renaming it into place. On any failure the
// temporary file is removed and path is left untouched.
func WriteAtomic(path string, mode os.FileMode, fill func(io.Writer) error) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func(cause error) error {
		_ = os.Remove(tmpName)
		return cause
	}

	fillErr := fill(tmp)
	closeErr := tmp.Close()
	if err := errors.Join(fillErr, closeErr); err != nil {
		return cleanup(err)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return cleanup(fmt.Errorf("chmod temp file: %w", err))
	}
	if err := os.Rename(tmpName, path); err != nil {
		return cleanup(fmt.Errorf("rename into place: %w", err))
	}
	return nil
}
