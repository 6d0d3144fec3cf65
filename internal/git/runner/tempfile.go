package runner

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// WithTempFile writes content to a fresh file on fs, calls fn with its full
// path and removes the file afterwards, whatever fn returned.
func WithTempFile(fs billy.Filesystem, prefix string, content []byte, fn func(path string) error) (err error) {
	f, err := util.TempFile(fs, "", prefix)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	name := f.Name()
	defer func() {
		if rmErr := fs.Remove(name); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			err = errors.Join(err, fmt.Errorf("remove temp file: %w", rmErr))
		}
	}()
	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	return fn(fs.Join(fs.Root(), name))
}
