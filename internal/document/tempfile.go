package document

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
)

// WithTempFile stores r in a fresh temporary file under dir, hands its path
// to fn and removes the file afterwards, whatever fn does (including
// panicking). A failed removal is logged and never masks fn's error.
func WithTempFile(logger *zap.Logger, dir, pattern string, r io.Reader, fn func(path string) error) (err error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	file, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	path := file.Name()

	defer func() {
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			logger.Warn("failed to remove temp file", zap.String("path", path), zap.Error(rmErr))
		}
	}()

	if _, err := io.Copy(file, r); err != nil {
		file.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	return fn(path)
}
