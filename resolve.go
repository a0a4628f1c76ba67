package qcsv

import (
	"fmt"
	"os"
)

// Resolve checks that path names a readable regular file and returns it unchanged.
// The file is opened and closed again so permission problems surface here
// instead of inside a query.
func Resolve(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: empty path", ErrFileNotFound)
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrFileNotFound, path)
	}

	f, err := os.Open(path) //nolint:gosec // User-provided path is necessary for file operations
	if err != nil {
		return "", fmt.Errorf("%w: %s is not readable", ErrFileNotFound, path)
	}
	_ = f.Close()

	return path, nil
}
