package output

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnsureOutputPath creates the directory (recursively) and an empty file
// inside it unless they already exist. Existing file content is kept.
func EnsureOutputPath(dir, name string) (_ string, _err error) {
	defer func() {
		if r := recover(); r != nil {
			_err = fmt.Errorf("got a panic: %v", r)
		}
	}()

	if name == "" {
		return "", fmt.Errorf("the output file name is empty")
	}
	if strings.ContainsRune(name, os.PathSeparator) || name == "." || name == ".." {
		return "", fmt.Errorf("the output file name '%s' is not a plain file name", name)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("unable to create directory '%s': %w", dir, err)
	}

	path := filepath.Join(dir, name)
	info, err := os.Stat(path)
	switch {
	case err == nil:
		if !info.Mode().IsRegular() {
			return "", fmt.Errorf("'%s' exists and is not a regular file", path)
		}
		return path, nil
	case !errors.Is(err, os.ErrNotExist):
		return "", fmt.Errorf("unable to stat '%s': %w", path, err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return "", fmt.Errorf("unable to create file '%s': %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("unable to close file '%s': %w", path, err)
	}
	return path, nil
}
