// Package fsutil provides file system utility functions.
package fsutil

import (
	"errors"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
)

// FindFiles returns the files under root whose extension matches one of
// exts, compared case-insensitively. root may itself be a matching file.
// Paths are sorted so callers that replay files in order are deterministic.
func FindFiles(root string, exts ...string) ([]string, error) {
	if len(exts) == 0 {
		return nil, errors.New("fsutil: at least one extension is required")
	}
	match := func(name string) bool {
		ext := filepath.Ext(name)
		return slices.ContainsFunc(exts, func(want string) bool { return strings.EqualFold(ext, want) })
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && match(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(files)
	return files, nil
}
