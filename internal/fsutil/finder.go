// Package fsutil provides file system utility functions.
package fsutil

import (
	"path/filepath"

	"github.com/spf13/afero"
)

// ListFiles returns the regular files directly inside dir, without
// descending into subdirectories. Order is whatever the filesystem
// reports, which for afero is sorted by name.
func ListFiles(fsys afero.Fs, dir string) ([]string, error) {
	infos, err := afero.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		files = append(files, filepath.Join(dir, info.Name()))
	}
	return files, nil
}
