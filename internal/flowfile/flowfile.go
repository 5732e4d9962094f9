// Package flowfile reads graph descriptions from disk. The format follows
// the file extension: .hcl, or .yaml/.yml/.json (JSON is read as YAML).
package flowfile

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/vk/flowgrid/internal/flowdesc"
)

// ErrUnknownFormat is returned for files whose extension names no known
// format.
var ErrUnknownFormat = errors.New("unknown flow file format")

// Load reads and parses the description at path. A leading ~ is expanded.
// When the file does not set a name, the base file name is used.
func Load(fs afero.Fs, path string) (*flowdesc.Description, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("expanding %q: %w", path, err)
	}
	src, err := afero.ReadFile(fs, expanded)
	if err != nil {
		return nil, fmt.Errorf("reading flow file: %w", err)
	}

	desc, err := Parse(src, expanded)
	if err != nil {
		return nil, err
	}
	if desc.Name == "" {
		base := filepath.Base(expanded)
		desc.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return desc, nil
}

// Parse decodes src, choosing the format from filename's extension.
func Parse(src []byte, filename string) (*flowdesc.Description, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".hcl":
		return parseHCL(src, filename)
	case ".yaml", ".yml", ".json":
		return parseYAML(src, filename)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, filename)
}
