package deprivation

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var ErrOutsideImportDir = errors.New("import path is outside the import directory")

// ResolveImportPath returns the cleaned absolute path of name inside dir.
// Relative names are taken relative to dir. Names that escape dir, directly
// or through a symlink, are rejected with ErrOutsideImportDir.
func ResolveImportPath(dir, name string) (string, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve import dir: %w", err)
	}
	p := strings.TrimSpace(name)
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	p = filepath.Clean(p)
	if !within(root, p) {
		return "", fmt.Errorf("%w: %s", ErrOutsideImportDir, name)
	}

	// A file that exists already must also resolve inside the real directory.
	if real, err := filepath.EvalSymlinks(p); err == nil {
		realRoot, err := filepath.EvalSymlinks(root)
		if err != nil {
			realRoot = root
		}
		if !within(realRoot, real) {
			return "", fmt.Errorf("%w: %s", ErrOutsideImportDir, name)
		}
	}
	return p, nil
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	return err == nil && rel != "." && filepath.IsLocal(rel)
}
