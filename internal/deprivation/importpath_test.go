package deprivation_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"careanalytics/internal/deprivation"
)

func TestResolveImportPath(t *testing.T) {
	dir := t.TempDir()
	root, err := filepath.Abs(dir)
	require.NoError(t, err)

	tests := []struct {
		name    string
		path    string
		want    string
		outside bool
	}{
		{name: "relative", path: "imd.csv", want: filepath.Join(root, "imd.csv")},
		{name: "nested relative", path: "2024/imd.csv", want: filepath.Join(root, "2024", "imd.csv")},
		{name: "absolute inside", path: filepath.Join(root, "imd.csv"), want: filepath.Join(root, "imd.csv")},
		{name: "dot segments inside", path: "a/../imd.csv", want: filepath.Join(root, "imd.csv")},
		{name: "parent escape", path: "../imd.csv", outside: true},
		{name: "absolute outside", path: "/etc/passwd", outside: true},
		{name: "device file", path: "/dev/zero", outside: true},
		{name: "directory itself", path: root, outside: true},
		{name: "sibling prefix", path: root + "-other/imd.csv", outside: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := deprivation.ResolveImportPath(dir, tt.path)
			if tt.outside {
				require.ErrorIs(t, err, deprivation.ErrOutsideImportDir)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveImportPath_Symlink(t *testing.T) {
	dir := t.TempDir()
	outside := filepath.Join(t.TempDir(), "outside.csv")
	require.NoError(t, os.WriteFile(outside, []byte("postcode,income,health\n"), 0644))
	inside := filepath.Join(dir, "inside.csv")
	require.NoError(t, os.WriteFile(inside, []byte("postcode,income,health\n"), 0644))

	if err := os.Symlink(outside, filepath.Join(dir, "escape.csv")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	require.NoError(t, os.Symlink(inside, filepath.Join(dir, "alias.csv")))

	_, err := deprivation.ResolveImportPath(dir, "escape.csv")
	require.ErrorIs(t, err, deprivation.ErrOutsideImportDir)

	_, err = deprivation.ResolveImportPath(dir, "alias.csv")
	require.NoError(t, err)
}
