package security

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPathValidator(t *testing.T) {
	_, err := NewPathValidator("")
	assert.Error(t, err)

	v, err := NewPathValidator(".")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(v.Directory()))
}

func setup(t *testing.T) (string, *PathValidator) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "forms"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "forms", "w4.pdf"), []byte("%PDF"), 0o644))

	v, err := NewPathValidator(dir)
	require.NoError(t, err)
	return dir, v
}

func TestPathValidator_Resolve(t *testing.T) {
	dir, v := setup(t)
	outside := t.TempDir()

	tests := []struct {
		name    string
		path    string
		want    string
		wantErr bool
	}{
		{name: "relative existing file", path: "forms/w4.pdf", want: filepath.Join(dir, "forms", "w4.pdf")},
		{name: "absolute inside", path: filepath.Join(dir, "forms", "w4.pdf"), want: filepath.Join(dir, "forms", "w4.pdf")},
		{name: "not yet written output", path: "forms/w4_filled.pdf", want: filepath.Join(dir, "forms", "w4_filled.pdf")},
		{name: "dot segments", path: "./forms/../forms/w4.pdf", want: filepath.Join(dir, "forms", "w4.pdf")},
		{name: "null bytes stripped", path: "forms/w4\x00.pdf", want: filepath.Join(dir, "forms", "w4.pdf")},
		{name: "directory itself", path: dir, want: dir},
		{name: "empty", path: "", wantErr: true},
		{name: "traversal", path: "../escape.pdf", wantErr: true},
		{name: "absolute outside", path: filepath.Join(outside, "x.pdf"), wantErr: true},
		{name: "sibling with shared prefix", path: dir + "-other/x.pdf", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.Resolve(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPathValidator_Symlinks(t *testing.T) {
	dir, v := setup(t)
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.pdf"), []byte("%PDF"), 0o644))

	if err := os.Symlink(outside, filepath.Join(dir, "escape")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}
	require.NoError(t, os.Symlink(filepath.Join(dir, "forms"), filepath.Join(dir, "alias")))

	_, err := v.Resolve("escape/secret.pdf")
	assert.Error(t, err)

	// Output paths that do not exist yet are checked through their parent.
	_, err = v.Resolve("escape/new_filled.pdf")
	assert.Error(t, err)

	got, err := v.Resolve("alias/w4.pdf")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "alias", "w4.pdf"), got)
}

func TestPathValidator_IsPathWithinDirectory(t *testing.T) {
	dir, v := setup(t)

	ok, err := v.IsPathWithinDirectory(filepath.Join(dir, "forms", "w4.pdf"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = v.IsPathWithinDirectory(filepath.Join(dir, "..", "elsewhere.pdf"))
	require.NoError(t, err)
	assert.False(t, ok)
}
