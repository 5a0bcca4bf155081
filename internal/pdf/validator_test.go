package pdf

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/pdf-formfill/internal/fillerr"
	"github.com/a3tai/pdf-formfill/internal/testpdf"
)

func testFS(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/forms/sub.pdf", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/forms/w4.pdf", testpdf.Build(2, testpdf.LetterWidth, testpdf.LetterHeight), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/forms/UPPER.PDF", testpdf.Build(1, testpdf.LetterWidth, testpdf.LetterHeight), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/forms/empty.pdf", nil, 0o644))
	require.NoError(t, afero.WriteFile(fs, "/forms/notes.txt", []byte("hello"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/forms/garbage.pdf", []byte("this is not a pdf at all"), 0o644))
	return fs
}

func TestValidator_Validate(t *testing.T) {
	v := NewValidator(testFS(t), 1024*1024)

	tests := []struct {
		name      string
		path      string
		wantPages int
		wantErr   string
	}{
		{name: "valid", path: "/forms/w4.pdf", wantPages: 2},
		{name: "upper case extension", path: "/forms/UPPER.PDF", wantPages: 1},
		{name: "empty path", path: "", wantErr: "path cannot be empty"},
		{name: "missing", path: "/forms/missing.pdf", wantErr: "file does not exist"},
		{name: "directory", path: "/forms/sub.pdf", wantErr: "is a directory"},
		{name: "wrong extension", path: "/forms/notes.txt", wantErr: "not a PDF"},
		{name: "empty file", path: "/forms/empty.pdf", wantErr: "file is empty"},
		{name: "not a pdf", path: "/forms/garbage.pdf", wantErr: "invalid PDF file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := v.Validate(tt.path)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.True(t, fillerr.Is(err, fillerr.ErrorTypeConversion))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPages, info.Pages)
			assert.Positive(t, info.Size)
		})
	}
}

func TestValidator_TooLarge(t *testing.T) {
	v := NewValidator(testFS(t), 64)

	_, err := v.Validate("/forms/w4.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file too large")
}

func TestValidator_Check(t *testing.T) {
	v := NewValidator(testFS(t), 1024*1024)

	ok := v.Check("/forms/w4.pdf")
	assert.True(t, ok.Valid)
	assert.Empty(t, ok.Message)
	require.NotNil(t, ok.Info)
	assert.Equal(t, 2, ok.Info.Pages)

	bad := v.Check("/forms/notes.txt")
	assert.False(t, bad.Valid)
	assert.NotEmpty(t, bad.Message)
	assert.Nil(t, bad.Info)
	assert.Equal(t, "/forms/notes.txt", bad.Path)
}

func TestValidator_OsFs(t *testing.T) {
	path := testpdf.WriteFile(t, "form.pdf", 1)

	info, err := NewValidator(afero.NewOsFs(), 1024*1024).Validate(path)
	require.NoError(t, err)
	assert.Equal(t, 1, info.Pages)
	assert.Equal(t, path, info.Path)
}
