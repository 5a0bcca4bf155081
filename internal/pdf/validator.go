// Package pdf checks input documents before they reach the rasterizer.
package pdf

import (
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/spf13/afero"

	"github.com/a3tai/pdf-formfill/internal/fillerr"
)

// FileInfo describes a document that passed validation.
type FileInfo struct {
	Path  string `json:"path"`
	Size  int64  `json:"size"`
	Pages int    `json:"pages"`
}

// ValidationResult is the outcome of checking one path.
type ValidationResult struct {
	Path    string    `json:"path"`
	Valid   bool      `json:"valid"`
	Message string    `json:"message,omitempty"`
	Info    *FileInfo `json:"info,omitempty"`
}

// Validator handles PDF file validation operations
type Validator struct {
	fs          afero.Fs
	maxFileSize int64
}

// NewValidator creates a new PDF validator with the specified constraints
func NewValidator(fs afero.Fs, maxFileSize int64) *Validator {
	return &Validator{
		fs:          fs,
		maxFileSize: maxFileSize,
	}
}

// Check validates path and reports the outcome without failing.
func (v *Validator) Check(path string) *ValidationResult {
	result := &ValidationResult{Path: path}

	info, err := v.Validate(path)
	if err != nil {
		result.Message = err.Error()
		return result
	}

	result.Valid = true
	result.Info = info
	return result
}

// Validate checks that path is a readable, non-empty PDF under the size
// limit. Failures are conversion errors: the document cannot be rasterized.
func (v *Validator) Validate(path string) (*FileInfo, error) {
	info, err := v.validate(path)
	if err != nil {
		return nil, fillerr.Wrap(fillerr.ErrorTypeConversion, "validate", err)
	}
	return info, nil
}

func (v *Validator) validate(filePath string) (*FileInfo, error) {
	if filePath == "" {
		return nil, fmt.Errorf("path cannot be empty")
	}

	fileInfo, err := v.fs.Stat(filePath)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("file does not exist: %s", filePath)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot access file: %w", err)
	}

	if err := v.ValidateFileInfo(filePath, fileInfo); err != nil {
		return nil, err
	}

	f, err := v.fs.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("cannot open file: %w", err)
	}
	defer f.Close()

	pages, err := pageCount(f, fileInfo.Size())
	if err != nil {
		return nil, fmt.Errorf("invalid PDF file: %w", err)
	}
	if pages == 0 {
		return nil, fmt.Errorf("PDF has no pages: %s", filePath)
	}

	return &FileInfo{Path: filePath, Size: fileInfo.Size(), Pages: pages}, nil
}

// pageCount parses the document; the reader panics on some malformed input.
func pageCount(f afero.File, size int64) (pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed document: %v", r)
		}
	}()

	r, err := pdf.NewReader(f, size)
	if err != nil {
		return 0, err
	}
	return r.NumPage(), nil
}

// ValidateFileInfo performs basic validation on file info without opening the PDF
func (v *Validator) ValidateFileInfo(filePath string, fileInfo os.FileInfo) error {
	if fileInfo.IsDir() {
		return fmt.Errorf("path is a directory, not a file: %s", filePath)
	}

	if !strings.HasSuffix(strings.ToLower(filePath), ".pdf") {
		return fmt.Errorf("file is not a PDF: %s", filePath)
	}

	if fileInfo.Size() == 0 {
		return fmt.Errorf("file is empty: %s", filePath)
	}

	if fileInfo.Size() > v.maxFileSize {
		return fmt.Errorf("file too large: %d bytes (max: %d bytes)",
			fileInfo.Size(), v.maxFileSize)
	}

	return nil
}
