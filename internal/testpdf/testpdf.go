// Package testpdf builds small, well-formed PDF documents for tests.
package testpdf

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"testing"
)

// Letter page size in points.
const (
	LetterWidth  = 612.0
	LetterHeight = 792.0
)

// Build returns a PDF with pages of the given size. Each page strokes one
// rectangle so rasterized output is not entirely blank.
func Build(pages int, width, height float64) []byte {
	var buf bytes.Buffer
	offsets := make([]int, 0)

	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")
	obj("<< /Type /Catalog /Pages 2 0 R >>")

	kids := ""
	for i := 0; i < pages; i++ {
		kids += fmt.Sprintf("%d 0 R ", 3+2*i)
	}
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, pages))

	for i := 0; i < pages; i++ {
		obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %g %g] /Resources << >> /Contents %d 0 R >>",
			width, height, 4+2*i))
		content := fmt.Sprintf("1 w 72 %g 200 20 re S", height-100)
		obj(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

// WriteFile writes a Letter-sized document with the given page count into
// the test's temp directory and returns its path.
func WriteFile(t testing.TB, name string, pages int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, Build(pages, LetterWidth, LetterHeight), 0o644); err != nil {
		t.Fatalf("failed to write test PDF: %v", err)
	}
	return path
}

// Ink returns the bounding box of the dark pixels of img inside r, and false
// when r holds none.
func Ink(img *image.RGBA, r image.Rectangle) (image.Rectangle, bool) {
	r = r.Intersect(img.Bounds())
	var box image.Rectangle
	found := false
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			c := img.RGBAAt(x, y)
			if int(c.R)+int(c.G)+int(c.B) >= 3*128 {
				continue
			}
			dot := image.Rect(x, y, x+1, y+1)
			if !found {
				box, found = dot, true
			} else {
				box = box.Union(dot)
			}
		}
	}
	return box, found
}
