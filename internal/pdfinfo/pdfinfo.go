// Package pdfinfo reads metadata from produced PDFs.
package pdfinfo

import (
	"fmt"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"git.home.luguber.info/inful/texbuilder/internal/foundation/errors"
)

// PageCounter returns the number of pages in a PDF.
type PageCounter interface {
	PageCount(path string) (int, error)
}

// Reader reads PDFs with pdfcpu.
type Reader struct {
	conf *model.Configuration
}

// NewReader returns a pdfcpu backed reader using relaxed validation.
func NewReader() *Reader {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Reader{conf: conf}
}

func (r *Reader) PageCount(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.WrapError(err, errors.CategoryFileSystem, "open pdf").
			WithContext("path", path).
			Build()
	}
	defer f.Close()

	n, err := api.PageCount(f, r.conf)
	if err != nil {
		return 0, fmt.Errorf("pdfcpu page count %s: %w", path, err)
	}
	return n, nil
}

// NoopCounter reports zero pages without reading anything.
type NoopCounter struct{}

func (NoopCounter) PageCount(string) (int, error) { return 0, nil }
