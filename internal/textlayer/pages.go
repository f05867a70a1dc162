package textlayer

import (
	"bytes"
	"fmt"
	"strconv"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var disableConfigDir sync.Once

// PDFPages isolates physical pages of a PDF with pdfcpu.
type PDFPages struct {
	conf *model.Configuration
}

func NewPDFPages() *PDFPages {
	disableConfigDir.Do(api.DisableConfigDir)
	return &PDFPages{conf: model.NewDefaultConfiguration()}
}

// Count returns the number of pages in doc.
func (p *PDFPages) Count(doc []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(doc), p.conf)
	if err != nil {
		return 0, fmt.Errorf("pdf page count: %w", err)
	}
	return n, nil
}

// Page returns a single-page PDF holding the 1-indexed page n of doc.
func (p *PDFPages) Page(doc []byte, n int) ([]byte, error) {
	var out bytes.Buffer
	if err := api.Trim(bytes.NewReader(doc), &out, []string{strconv.Itoa(n)}, p.conf); err != nil {
		return nil, fmt.Errorf("pdf page %d: %w", n, err)
	}
	return out.Bytes(), nil
}
