package extraction

import (
	"context"
	"errors"

	"github.com/innovacioninteligente/dochevi-construc-sub000/constants"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/entity"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/textlayer"
)

// ErrNoContent is the only fatal extraction outcome: no page or text could be
// obtained from the document at all.
var ErrNoContent = errors.New("extraction: no document content could be obtained")

// TextProber is the text-layer gate.
type TextProber interface {
	Probe(ctx context.Context, doc []byte) textlayer.Result
	ProbeText(text string) textlayer.Result
}

// PageSource isolates physical pages for the vision path.
type PageSource interface {
	Count(doc []byte) (int, error)
	Page(doc []byte, n int) ([]byte, error)
}

// Document is the pipeline input.
type Document struct {
	Data     []byte
	MimeType string
	Name     string
}

// Result is the flat, ordered item list of one document.
type Result struct {
	Items     []entity.MeasurementItem
	PageCount int
	Path      constants.ExtractionPath
	Failed    int // chunks or pages that contributed nothing because their call failed
}
