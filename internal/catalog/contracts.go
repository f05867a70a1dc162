package catalog

import (
	"context"
	"errors"

	"github.com/innovacioninteligente/dochevi-construc-sub000/constants"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/entity"
)

var ErrEmptyCatalog = errors.New("catalog: no entries")

// Searcher ranks catalog entries best-first for a free-text task description.
// chapterHint and kind are optional; an empty value disables the filter.
type Searcher interface {
	Search(ctx context.Context, query string, limit int, chapterHint string, kind constants.ItemKind) ([]entity.CatalogEntry, error)
}
