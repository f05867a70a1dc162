package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/philippgille/chromem-go"

	"github.com/innovacioninteligente/dochevi-construc-sub000/constants"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/entity"
)

const collectionName = "catalog"

const (
	metaCode      = "code"
	metaUnit      = "unit"
	metaPrice     = "price"
	metaKind      = "kind"
	metaChapter   = "chapter"
	metaBreakdown = "breakdown"
)

// Index is a Searcher over an in-process chromem vector collection.
type Index struct {
	db   *chromem.DB
	coll *chromem.Collection
	log  *slog.Logger
}

// NewIndex opens the catalog collection. With an empty persistDir the index
// lives in memory only.
func NewIndex(embed chromem.EmbeddingFunc, persistDir string, logger *slog.Logger) (*Index, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var (
		db  *chromem.DB
		err error
	)
	if persistDir == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(persistDir, true)
		if err != nil {
			return nil, fmt.Errorf("open catalog store %s: %w", persistDir, err)
		}
	}
	coll, err := db.GetOrCreateCollection(collectionName, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("open catalog collection: %w", err)
	}
	return &Index{db: db, coll: coll, log: logger}, nil
}

func (ix *Index) Count() int { return ix.coll.Count() }

// Add embeds and stores entries. Entries are keyed by code, so re-importing a
// price book replaces previous rows.
func (ix *Index) Add(ctx context.Context, entries []entity.CatalogEntry) error {
	if len(entries) == 0 {
		return ErrEmptyCatalog
	}
	start := time.Now()
	docs := make([]chromem.Document, 0, len(entries))
	for i, e := range entries {
		doc, err := toDocument(i, e)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
	}
	if err := ix.coll.AddDocuments(ctx, docs, 4); err != nil {
		return fmt.Errorf("add catalog documents: %w", err)
	}
	ix.log.Info("catalog.index.added", "entries", len(docs), "total", ix.coll.Count(), "elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

// Search returns up to limit entries. The chapter hint is folded into the
// query text, the kind is applied as a metadata filter.
func (ix *Index) Search(ctx context.Context, query string, limit int, chapterHint string, kind constants.ItemKind) ([]entity.CatalogEntry, error) {
	query = strings.TrimSpace(query)
	if query == "" || limit <= 0 {
		return nil, nil
	}
	n := ix.coll.Count()
	if n == 0 {
		return nil, nil
	}
	if limit > n {
		limit = n
	}
	if chapterHint != "" && chapterHint != constants.UnknownContext {
		query = chapterHint + ". " + query
	}
	var where map[string]string
	if kind != "" {
		where = map[string]string{metaKind: string(kind)}
	}
	results, err := ix.coll.Query(ctx, query, limit, where, nil)
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}
	out := make([]entity.CatalogEntry, 0, len(results))
	for _, r := range results {
		e, err := fromResult(r)
		if err != nil {
			ix.log.Warn("catalog.search.bad_document", "id", r.ID, "error", err)
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func toDocument(i int, e entity.CatalogEntry) (chromem.Document, error) {
	id := e.Code
	if id == "" {
		id = "row-" + strconv.Itoa(i+1)
	}
	kind := e.Kind
	if kind == "" {
		kind = constants.KindLabor
	}
	meta := map[string]string{
		metaCode:    e.Code,
		metaUnit:    e.Unit,
		metaPrice:   strconv.FormatFloat(e.Price, 'f', -1, 64),
		metaKind:    string(kind),
		metaChapter: e.Chapter,
	}
	if len(e.Breakdown) > 0 {
		b, err := json.Marshal(e.Breakdown)
		if err != nil {
			return chromem.Document{}, fmt.Errorf("encode breakdown for %s: %w", id, err)
		}
		meta[metaBreakdown] = string(b)
	}
	content := e.Description
	if e.Chapter != "" {
		content = e.Chapter + ". " + e.Description
	}
	return chromem.Document{ID: id, Content: content, Metadata: meta}, nil
}

func fromResult(r chromem.Result) (entity.CatalogEntry, error) {
	price, err := strconv.ParseFloat(r.Metadata[metaPrice], 64)
	if err != nil {
		return entity.CatalogEntry{}, fmt.Errorf("price %q: %w", r.Metadata[metaPrice], err)
	}
	desc := r.Content
	if ch := r.Metadata[metaChapter]; ch != "" {
		desc = strings.TrimPrefix(desc, ch+". ")
	}
	e := entity.CatalogEntry{
		Code:        r.Metadata[metaCode],
		Description: desc,
		Unit:        r.Metadata[metaUnit],
		Price:       price,
		Kind:        constants.ItemKind(r.Metadata[metaKind]),
		Chapter:     r.Metadata[metaChapter],
		Score:       r.Similarity,
	}
	if b := r.Metadata[metaBreakdown]; b != "" {
		if err := json.Unmarshal([]byte(b), &e.Breakdown); err != nil {
			return entity.CatalogEntry{}, fmt.Errorf("breakdown: %w", err)
		}
	}
	return e, nil
}
