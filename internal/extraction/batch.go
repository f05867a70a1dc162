package extraction

import (
	"context"
	"fmt"
	"sort"

	"github.com/innovacioninteligente/dochevi-construc-sub000/constants"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/entity"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/llm"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/textlayer"
)

// batchKey encodes chunk order and physical page so results can be
// reassembled without any other state.
func batchKey(chunk, page int) string { return fmt.Sprintf("chunk-%04d-page-%04d", chunk, page) }

func parseBatchKey(key string) (chunk, page int, ok bool) {
	_, err := fmt.Sscanf(key, "chunk-%04d-page-%04d", &chunk, &page)
	return chunk, page, err == nil
}

// BatchRequests probes doc and builds one extraction request per text chunk.
// Chunks in a batch run independently, so each prompt starts from an unknown
// chapter and section; AssembleBatch threads the context afterwards.
func (o *Orchestrator) BatchRequests(ctx context.Context, doc Document) ([]llm.BatchRequest, textlayer.Result, error) {
	if len(doc.Data) == 0 {
		return nil, textlayer.Result{}, ErrNoContent
	}
	var probe textlayer.Result
	if constants.NormalizeMime(doc.MimeType) == constants.MimeText {
		probe = o.prober.ProbeText(string(doc.Data))
	} else {
		probe = o.prober.Probe(ctx, doc.Data)
	}
	if !probe.HasTextLayer {
		return nil, probe, fmt.Errorf("%w: batch extraction needs a text layer", ErrNoContent)
	}

	total := len(probe.Chunks)
	reqs := make([]llm.BatchRequest, 0, total)
	for i, chunk := range probe.Chunks {
		reqs = append(reqs, llm.BatchRequest{
			Key:    batchKey(i+1, chunk.Page),
			Prompt: llm.BuildChunkPrompt(chunk.Text, i+1, total, entity.NewExtractionContext(), ""),
		})
	}
	return reqs, probe, nil
}

// AssembleBatch folds a finished batch job into an ordered Result. Failed or
// undecodable responses count toward Failed and contribute no items.
func AssembleBatch(job llm.BatchJob, pageCount int) Result {
	type unit struct {
		chunk, page int
		key         string
	}
	var units []unit
	for key := range job.Responses {
		if c, p, ok := parseBatchKey(key); ok {
			units = append(units, unit{chunk: c, page: p, key: key})
		}
	}
	sort.Slice(units, func(i, j int) bool { return units[i].chunk < units[j].chunk })

	res := Result{Path: constants.PathText, PageCount: pageCount, Failed: len(job.Errors)}
	ectx := entity.NewExtractionContext()
	for _, u := range units {
		out, err := llm.Decode[llm.ExtractionResult](job.Responses[u.key])
		if err != nil {
			res.Failed++
			continue
		}
		res.Items, ectx = assemble(res.Items, out, ectx, u.page)
	}
	return res
}
