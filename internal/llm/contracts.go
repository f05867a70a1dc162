package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrSchemaValidation is returned when the model output does not match the
	// caller's schema even after the lenient sanitize pass.
	ErrSchemaValidation = errors.New("llm: output does not match schema")
	// ErrEmptyResponse is returned when the provider answered without content.
	ErrEmptyResponse = errors.New("llm: empty response")
	// ErrBatchUnsupported is returned by AsBatch for clients without batch jobs.
	ErrBatchUnsupported = errors.New("llm: batch generation not supported by this client")
)

// Media is an embedded document or image sent alongside the prompt text.
type Media struct {
	MimeType string
	Data     []byte
}

// Prompt is a single-shot generation request.
type Prompt struct {
	System string
	Text   string
	Media  []Media
}

// HasMedia reports whether the prompt carries a document or image.
func (p Prompt) HasMedia() bool { return len(p.Media) > 0 }

// Generator is the generative extraction port. Implementations must return
// JSON that has been validated against schema.
type Generator interface {
	Generate(ctx context.Context, prompt Prompt, schema map[string]any) (json.RawMessage, error)
}

// BatchRequest is one keyed prompt inside a batch job.
type BatchRequest struct {
	Key    string
	Prompt Prompt
}

// BatchJob is the provider-side state of a submitted batch.
type BatchJob struct {
	Name      string
	State     string
	Done      bool
	Responses map[string]json.RawMessage
	Errors    map[string]string
}

// BatchGenerator is the optional capability for asynchronous batch jobs.
type BatchGenerator interface {
	Generator
	SubmitBatch(ctx context.Context, displayName string, reqs []BatchRequest, schema map[string]any) (BatchJob, error)
	BatchStatus(ctx context.Context, name string, schema map[string]any) (BatchJob, error)
}

// AsBatch returns the batch capability of g, or ErrBatchUnsupported.
func AsBatch(g Generator) (BatchGenerator, error) {
	if bg, ok := g.(BatchGenerator); ok {
		return bg, nil
	}
	return nil, fmt.Errorf("%T: %w", g, ErrBatchUnsupported)
}

// Decode unmarshals a Generator result into T.
func Decode[T any](raw json.RawMessage) (T, error) {
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode generation result: %w", err)
	}
	return out, nil
}
