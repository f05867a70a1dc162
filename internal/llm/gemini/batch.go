package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/llm"
)

type batchItem struct {
	Request  generateRequest   `json:"request"`
	Metadata map[string]string `json:"metadata"`
}

type operation struct {
	Name     string `json:"name"`
	Done     bool   `json:"done"`
	Metadata struct {
		State string `json:"state"`
	} `json:"metadata"`
	Response struct {
		InlinedResponses struct {
			InlinedResponses []struct {
				Metadata map[string]string `json:"metadata"`
				Response *generateResponse `json:"response"`
				Error    *struct {
					Message string `json:"message"`
				} `json:"error"`
			} `json:"inlinedResponses"`
		} `json:"inlinedResponses"`
	} `json:"response"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// SubmitBatch creates an asynchronous batchGenerateContent job with inlined requests.
func (c *Client) SubmitBatch(ctx context.Context, displayName string, reqs []llm.BatchRequest, schema map[string]any) (llm.BatchJob, error) {
	if len(reqs) == 0 {
		return llm.BatchJob{}, fmt.Errorf("submit batch: no requests")
	}
	if displayName == "" {
		displayName = "budget-" + uuid.NewString()
	}

	items := make([]batchItem, 0, len(reqs))
	for _, r := range reqs {
		items = append(items, batchItem{
			Request:  c.buildRequest(r.Prompt, schema),
			Metadata: map[string]string{"key": r.Key},
		})
	}
	body := map[string]any{
		"batch": map[string]any{
			"display_name": displayName,
			"input_config": map[string]any{
				"requests": map[string]any{"requests": items},
			},
		},
	}

	endpoint := c.cfg.BaseURL + "/v1beta/models/" + url.PathEscape(c.cfg.Model) + ":batchGenerateContent"
	raw, err := llm.SendJSON(ctx, c.http, endpoint, body, c.headers(), c.log)
	if err != nil {
		return llm.BatchJob{}, fmt.Errorf("submit batch: %w", err)
	}
	var op operation
	if err := json.Unmarshal(raw, &op); err != nil {
		return llm.BatchJob{}, fmt.Errorf("decode batch operation: %w", err)
	}
	c.log.Info("llm.batch.submitted", "name", op.Name, "requests", len(reqs))
	return llm.BatchJob{Name: op.Name, State: op.Metadata.State, Done: op.Done}, nil
}

// BatchStatus polls a batch job. Finished jobs carry their inlined responses,
// validated against schema the same way Generate validates.
func (c *Client) BatchStatus(ctx context.Context, name string, schema map[string]any) (llm.BatchJob, error) {
	endpoint := c.cfg.BaseURL + "/v1beta/" + name
	raw, err := llm.DoJSON(ctx, c.http, http.MethodGet, endpoint, nil, c.headers(), c.log)
	if err != nil {
		return llm.BatchJob{}, fmt.Errorf("batch status: %w", err)
	}
	var op operation
	if err := json.Unmarshal(raw, &op); err != nil {
		return llm.BatchJob{}, fmt.Errorf("decode batch operation: %w", err)
	}

	job := llm.BatchJob{Name: op.Name, State: op.Metadata.State, Done: op.Done}
	if !op.Done {
		return job, nil
	}
	if op.Error != nil {
		return job, fmt.Errorf("batch %s failed: %s", name, op.Error.Message)
	}

	job.Responses = map[string]json.RawMessage{}
	job.Errors = map[string]string{}
	for i, r := range op.Response.InlinedResponses.InlinedResponses {
		key := r.Metadata["key"]
		if key == "" {
			key = fmt.Sprintf("%d", i)
		}
		if r.Error != nil {
			job.Errors[key] = r.Error.Message
			continue
		}
		if r.Response == nil {
			job.Errors[key] = llm.ErrEmptyResponse.Error()
			continue
		}
		out, err := llm.Conform(schema, []byte(responseText(*r.Response)), name+"/"+key, c.log)
		if err != nil {
			job.Errors[key] = err.Error()
			continue
		}
		job.Responses[key] = out
	}
	c.log.Info("llm.batch.done", "name", name, "ok", len(job.Responses), "failed", len(job.Errors))
	return job, nil
}
