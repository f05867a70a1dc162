package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/innovacioninteligente/dochevi-construc-sub000/constants"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/llm"
)

// Generate implements llm.Generator over chat/completions. Images are sent as
// image_url parts and PDFs as file parts, both base64 data URLs.
func (c *Client) Generate(ctx context.Context, prompt llm.Prompt, schema map[string]any) (json.RawMessage, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info("llm.generate.start",
		"req_id", rid,
		"provider", "openai",
		"model", c.cfg.Model,
		"text_len", len(prompt.Text),
		"media", len(prompt.Media),
	)

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	messages := make([]map[string]any, 0, 3)
	if prompt.System != "" {
		messages = append(messages, map[string]any{"role": "system", "content": prompt.System})
	}
	messages = append(messages, map[string]any{"role": "user", "content": userContent(prompt)})
	messages = append(messages, map[string]any{"role": "system", "content": "JSON Schema:\n" + mustJSON(schema)})

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages":        messages,
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, err := llm.SendJSON(ctx, c.http, endpoint, body, map[string]string{
		"Authorization": "Bearer " + c.cfg.APIKey,
	}, c.log)
	if err != nil {
		c.log.Error("llm.generate.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.log.Error("llm.generate.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		c.log.Error("llm.generate.no_choices", "req_id", rid, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, llm.ErrEmptyResponse
	}

	out, err := llm.Conform(schema, []byte(cc.Choices[0].Message.Content), rid, c.log)
	if err != nil {
		return nil, err
	}

	c.log.Info("llm.generate.ok",
		"req_id", rid,
		"bytes", len(out),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

func userContent(p llm.Prompt) any {
	if !p.HasMedia() {
		return p.Text + "\n\nReturn ONLY JSON that matches the provided schema."
	}
	parts := []map[string]any{
		{"type": "text", "text": p.Text + "\n\nReturn ONLY JSON that matches the provided schema."},
	}
	for i, m := range p.Media {
		url := "data:" + m.MimeType + ";base64," + base64.StdEncoding.EncodeToString(m.Data)
		if constants.IsImage(m.MimeType) {
			parts = append(parts, map[string]any{
				"type":      "image_url",
				"image_url": map[string]any{"url": url, "detail": "high"},
			})
			continue
		}
		parts = append(parts, map[string]any{
			"type": "file",
			"file": map[string]any{
				"filename":  fmt.Sprintf("page-%d.pdf", i+1),
				"file_data": url,
			},
		})
	}
	return parts
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
