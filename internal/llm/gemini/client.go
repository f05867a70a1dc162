package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/llm"
)

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature        float32        `json:"temperature"`
	ResponseMimeType   string         `json:"responseMimeType"`
	ResponseJSONSchema map[string]any `json:"responseJsonSchema,omitempty"`
}

type generateRequest struct {
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

// Generate implements llm.Generator over generateContent. Documents and
// images travel as inline_data parts.
func (c *Client) Generate(ctx context.Context, prompt llm.Prompt, schema map[string]any) (json.RawMessage, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info("llm.generate.start",
		"req_id", rid,
		"provider", "gemini",
		"model", c.cfg.Model,
		"text_len", len(prompt.Text),
		"media", len(prompt.Media),
	)

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	endpoint := c.cfg.BaseURL + "/v1beta/models/" + url.PathEscape(c.cfg.Model) + ":generateContent"
	raw, err := llm.SendJSON(ctx, c.http, endpoint, c.buildRequest(prompt, schema), c.headers(), c.log)
	if err != nil {
		c.log.Error("llm.generate.http_error", "req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, err
	}

	var resp generateResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode gemini response: %w", err)
	}
	text := responseText(resp)
	if text == "" {
		c.log.Error("llm.generate.no_candidates", "req_id", rid, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, llm.ErrEmptyResponse
	}

	out, err := llm.Conform(schema, []byte(text), rid, c.log)
	if err != nil {
		return nil, err
	}
	c.log.Info("llm.generate.ok", "req_id", rid, "bytes", len(out),
		"elapsed_ms", time.Since(start).Milliseconds())
	return out, nil
}

func (c *Client) buildRequest(p llm.Prompt, schema map[string]any) generateRequest {
	parts := []part{{Text: p.Text}}
	for _, m := range p.Media {
		parts = append(parts, part{InlineData: &inlineData{
			MimeType: m.MimeType,
			Data:     base64.StdEncoding.EncodeToString(m.Data),
		}})
	}
	req := generateRequest{
		Contents: []content{{Role: "user", Parts: parts}},
		GenerationConfig: generationConfig{
			Temperature:        c.cfg.Temperature,
			ResponseMimeType:   "application/json",
			ResponseJSONSchema: schema,
		},
	}
	if p.System != "" {
		req.SystemInstruction = &content{Parts: []part{{Text: p.System}}}
	}
	return req
}

func responseText(resp generateResponse) string {
	if len(resp.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return strings.TrimSpace(b.String())
}
