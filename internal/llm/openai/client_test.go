package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/llm"
)

func chatServer(t *testing.T, content string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		b, _ := io.ReadAll(r.Body)
		if seen != nil {
			require.NoError(t, json.Unmarshal(b, seen))
		}
		resp := map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": content}}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerateValidatesAgainstSchema(t *testing.T) {
	srv := chatServer(t, `{"has_dimensions": true, "area_m2": 50, "thickness_m": 0.1, "reasoning": "50m2, 10cm"}`, nil)
	c := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL}, nil)

	raw, err := c.Generate(context.Background(), llm.Prompt{Text: "x"}, llm.DimensionSchema())
	require.NoError(t, err)

	res, err := llm.Decode[llm.DimensionResult](raw)
	require.NoError(t, err)
	assert.True(t, res.HasDimensions)
	assert.InDelta(t, 50, res.AreaM2, 1e-9)
}

func TestGenerateAppliesLenientSanitize(t *testing.T) {
	srv := chatServer(t, "```json\n{\"partidas\": [{\"descripcion\": \"Demolición de tabique\", \"cantidad\": \"10,5\", \"unidad\": \"m2\", \"precio\": 3}]}\n```", nil)
	c := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL}, nil)

	raw, err := c.Generate(context.Background(), llm.Prompt{Text: "x"}, llm.ExtractionSchema())
	require.NoError(t, err)

	res, err := llm.Decode[llm.ExtractionResult](raw)
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "Demolición de tabique", res.Items[0].Description)
	assert.Equal(t, "m2", res.Items[0].Unit)
	assert.InDelta(t, 10.5, res.Items[0].Quantity, 1e-9)
}

func TestGenerateRejectsUnrepairableOutput(t *testing.T) {
	srv := chatServer(t, `{"selected_index": "none of them"}`, nil)
	c := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL}, nil)

	_, err := c.Generate(context.Background(), llm.Prompt{Text: "x"}, llm.VerificationSchema(3))
	require.Error(t, err)
	assert.True(t, errors.Is(err, llm.ErrSchemaValidation))
}

func TestGenerateSendsMediaParts(t *testing.T) {
	var seen map[string]any
	srv := chatServer(t, `{"items": []}`, &seen)
	c := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL}, nil)

	prompt := llm.Prompt{
		System: "sys",
		Text:   "page 1",
		Media:  []llm.Media{{MimeType: "application/pdf", Data: []byte("%PDF-1.4")}},
	}
	_, err := c.Generate(context.Background(), prompt, llm.ExtractionSchema())
	require.NoError(t, err)

	msgs := seen["messages"].([]any)
	require.Len(t, msgs, 3)
	user := msgs[1].(map[string]any)
	parts := user["content"].([]any)
	require.Len(t, parts, 2)
	assert.Equal(t, "file", parts[1].(map[string]any)["type"])
}

func TestGenerateSurfacesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()
	c := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL}, nil)

	_, err := c.Generate(context.Background(), llm.Prompt{Text: "x"}, llm.DimensionSchema())
	var httpErr *llm.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusTooManyRequests, httpErr.Status)
}

func TestOpenAIClientHasNoBatchCapability(t *testing.T) {
	_, err := llm.AsBatch(NewClient(Config{APIKey: "k"}, nil))
	assert.ErrorIs(t, err, llm.ErrBatchUnsupported)
}
