package catalog

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/philippgille/chromem-go"
)

const defaultHashDims = 256

// HashEmbedding returns an offline embedding function: every lowercase word
// and its 4-char prefix is hashed into a fixed-size vector, then normalised.
// Texts that share vocabulary end up close, which is enough for catalogs whose
// descriptions reuse the same trade terms.
func HashEmbedding(dims int) chromem.EmbeddingFunc {
	if dims <= 0 {
		dims = defaultHashDims
	}
	return func(_ context.Context, text string) ([]float32, error) {
		vec := make([]float32, dims)
		for _, tok := range tokenize(text) {
			vec[bucket(tok, dims)] += 1
			if r := []rune(tok); len(r) > 4 {
				vec[bucket(string(r[:4])+"~", dims)] += 0.5
			}
		}
		normalize(vec)
		return vec, nil
	}
}

// NewEmbedding picks the embedding backend. "hash" (or no API key) keeps the
// index offline; anything else is treated as an OpenAI embedding model name.
func NewEmbedding(model, apiKey string) chromem.EmbeddingFunc {
	if model == "" || model == "hash" || apiKey == "" {
		return HashEmbedding(defaultHashDims)
	}
	return chromem.NewEmbeddingFuncOpenAI(apiKey, chromem.EmbeddingModelOpenAI(model))
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func bucket(tok string, dims int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(tok))
	return int(h.Sum32() % uint32(dims))
}

func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		// chromem rejects zero vectors in cosine similarity
		vec[0] = 1
		return
	}
	n := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= n
	}
}
