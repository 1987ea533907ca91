package naming

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var testTokens = []string{"Qwen", "GPT", "Llama", "DeepSeek", "Gemma"}

func TestParse_SeparatorSplit(t *testing.T) {
	r := NewResolver(testTokens)

	cases := []struct {
		name         string
		manufacturer string
		model        string
	}{
		{"Qwen_ChatGLM-7B", "Qwen", "ChatGLM-7B"},
		{"DeepSeek_R1-Distill", "DeepSeek", "R1-Distill"},
		{"Llama-3.1-70B", "Llama", "3.1-70B"},
		{"gemma_2b-it", "Gemma", "2b-it"},
	}

	for _, tc := range cases {
		id := r.Parse(tc.name)
		assert.Equal(t, tc.manufacturer, id.Manufacturer, tc.name)
		assert.Equal(t, tc.model, id.Model, tc.name)
		assert.Equal(t, tc.name, id.FullName, tc.name)
	}
}

func TestParse_LetterPrefixSplit(t *testing.T) {
	r := NewResolver(testTokens)

	id := r.Parse("Qwen3-VL-8B-Instruct-FP8-Static")
	assert.Equal(t, "Qwen", id.Manufacturer)
	assert.Equal(t, "3-VL-8B-Instruct-FP8-Static", id.Model)
}

func TestParse_LetterPrefixMultibyte(t *testing.T) {
	r := NewResolver([]string{"Qwen", "深度求索"})

	// Byte-wise scanning would stop inside the first multibyte character.
	id := r.Parse("深度求索7B")
	assert.Equal(t, "深度求索", id.Manufacturer)
	assert.Equal(t, "7B", id.Model)

	// A non-ASCII letter run that matches no token still falls through
	// cleanly instead of producing a truncated prefix.
	id = r.Parse("智谱4-9B")
	assert.Equal(t, Other, id.Manufacturer)
	assert.Equal(t, "智谱4-9B", id.Model)
}

func TestParse_UnknownFallsBackToOther(t *testing.T) {
	r := NewResolver(testTokens)

	cases := []string{
		"Mistral_7B-Instruct", // known separator, unknown token
		"somefolder",
		"",
		"QwenX_7B", // token must match the whole leading letter run
	}

	for _, name := range cases {
		id := r.Parse(name)
		assert.Equal(t, Other, id.Manufacturer, name)
		assert.Equal(t, name, id.Model, name)
	}
}

func TestParse_NoPartialTokenMatch(t *testing.T) {
	r := NewResolver(testTokens)

	// "Qwenx" leads the name but is not the Qwen token.
	id := r.Parse("Qwenx7B")
	assert.Equal(t, Other, id.Manufacturer)

	// Empty tokens in the configured set never match anything.
	r = NewResolver([]string{"", "  ", "Qwen"})
	id = r.Parse("model-thing")
	assert.Equal(t, Other, id.Manufacturer)
}

func TestParse_ClassIndependentOfManufacturer(t *testing.T) {
	r := NewResolver(testTokens)

	assert.Equal(t, ClassEmbedding, r.Parse("foo_Embedding_bar").Class)
	assert.Equal(t, ClassEmbedding, r.Parse("Qwen_Embedding-7B").Class)
	assert.Equal(t, ClassReranker, r.Parse("bge-ReRanker-v2").Class)
	assert.Equal(t, ClassReranker, r.Parse("Qwen_rerank-base").Class)
	assert.Equal(t, ClassLLM, r.Parse("Qwen_ChatGLM-7B").Class)

	// Two-axis classification: manufacturer and class resolve independently.
	id := r.Parse("Qwen_Embedding-7B")
	assert.Equal(t, "Qwen", id.Manufacturer)
	assert.Equal(t, ClassEmbedding, id.Class)
}

func TestIdentityKey(t *testing.T) {
	r := NewResolver(testTokens)

	id := r.Parse("Qwen_ChatGLM-7B")
	assert.Equal(t, "Qwen_ChatGLM-7B", id.Key())
}
