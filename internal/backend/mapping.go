package backend

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Mapping is the externally authored backend_list.yaml artifact, inverted
// into model-key → backend-tag form. The document maps each backend to its
// models, either as a YAML list or as one delimiter-separated string.
type Mapping struct {
	byKey map[string]Tag
}

// Backend names accepted in the artifact, normalized to tags.
var tagAliases = map[string]Tag{
	"flashattention":  TagFlashAttention,
	"flash-attention": TagFlashAttention,
	"flash_attention": TagFlashAttention,
	"flashinfer":      TagFlashInfer,
	"flash-infer":     TagFlashInfer,
	"flash_infer":     TagFlashInfer,
}

// Artifacts are authored by Chinese-speaking operators; full-width commas
// appear alongside ASCII ones.
var listSeparators = regexp.MustCompile(`[,，\s]+`)

// LoadMapping reads and inverts the mapping artifact. A missing file is an
// error; the caller decides whether auto-detection is even needed.
func LoadMapping(path string) (*Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read backend mapping: %w", err)
	}

	return ParseMapping(data)
}

func ParseMapping(data []byte) (*Mapping, error) {
	var raw map[string]yaml.Node
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse backend mapping: %w", err)
	}

	m := &Mapping{byKey: make(map[string]Tag)}
	for name, node := range raw {
		tag, ok := tagAliases[strings.ToLower(name)]
		if !ok {
			// Unknown backend sections are skipped, not fatal: the
			// artifact is versioned independently of this tool.
			continue
		}

		for _, model := range modelsFromNode(node) {
			m.byKey[normalizeKey(model)] = tag
		}
	}

	return m, nil
}

// Lookup finds the backend for a model key. Keys are compared in
// normalized form.
func (m *Mapping) Lookup(key string) (Tag, bool) {
	if key == "" {
		return "", false
	}

	tag, ok := m.byKey[normalizeKey(key)]
	return tag, ok
}

// Match relaxes Lookup to substring containment in either direction:
// an entry matches when it names a prefix family of the model or a longer
// variant of it. Keys are tried in sorted order so ties resolve the same
// way on every run.
func (m *Mapping) Match(name string) (Tag, bool) {
	needle := normalizeKey(name)
	if needle == "" {
		return "", false
	}

	if tag, ok := m.byKey[needle]; ok {
		return tag, true
	}

	keys := make([]string, 0, len(m.byKey))
	for key := range m.byKey {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if strings.Contains(needle, key) || strings.Contains(key, needle) {
			return m.byKey[key], true
		}
	}

	return "", false
}

// Len returns the number of model keys in the mapping.
func (m *Mapping) Len() int { return len(m.byKey) }

func modelsFromNode(node yaml.Node) []string {
	var models []string

	switch node.Kind {
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err == nil {
			models = list
		}
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err == nil {
			models = listSeparators.Split(s, -1)
		}
	}

	out := models[:0]
	for _, m := range models {
		if m = strings.TrimSpace(m); m != "" {
			out = append(out, m)
		}
	}

	return out
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
