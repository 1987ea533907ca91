package naming

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Class buckets a model by what it is used for on the card.
type Class string

const (
	ClassLLM       Class = "llm"
	ClassEmbedding Class = "embedding"
	ClassReranker  Class = "reranker"
)

// Other is the manufacturer assigned when no known token matches.
const Other = "Other"

// Identity is the parsed form of a model-asset folder name. It is derived
// purely from the name and immutable once computed.
type Identity struct {
	Manufacturer string
	Model        string
	Class        Class
	FullName     string
	SourcePath   string
}

// Key returns the manufacturer_model form used as a lookup key in the
// backend mapping artifact.
func (id Identity) Key() string {
	return id.Manufacturer + "_" + id.Model
}

// Resolver parses folder names against a fixed set of manufacturer tokens.
type Resolver struct {
	tokens []string
}

func NewResolver(tokens []string) *Resolver {
	cleaned := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t = strings.TrimSpace(t); t != "" {
			cleaned = append(cleaned, t)
		}
	}

	return &Resolver{tokens: cleaned}
}

// A rule attempts one way of splitting a folder name into manufacturer and
// model. Rules are evaluated in order; the first match wins.
type rule func(r *Resolver, name string) (manufacturer, model string, ok bool)

var rules = []rule{
	(*Resolver).splitOnSeparator,
	(*Resolver).splitOnLetterPrefix,
}

// Parse never fails: names with no recognizable structure resolve to the
// Other manufacturer with the full input as model name.
func (r *Resolver) Parse(name string) Identity {
	manufacturer, model := Other, name
	for _, match := range rules {
		if m, rest, ok := match(r, name); ok {
			manufacturer, model = m, rest
			break
		}
	}

	return Identity{
		Manufacturer: manufacturer,
		Model:        model,
		Class:        Classify(name),
		FullName:     name,
	}
}

// splitOnSeparator matches a known manufacturer token before the first
// underscore or, failing that, the first hyphen. The separator itself is
// stripped from the model name.
func (r *Resolver) splitOnSeparator(name string) (string, string, bool) {
	sep := ""
	if strings.Contains(name, "_") {
		sep = "_"
	} else if strings.Contains(name, "-") {
		sep = "-"
	} else {
		return "", "", false
	}

	head, rest, _ := strings.Cut(name, sep)
	if token, ok := r.knownToken(head); ok {
		return token, rest, true
	}

	return "", "", false
}

// splitOnLetterPrefix matches a manufacturer token glued directly to the
// rest of the name, e.g. "Qwen3-VL". The longest leading run of letters
// must equal a token exactly; partial matches inside a longer word do not
// count.
func (r *Resolver) splitOnLetterPrefix(name string) (string, string, bool) {
	i := 0
	for _, c := range name {
		if !unicode.IsLetter(c) {
			break
		}
		i += utf8.RuneLen(c)
	}
	if i == 0 || i == len(name) {
		return "", "", false
	}

	if token, ok := r.knownToken(name[:i]); ok {
		return token, name[i:], true
	}

	return "", "", false
}

// knownToken reports whether s equals a configured manufacturer token,
// returning the token's canonical spelling.
func (r *Resolver) knownToken(s string) (string, bool) {
	for _, t := range r.tokens {
		if strings.EqualFold(s, t) {
			return t, true
		}
	}

	return "", false
}

// Classify detects the model class by substring, independently of
// manufacturer detection.
func Classify(name string) Class {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "embedding"):
		return ClassEmbedding
	case strings.Contains(lower, "rerank"):
		return ClassReranker
	default:
		return ClassLLM
	}
}
