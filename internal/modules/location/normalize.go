// README: Location normalizer turning free-text place names into comparison keys.
package location

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize trims, strips diacritics, lower-cases, turns punctuation into
// separators and collapses whitespace: "  Nampúla-Cidade " -> "nampula cidade".
// It never fails; when the transform cannot run it returns the first comma
// segment of the input, trimmed and lower-cased.
func Normalize(text string) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = conservative(text)
		}
	}()

	// Chained transformers are stateful, so each call builds its own.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, strings.TrimSpace(text))
	if err != nil {
		return conservative(text)
	}
	return canonical(folded)
}

// Segments normalizes each comma-separated part of an address-like input,
// dropping parts that normalize to nothing.
func Segments(text string) []string {
	parts := strings.Split(text, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if k := Normalize(p); k != "" {
			out = append(out, k)
		}
	}
	return out
}

func canonical(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			pendingSpace = true
			continue
		}
		if pendingSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		pendingSpace = false
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

func conservative(text string) string {
	first, _, _ := strings.Cut(text, ",")
	return strings.ToLower(strings.TrimSpace(first))
}

// Memo caches Normalize results for the lifetime of one search request.
// It is not safe for concurrent use.
type Memo struct {
	keys map[string]string
}

func NewMemo() *Memo {
	return &Memo{keys: make(map[string]string)}
}

func (m *Memo) Normalize(text string) string {
	if k, ok := m.keys[text]; ok {
		return k
	}
	k := Normalize(text)
	m.keys[text] = k
	return k
}

// Len reports how many distinct inputs have been normalized.
func (m *Memo) Len() int {
	return len(m.keys)
}
