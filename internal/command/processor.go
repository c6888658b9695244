// Package command rewrites spoken command phrases inside recognised text
// into their replacements — "comma" into ",", "new paragraph" into a blank
// line — so punctuation can be dictated instead of typed.
//
// Matching is word-boundary based and case-insensitive, with multi-word
// phrases matched greedily (longest phrase first). Because speech decoders
// routinely mangle short function words, a phonetic fallback is applied when
// no exact match exists: Double Metaphone candidate filtering ranked by
// Jaro-Winkler similarity, accepting only high-confidence matches so
// ordinary prose is never rewritten by accident.
package command

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/antzucaro/matchr"
)

const (
	// defaultPhoneticThreshold is the minimum Jaro-Winkler score for a
	// phrase that already matched phonetically (Double Metaphone overlap).
	defaultPhoneticThreshold = 0.80

	// defaultFuzzyThreshold is the minimum Jaro-Winkler score when no
	// phonetic overlap exists. Kept high: a false positive rewrites the
	// user's words.
	defaultFuzzyThreshold = 0.92
)

// rule is one compiled command phrase.
type rule struct {
	tokens      []string // lowercase phrase tokens
	codes       map[string]struct{}
	replacement string
}

// Option is a functional option for configuring a [Processor].
type Option func(*Processor)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically-matched phrase to be accepted. Default: 0.80.
func WithPhoneticThreshold(threshold float64) Option {
	return func(p *Processor) { p.phoneticThreshold = threshold }
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when no
// phonetic match is found. Default: 0.92.
func WithFuzzyThreshold(threshold float64) Option {
	return func(p *Processor) { p.fuzzyThreshold = threshold }
}

// WithoutFuzzy disables the phonetic fallback entirely; only exact
// word-boundary matches rewrite text.
func WithoutFuzzy() Option {
	return func(p *Processor) { p.exactOnly = true }
}

// Processor rewrites command phrases in utterance text. Safe for concurrent
// use; rules can be swapped at runtime via [Processor.UpdateRules] when the
// config file changes.
type Processor struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
	exactOnly         bool

	mu    sync.RWMutex
	rules []rule
}

// New returns a Processor compiled from phrases, a map of spoken phrase to
// replacement text.
func New(phrases map[string]string, opts ...Option) *Processor {
	p := &Processor{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(p)
	}
	p.UpdateRules(phrases)
	return p
}

// UpdateRules replaces the command set. Used by the config watcher so voice
// command edits apply without a restart.
func (p *Processor) UpdateRules(phrases map[string]string) {
	rules := make([]rule, 0, len(phrases))
	for phrase, replacement := range phrases {
		tokens := strings.Fields(strings.ToLower(phrase))
		if len(tokens) == 0 || replacement == "" {
			continue
		}
		rules = append(rules, rule{
			tokens:      tokens,
			codes:       metaphoneCodes(tokens),
			replacement: replacement,
		})
	}
	// Longest phrases first so "new paragraph" wins over "new".
	sort.SliceStable(rules, func(i, j int) bool {
		return len(rules[i].tokens) > len(rules[j].tokens)
	})

	p.mu.Lock()
	p.rules = rules
	p.mu.Unlock()
	slog.Debug("voice command rules updated", "count", len(rules))
}

// Process rewrites all command phrases in text and returns the result.
// Replacements that begin with punctuation attach to the preceding word
// without a space, so "hello comma world" becomes "hello, world".
func (p *Processor) Process(text string) string {
	if text == "" {
		return text
	}

	p.mu.RLock()
	rules := p.rules
	p.mu.RUnlock()
	if len(rules) == 0 {
		return text
	}

	words := strings.Fields(text)
	var sb strings.Builder

	for i := 0; i < len(words); {
		r, consumed := p.matchAt(rules, words, i)
		if r == nil {
			appendToken(&sb, words[i], false)
			i++
			continue
		}
		appendToken(&sb, r.replacement, true)
		i += consumed
	}

	out := sb.String()
	if out != text {
		slog.Debug("voice commands applied", "before", text, "after", out)
	}
	return out
}

// EnsureTrailingSpace appends a single space unless text already ends with
// whitespace, so consecutive utterances injected into an editor do not run
// together.
func EnsureTrailingSpace(text string) string {
	if text == "" {
		return text
	}
	switch text[len(text)-1] {
	case ' ', '\n', '\r', '\t':
		return text
	}
	return text + " "
}

// matchAt tries to match any rule against words starting at position i.
// Returns the matched rule and the number of tokens consumed, or nil.
func (p *Processor) matchAt(rules []rule, words []string, i int) (*rule, int) {
	for ri := range rules {
		r := &rules[ri]
		n := len(r.tokens)
		if i+n > len(words) {
			continue
		}
		if p.phraseMatches(r, words[i:i+n]) {
			return r, n
		}
	}
	return nil, 0
}

// phraseMatches reports whether the candidate token window matches the rule
// exactly or, failing that, phonetically.
func (p *Processor) phraseMatches(r *rule, window []string) bool {
	lowered := make([]string, len(window))
	exact := true
	for i, w := range window {
		lowered[i] = strings.ToLower(strings.TrimFunc(w, unicode.IsPunct))
		if lowered[i] != r.tokens[i] {
			exact = false
		}
	}
	if exact {
		return true
	}
	if p.exactOnly {
		return false
	}

	input := strings.Join(lowered, " ")
	phrase := strings.Join(r.tokens, " ")
	score := matchr.JaroWinkler(input, phrase, false)

	if codesOverlap(metaphoneCodes(lowered), r.codes) {
		return score >= p.phoneticThreshold
	}
	return score >= p.fuzzyThreshold
}

// appendToken writes tok to sb, joining with a space unless the token is a
// replacement that starts with attaching punctuation.
func appendToken(sb *strings.Builder, tok string, isReplacement bool) {
	if sb.Len() == 0 {
		sb.WriteString(tok)
		return
	}
	if isReplacement && attachesToPrevious(tok) {
		sb.WriteString(tok)
		return
	}
	// After a newline replacement the next word starts a fresh line; do
	// not insert a space after it.
	prev := sb.String()
	if !strings.HasSuffix(prev, "\n") {
		sb.WriteByte(' ')
	}
	sb.WriteString(tok)
}

// attachesToPrevious reports whether a replacement should glue to the
// preceding word, which is the case for punctuation like "," and "?" but
// not for newlines or plain words.
func attachesToPrevious(replacement string) bool {
	r := []rune(replacement)[0]
	return unicode.IsPunct(r) && r != '\n'
}

// metaphoneCodes returns the union of Double Metaphone codes for tokens.
func metaphoneCodes(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		pri, sec := matchr.DoubleMetaphone(t)
		if pri != "" {
			codes[pri] = struct{}{}
		}
		if sec != "" {
			codes[sec] = struct{}{}
		}
	}
	return codes
}

// codesOverlap returns true if the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}
