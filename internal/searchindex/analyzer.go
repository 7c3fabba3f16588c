package searchindex

import (
	"regexp"
	"strings"
)

// Synonyms is the configured {term: [synonyms]} expansion table of spec
// §4.7. Grounded on original_source/app/service/lang_analyzer/
// search_manager.py's my_synonyms literal: each matching token emits
// itself plus every configured synonym.
type Synonyms map[string][]string

// DefaultSynonyms reproduces the three-entry dictionary the original
// service shipped, kept for test observability and as the out-of-box
// default when no synonyms file is configured.
func DefaultSynonyms() Synonyms {
	return Synonyms{
		"휴대폰":    {"스마트폰", "핸드폰"},
		"노트":     {"문서", "기록"},
		"fastapi": {"파스트api", "백엔드"},
	}
}

// hangulRun matches a contiguous run of Hangul syllables; asciiWord
// matches ASCII letters/digits. Together they stand in for the
// original's Komoran noun extraction plus regexp-based ASCII/number
// extraction: lacking a Go Korean morphological analyzer anywhere in
// the retrieved stack, runs of Hangul are treated as noun-like tokens
// directly, which matches the original's behavior for the single-noun
// compounds its own test fixtures exercise (e.g. "스마트폰").
var (
	hangulRun = regexp.MustCompile(`[\x{AC00}-\x{D7A3}]+`)
	asciiWord = regexp.MustCompile(`[a-zA-Z0-9]+`)
)

// analyzer is the tokenizer | lowercase | synonym-expansion pipeline of
// spec §4.7, applied identically to indexed content and to search
// keywords so that analysis stays symmetric.
type analyzer struct {
	synonyms Synonyms
}

func newAnalyzer(syn Synonyms) *analyzer {
	if syn == nil {
		syn = Synonyms{}
	}
	return &analyzer{synonyms: syn}
}

// tokens runs the tokenizer, lowercase filter, and synonym expansion
// over text, returning a deduplicated token list.
func (a *analyzer) tokens(text string) []string {
	seen := make(map[string]bool)
	var out []string

	add := func(tok string) {
		if tok == "" || seen[tok] {
			return
		}
		seen[tok] = true
		out = append(out, tok)
	}

	for _, w := range hangulRun.FindAllString(text, -1) {
		add(w)
	}
	for _, w := range asciiWord.FindAllString(text, -1) {
		add(strings.ToLower(w))
	}

	// Synonym expansion: iterate a snapshot so newly-added synonyms
	// are not themselves re-expanded.
	base := append([]string(nil), out...)
	for _, tok := range base {
		for _, syn := range a.synonyms[tok] {
			add(syn)
		}
	}
	return out
}
