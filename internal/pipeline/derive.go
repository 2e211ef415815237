package pipeline

import (
	"sort"
	"strings"
	"unicode"

	"github.com/archivelab/testimony/internal/model"
)

const (
	summaryMaxChars = 500
	keyPhraseLimit  = 15
	minTokenLength  = 4
	minStemLength   = 3
)

// stopwords are dropped before key-phrase counting. Tokens shorter than
// minTokenLength never reach this table.
var stopwords = map[string]struct{}{
	"about": {}, "after": {}, "again": {}, "also": {}, "been": {},
	"before": {}, "being": {}, "between": {}, "both": {}, "came": {},
	"could": {}, "does": {}, "each": {}, "even": {}, "every": {},
	"from": {}, "have": {}, "having": {}, "here": {}, "into": {},
	"just": {}, "like": {}, "many": {}, "more": {}, "most": {},
	"much": {}, "never": {}, "only": {}, "other": {}, "over": {},
	"said": {}, "same": {}, "some": {}, "such": {}, "than": {},
	"that": {}, "their": {}, "them": {}, "then": {}, "there": {},
	"these": {}, "they": {}, "this": {}, "those": {}, "through": {},
	"time": {}, "under": {}, "very": {}, "were": {}, "what": {},
	"when": {}, "where": {}, "which": {}, "while": {}, "will": {},
	"with": {}, "would": {}, "your": {},
}

// stemSuffixes are tried in order; the first that leaves a stem of at least
// minStemLength characters wins.
var stemSuffixes = []string{"ies", "ing", "es", "ed", "s"}

// Summarize derives the short preview text: the first summaryMaxChars
// characters of the first non-empty content field, in priority order
// title > full testimony > description > transcript.
func Summarize(t *model.Testimony) string {
	for _, text := range []string{t.Title, t.FullTestimony, t.Description, t.Transcript} {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		runes := []rune(text)
		if len(runes) > summaryMaxChars {
			runes = runes[:summaryMaxChars]
		}
		return string(runes)
	}
	return ""
}

// KeyPhrases extracts up to keyPhraseLimit representative terms from the
// testimony's combined text, by stem frequency. Counting happens on stems
// so inflected forms pool together; the shortest surface form seen for a
// stem represents it in the output. Ties break by count descending, then
// alphabetically, so the result is deterministic.
func KeyPhrases(t *model.Testimony) []string {
	text := strings.Join([]string{t.Title, t.Description, t.FullTestimony, t.Transcript}, " ")

	counts := make(map[string]int)
	surface := make(map[string]string)
	for _, token := range tokenize(text) {
		st := stem(token)
		counts[st]++
		if cur, ok := surface[st]; !ok || len(token) < len(cur) {
			surface[st] = token
		}
	}

	stems := make([]string, 0, len(counts))
	for st := range counts {
		stems = append(stems, st)
	}
	sort.Slice(stems, func(i, j int) bool {
		if counts[stems[i]] != counts[stems[j]] {
			return counts[stems[i]] > counts[stems[j]]
		}
		return surface[stems[i]] < surface[stems[j]]
	})

	if len(stems) > keyPhraseLimit {
		stems = stems[:keyPhraseLimit]
	}

	phrases := make([]string, 0, len(stems))
	for _, st := range stems {
		phrases = append(phrases, surface[st])
	}
	return phrases
}

// tokenize lowercases, strips everything that is not a letter or digit, and
// drops short tokens and stopwords.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) < minTokenLength {
			continue
		}
		if _, skip := stopwords[f]; skip {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// stem applies a fixed suffix-stripping pass. Intentionally crude: it only
// needs to pool trivially inflected forms, not be linguistically correct.
func stem(token string) string {
	for _, suffix := range stemSuffixes {
		if !strings.HasSuffix(token, suffix) {
			continue
		}
		st := token[:len(token)-len(suffix)]
		if len(st) >= minStemLength {
			return st
		}
	}
	return token
}
