package enrichment

import (
	"context"
	"sort"
	"strings"
	"unicode"
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {},
	"for": {}, "from": {}, "in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "the": {}, "this": {}, "that": {}, "to": {}, "vs": {}, "with": {},
	"am": {}, "pm": {}, "presents": {}, "featuring": {}, "feat": {}, "live": {},
}

// FrequencyExtractor ranks unigrams and bigrams by frequency weighted by
// phrase length. Stop words and bare numbers are never candidates, and a
// bigram never spans a stop word or a sentence break. Ties keep first
// occurrence order.
type FrequencyExtractor struct{}

// NewFrequencyExtractor creates a local keyword extractor.
func NewFrequencyExtractor() *FrequencyExtractor {
	return &FrequencyExtractor{}
}

type candidate struct {
	phrase string
	first  int
	count  int
	words  int
}

// Extract implements KeywordExtractor.
func (f *FrequencyExtractor) Extract(_ context.Context, text string, topN int) ([]string, error) {
	byPhrase := map[string]*candidate{}
	order := 0

	add := func(phrase string, words int) {
		c, ok := byPhrase[phrase]
		if !ok {
			c = &candidate{phrase: phrase, first: order, words: words}
			byPhrase[phrase] = c
			order++
		}

		c.count++
	}

	for _, sentence := range splitSentences(text) {
		var prev string

		for _, tok := range tokenize(sentence) {
			if !usable(tok) {
				prev = ""

				continue
			}

			add(tok, 1)

			if prev != "" {
				add(prev+" "+tok, 2)
			}

			prev = tok
		}
	}

	ranked := make([]*candidate, 0, len(byPhrase))
	for _, c := range byPhrase {
		ranked = append(ranked, c)
	}

	sort.Slice(ranked, func(i, j int) bool {
		si, sj := ranked[i].count*ranked[i].words, ranked[j].count*ranked[j].words
		if si != sj {
			return si > sj
		}

		return ranked[i].first < ranked[j].first
	})

	out := make([]string, 0, topN)
	for _, c := range ranked {
		if len(out) == topN {
			break
		}

		out = append(out, c.phrase)
	}

	return out, nil
}

func splitSentences(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return strings.ContainsRune(".,;:|!?\n", r)
	})
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\'' && r != '&'
	})
}

func usable(tok string) bool {
	if len([]rune(tok)) < 2 {
		return false
	}

	if _, stop := stopWords[tok]; stop {
		return false
	}

	return strings.IndexFunc(tok, unicode.IsLetter) >= 0
}
