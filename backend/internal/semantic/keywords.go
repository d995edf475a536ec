package semantic

import (
	"regexp"
	"sort"
	"strings"
)

var (
	wordRegex = regexp.MustCompile(`\b[a-zA-Z]{3,}\b`)
	tagRegex  = regexp.MustCompile(`#([a-zA-Z0-9_/\-]+)`)
)

// stopWords are dropped before comparing notes
var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "or": {}, "but": {}, "in": {}, "on": {}, "at": {}, "to": {},
	"for": {}, "of": {}, "with": {}, "by": {}, "a": {}, "an": {}, "is": {}, "are": {},
	"was": {}, "were": {}, "been": {}, "be": {}, "have": {}, "has": {}, "had": {},
	"do": {}, "does": {}, "did": {}, "will": {}, "would": {}, "could": {}, "should": {},
	"may": {}, "might": {}, "this": {}, "that": {}, "these": {}, "those": {},
	"i": {}, "you": {}, "he": {}, "she": {}, "it": {}, "we": {}, "they": {},
}

// KeywordSet is the distinct keywords of a text
type KeywordSet map[string]struct{}

// ExtractKeywords lowercases text and keeps alphabetic tokens of 3+ letters that are not stop words
func ExtractKeywords(text string) KeywordSet {
	set := make(KeywordSet)
	for _, word := range wordRegex.FindAllString(strings.ToLower(text), -1) {
		if _, stop := stopWords[word]; stop {
			continue
		}
		set[word] = struct{}{}
	}
	return set
}

// Has reports whether word is in the set
func (k KeywordSet) Has(word string) bool {
	_, ok := k[word]
	return ok
}

// Intersect returns the shared keywords, sorted
func (k KeywordSet) Intersect(other KeywordSet) []string {
	small, large := k, other
	if len(small) > len(large) {
		small, large = large, small
	}
	shared := make([]string, 0)
	for word := range small {
		if large.Has(word) {
			shared = append(shared, word)
		}
	}
	sort.Strings(shared)
	return shared
}

// Jaccard returns |a ∩ b| / |a ∪ b|, or 0 when either set is empty
func Jaccard(a, b KeywordSet) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := len(a.Intersect(b))
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// ExtractTags returns the distinct #tags of a text in order of first appearance
func ExtractTags(content string) []string {
	var tags []string
	seen := make(map[string]bool)
	for _, m := range tagRegex.FindAllStringSubmatch(content, -1) {
		tag := m[1]
		if seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	return tags
}
