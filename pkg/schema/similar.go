package schema

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/agext/levenshtein"
)

// similarityFloor filters out suggestions that share too little with the query.
const similarityFloor = 0.5

// NameMatch is a candidate name with its similarity to a query in [0, 1].
type NameMatch struct {
	Name  string
	Score float64
}

// RankBySimilarity scores names against query using whole-string and
// token-wise Levenshtein similarity and returns up to limit matches above the
// floor, best first. Ties keep the input order.
func RankBySimilarity(query string, names []string, limit int) []NameMatch {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" || len(names) == 0 || limit <= 0 {
		return nil
	}
	queryTokens := tokenize(query)

	var results []NameMatch
	for _, name := range names {
		if name == "" {
			continue
		}
		score := similarity(query, queryTokens, name)
		if score >= similarityFloor {
			results = append(results, NameMatch{Name: name, Score: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// ClosestTags returns up to limit visible tags whose short form is close to
// name, for "did you mean" hints.
func (v *Vocabulary) ClosestTags(name string, limit int) []*TagEntry {
	prefix, rest := SplitPrefix(name)
	if i := strings.LastIndex(rest, "/"); i >= 0 {
		rest = rest[i+1:]
	}
	tags := v.searchScope(prefix)
	names := make([]string, len(tags))
	index := make(map[string]*TagEntry, len(tags))
	for i, t := range tags {
		names[i] = t.ShortForm
		index[t.ShortForm] = t
	}

	var out []*TagEntry
	for _, m := range RankBySimilarity(rest, names, limit) {
		out = append(out, index[m.Name])
	}
	return out
}

func similarity(query string, queryTokens map[string]bool, name string) float64 {
	lower := strings.ToLower(name)
	if query == lower {
		return 1.0
	}

	global := normalizedDistance(query, lower)

	nameTokens := tokenize(lower)
	total := 0.0
	for q := range queryTokens {
		best := 0.0
		if nameTokens[q] {
			best = 1.0
		} else {
			for n := range nameTokens {
				if s := normalizedDistance(q, n); s > best {
					best = s
				}
			}
		}
		total += best
	}
	tokenScore := 0.0
	if len(queryTokens) > 0 {
		tokenScore = total / float64(len(queryTokens))
	}
	return math.Max(global, tokenScore)
}

func normalizedDistance(a, b string) float64 {
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 0
	}
	s := 1.0 - float64(levenshtein.Distance(a, b, nil))/float64(maxLen)
	if s < 0 {
		return 0
	}
	return s
}

// tokenize splits on anything that is not a letter or digit.
func tokenize(s string) map[string]bool {
	tokens := make(map[string]bool)
	for _, tok := range strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		tokens[tok] = true
	}
	return tokens
}
