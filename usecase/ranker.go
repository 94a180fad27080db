package usecase

import (
	"regexp"
	"sort"
	"strings"

	"github.com/satriahrh/cocoa-fruit/gateway/domain"
)

var (
	programmingQuery = regexp.MustCompile(`code|برمج|javascript|python`)
	codeExampleQuery = regexp.MustCompile(`code|برمج|example`)
)

// Score returns the heuristic relevance of one result for query.
func Score(r domain.SearchResult, query string) int {
	q := strings.ToLower(query)
	d := strings.ToLower(r.Domain)

	score := 0
	if strings.Contains(d, "wikipedia") {
		score += 10
	}
	if strings.Contains(d, "mozilla.org") || strings.Contains(d, "developer") {
		score += 8
	}
	if strings.Contains(d, "stackoverflow") && programmingQuery.MatchString(q) {
		score += 9
	}
	if strings.Contains(d, "github") && codeExampleQuery.MatchString(q) {
		score += 7
	}
	if strings.Contains(strings.ToLower(r.Title), q) {
		score += 5
	}
	return score
}

// Rank scores every result and returns a copy sorted by descending score.
// Equal scores keep their input order.
func Rank(results []domain.SearchResult, query string) []domain.SearchResult {
	ranked := make([]domain.SearchResult, len(results))
	for i, r := range results {
		r.Score = Score(r, query)
		ranked[i] = r
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}
