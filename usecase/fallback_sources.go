package usecase

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/satriahrh/cocoa-fruit/gateway/domain"
)

var (
	programmingBucket = regexp.MustCompile(`code|برمج|javascript|python|react|api|function|error|bug|كود`)
	academicBucket    = regexp.MustCompile(`research|study|paper|علمي|بحث|دراسة`)
	newsBucket        = regexp.MustCompile(`news|خبر|أخبار|breaking`)
	videoBucket       = regexp.MustCompile(`video|tutorial|شرح|how to`)
)

// Favicon returns the favicon URL used for every result of domain.
func Favicon(host string) string {
	return fmt.Sprintf("https://www.google.com/s2/favicons?domain=%s&sz=32", host)
}

// ExtractDomain returns the host of rawURL without a leading "www.", or
// rawURL itself when it does not parse.
func ExtractDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return rawURL
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}

func source(title, snippet, link, host string) domain.SearchResult {
	return domain.SearchResult{
		Title:   title,
		Snippet: snippet,
		URL:     link,
		Domain:  host,
		Favicon: Favicon(host),
	}
}

// FallbackSources synthesizes deterministic search-engine deep links for
// query. The result always holds at least the two general search engines.
func FallbackSources(query string) []domain.SearchResult {
	q := strings.ToLower(query)
	enc := escapeQuery(query)

	var sources []domain.SearchResult
	if programmingBucket.MatchString(q) {
		sources = append(sources,
			source("Stack Overflow - Programming Q&A", "Community-driven programming questions and answers",
				"https://stackoverflow.com/search?q="+enc, "stackoverflow.com"),
			source("GitHub - Code Repository", "Open source code examples and projects",
				"https://github.com/search?q="+enc, "github.com"),
			source("MDN Web Docs", "Web development documentation and tutorials",
				"https://developer.mozilla.org/en-US/search?q="+enc, "developer.mozilla.org"),
		)
	}
	if academicBucket.MatchString(q) {
		sources = append(sources,
			source("Google Scholar - Academic Research", "Academic papers and scholarly articles",
				"https://scholar.google.com/scholar?q="+enc, "scholar.google.com"),
			source("arXiv - Scientific Papers", "Open access scientific research papers",
				"https://arxiv.org/search/?query="+enc, "arxiv.org"),
		)
	}
	if newsBucket.MatchString(q) {
		sources = append(sources,
			source("Google News - Latest Headlines", "Breaking news and current events",
				"https://news.google.com/search?q="+enc, "news.google.com"),
		)
	}
	if videoBucket.MatchString(q) {
		sources = append(sources,
			source("YouTube - Video Tutorials", "Educational videos and tutorials",
				"https://www.youtube.com/results?search_query="+enc, "youtube.com"),
		)
	}

	return append(sources,
		source(fmt.Sprintf(`Google - Search for "%s"`, query), "Comprehensive web search results",
			"https://www.google.com/search?q="+enc, "google.com"),
		source("Bing - Search Results", "Alternative web search results",
			"https://www.bing.com/search?q="+enc, "bing.com"),
	)
}

// componentUnescape undoes the QueryEscape encodings that encodeURIComponent
// leaves alone: spaces become %20 and !'()* stay literal.
var componentUnescape = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// escapeQuery encodes q the way browsers' encodeURIComponent does.
func escapeQuery(q string) string {
	return componentUnescape.Replace(url.QueryEscape(q))
}
