package search

import (
	"context"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/text/language"

	"github.com/satriahrh/cocoa-fruit/gateway/domain"
)

const (
	DefaultDuckDuckGoURL = "https://api.duckduckgo.com"
	duckDuckGoTopics     = 5
)

// DuckDuckGo queries the instant-answer API: the abstract plus the first
// related topics.
type DuckDuckGo struct {
	cfg config
}

func NewDuckDuckGo(opts ...Option) *DuckDuckGo {
	return &DuckDuckGo{cfg: newConfig(DefaultDuckDuckGoURL, opts)}
}

func (d *DuckDuckGo) Name() string { return "duckduckgo" }

func (d *DuckDuckGo) Search(ctx context.Context, query string, _ language.Tag) ([]domain.SearchResult, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("no_html", "1")
	params.Set("skip_disambig", "1")

	body, err := d.cfg.getJSON(ctx, d.cfg.baseURL+"/?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var results []domain.SearchResult
	doc := gjson.Parse(body)
	if abstract := doc.Get("AbstractText").String(); abstract != "" {
		if link := doc.Get("AbstractURL").String(); link != "" {
			results = append(results, result(doc.Get("Heading").String(), abstract, link))
		}
	}

	topics := 0
	doc.Get("RelatedTopics").ForEach(func(_, topic gjson.Result) bool {
		if topics == duckDuckGoTopics {
			return false
		}
		text := topic.Get("Text").String()
		link := topic.Get("FirstURL").String()
		if text == "" || link == "" {
			return true
		}
		title, _, _ := strings.Cut(text, " - ")
		results = append(results, result(title, text, link))
		topics++
		return true
	})
	return results, nil
}
