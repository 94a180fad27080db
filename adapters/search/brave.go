package search

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/tidwall/gjson"
	"golang.org/x/text/language"

	"github.com/satriahrh/cocoa-fruit/gateway/domain"
	"github.com/satriahrh/cocoa-fruit/gateway/utils/i18n"
)

const (
	DefaultBraveURL = "https://api.search.brave.com"
	braveResults    = 5
)

var errBraveNoKey = errors.New("brave search api key not configured")

// Brave uses the Brave Search web API. Without a key it fails every call,
// which the aggregator treats like any other backend failure.
type Brave struct {
	apiKey string
	cfg    config
}

func NewBrave(apiKey string, opts ...Option) *Brave {
	return &Brave{apiKey: apiKey, cfg: newConfig(DefaultBraveURL, opts)}
}

func (b *Brave) Name() string { return "brave" }

func (b *Brave) Search(ctx context.Context, query string, locale language.Tag) ([]domain.SearchResult, error) {
	if b.apiKey == "" {
		return nil, errBraveNoKey
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("count", "5")
	if i18n.Match(locale) == language.Arabic {
		params.Set("search_lang", "ar")
	}

	header := http.Header{}
	header.Set("X-Subscription-Token", b.apiKey)
	body, err := b.cfg.getJSON(ctx, b.cfg.baseURL+"/res/v1/web/search?"+params.Encode(), header)
	if err != nil {
		return nil, err
	}

	var results []domain.SearchResult
	for _, item := range gjson.Get(body, "web.results").Array() {
		if len(results) == braveResults {
			break
		}
		link := item.Get("url").String()
		if link == "" {
			continue
		}
		results = append(results, result(item.Get("title").String(), stripHTML(item.Get("description").String()), link))
	}
	return results, nil
}
