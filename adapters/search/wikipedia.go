package search

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/text/language"

	"github.com/satriahrh/cocoa-fruit/gateway/domain"
	"github.com/satriahrh/cocoa-fruit/gateway/utils/i18n"
)

const wikipediaPages = 2

// Wikipedia searches the Arabic or English encyclopedia depending on the
// query locale.
type Wikipedia struct {
	cfg config
}

// NewWikipedia builds the backend. Without WithBaseURL the host is
// https://<lang>.wikipedia.org.
func NewWikipedia(opts ...Option) *Wikipedia {
	return &Wikipedia{cfg: newConfig("", opts)}
}

func (w *Wikipedia) Name() string { return "wikipedia" }

func wikiLang(locale language.Tag) string {
	if i18n.Match(locale) == language.Arabic {
		return "ar"
	}
	return "en"
}

func (w *Wikipedia) Search(ctx context.Context, query string, locale language.Tag) ([]domain.SearchResult, error) {
	lang := wikiLang(locale)
	host := lang + ".wikipedia.org"
	base := w.cfg.baseURL
	if base == "" {
		base = "https://" + host
	}

	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "search")
	params.Set("srsearch", query)
	params.Set("format", "json")
	params.Set("srlimit", "3")

	body, err := w.cfg.getJSON(ctx, base+"/w/api.php?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var results []domain.SearchResult
	for _, page := range gjson.Get(body, "query.search").Array() {
		if len(results) == wikipediaPages {
			break
		}
		title := page.Get("title").String()
		if title == "" {
			continue
		}
		link := fmt.Sprintf("https://%s/wiki/%s", host, url.PathEscape(strings.ReplaceAll(title, " ", "_")))
		r := result(title, stripHTML(page.Get("snippet").String()), link)
		r.Domain = host
		results = append(results, r)
	}
	return results, nil
}
