package sanitizer

import (
	"bytes"
	"encoding/base64"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/unicode/norm"

	"github.com/satriahrh/cocoa-fruit/gateway/domain"
)

const (
	DefaultMaxRunes      = 10000
	DefaultMaxImageBytes = 5 << 20
)

var imageURL = regexp.MustCompile(`^data:image/(png|jpeg|jpg|gif|webp);base64,([A-Za-z0-9+/=]+)$`)

// contentTags are dropped together with everything up to their end tag,
// whatever their case or attributes.
var contentTags = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Iframe:   true,
	atom.Noscript: true,
}

// markupTags are dropped when written as lowercase markup.
var markupTags = map[atom.Atom]bool{
	atom.A: true, atom.Abbr: true, atom.Audio: true, atom.B: true, atom.Base: true,
	atom.Blockquote: true, atom.Body: true, atom.Br: true, atom.Button: true,
	atom.Code: true, atom.Div: true, atom.Em: true, atom.Embed: true, atom.Form: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Head: true, atom.Hr: true, atom.Html: true, atom.I: true, atom.Img: true,
	atom.Input: true, atom.Label: true, atom.Li: true, atom.Link: true, atom.Meta: true,
	atom.Object: true, atom.Ol: true, atom.Option: true, atom.P: true, atom.Pre: true,
	atom.S: true, atom.Select: true, atom.Small: true, atom.Source: true, atom.Span: true,
	atom.Strong: true, atom.Sub: true, atom.Sup: true, atom.Svg: true, atom.Table: true,
	atom.Tbody: true, atom.Td: true, atom.Textarea: true, atom.Th: true, atom.Thead: true,
	atom.Title: true, atom.Tr: true, atom.U: true, atom.Ul: true, atom.Video: true,
}

type Sanitizer struct {
	maxRunes      int
	maxImageBytes int
}

func New() *Sanitizer {
	return &Sanitizer{maxRunes: DefaultMaxRunes, maxImageBytes: DefaultMaxImageBytes}
}

var _ domain.Sanitizer = (*Sanitizer)(nil)

// Sanitize normalizes text to NFKC, drops script blocks, HTML markup and
// control characters other than newline and tab, and caps the length.
func (s *Sanitizer) Sanitize(text string) string {
	text = norm.NFKC.String(text)
	text = stripMarkup(text)
	text = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, text)

	runes := []rune(text)
	if len(runes) > s.maxRunes {
		text = string(runes[:s.maxRunes])
	}
	return strings.TrimSpace(text)
}

// stripMarkup removes HTML elements, comments and script-like blocks. Text
// that only looks like a tag, such as Map<String, Integer> or x < 5, is kept
// byte for byte.
func stripMarkup(text string) string {
	z := html.NewTokenizer(strings.NewReader(text))
	var (
		out      strings.Builder
		consumed int
		skip     atom.Atom
	)
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			// An unterminated tag at the end of input is plain text.
			if skip == 0 && consumed < len(text) {
				out.WriteString(text[consumed:])
			}
			return out.String()
		}
		raw := z.Raw()
		consumed += len(raw)
		tok := z.Token()

		switch {
		case skip != 0:
			if tt == html.EndTagToken && tok.DataAtom == skip {
				skip = 0
			}
		case tt == html.CommentToken && bytes.HasPrefix(raw, []byte("<!--")):
		case isTag(tt) && isMarkup(tok, raw):
			if tt == html.StartTagToken && contentTags[tok.DataAtom] {
				skip = tok.DataAtom
			}
		default:
			out.Write(raw)
		}
	}
}

func isTag(tt html.TokenType) bool {
	return tt == html.StartTagToken || tt == html.EndTagToken || tt == html.SelfClosingTagToken
}

// isMarkup reports whether a tag token is real HTML rather than prose. Tags
// must be known elements spelled in lowercase with valued attributes, which
// leaves generics like List<T> and comparisons like a<b and c>d alone.
func isMarkup(tok html.Token, raw []byte) bool {
	if contentTags[tok.DataAtom] {
		return true
	}
	if !markupTags[tok.DataAtom] {
		return false
	}
	if !bytes.HasPrefix(bytes.TrimLeft(raw, "</"), []byte(tok.Data)) {
		return false
	}
	for _, attr := range tok.Attr {
		if attr.Val == "" {
			return false
		}
	}
	return true
}

// ValidateImage accepts base64 data URLs of common raster formats.
func (s *Sanitizer) ValidateImage(data string) bool {
	m := imageURL.FindStringSubmatch(data)
	if m == nil {
		return false
	}
	payload := m[2]
	if base64.StdEncoding.DecodedLen(len(payload)) > s.maxImageBytes+2 {
		return false
	}
	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return false
	}
	return len(decoded) > 0 && len(decoded) <= s.maxImageBytes
}
