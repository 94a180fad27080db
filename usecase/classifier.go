package usecase

import (
	"regexp"
	"unicode"

	"golang.org/x/text/language"

	"github.com/satriahrh/cocoa-fruit/gateway/domain"
)

type Category string

const (
	CategoryCode      Category = "code"
	CategoryVision    Category = "vision"
	CategoryReasoning Category = "reasoning"
	CategoryGeneral   Category = "general"
)

// Classifier maps input text onto a topic category.
type Classifier interface {
	Classify(text string) Category
}

var arabicScript = &unicode.RangeTable{
	R16: []unicode.Range16{{Lo: 0x0600, Hi: 0x06FF, Stride: 1}},
}

// DetectLocale returns Arabic when text contains any rune of the Arabic
// block, English otherwise.
func DetectLocale(text string) language.Tag {
	for _, r := range text {
		if unicode.Is(arabicScript, r) {
			return language.Arabic
		}
	}
	return language.English
}

type categoryRule struct {
	category Category
	pattern  *regexp.Regexp
}

// KeywordClassifier matches ordered keyword rules; the first match wins.
type KeywordClassifier struct {
	rules []categoryRule
}

func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{
		rules: []categoryRule{
			{CategoryCode, regexp.MustCompile(`(?i)\b(code|function|class|variable|python|javascript|typescript|react|node|api|debug|error|fix)\b`)},
			{CategoryVision, regexp.MustCompile(`(?i)\b(image|picture|photo|see|look|analyze|visual|describe)\b`)},
			{CategoryReasoning, regexp.MustCompile(`(?i)\b(analyze|compare|explain|why|how|reason|think|detailed)\b`)},
		},
	}
}

func (c *KeywordClassifier) Classify(text string) Category {
	for _, rule := range c.rules {
		if rule.pattern.MatchString(text) {
			return rule.category
		}
	}
	return CategoryGeneral
}

// CategoryTable is the "auto" dispatch table from category to the candidate
// tried first.
type CategoryTable map[Category]domain.Candidate

func DefaultCategoryTable() CategoryTable {
	return CategoryTable{
		CategoryCode:      "google/gemini-2.0-flash-exp:free",
		CategoryVision:    "google/gemini-2.0-flash-exp:free",
		CategoryReasoning: "google/gemini-2.0-flash-thinking-exp:free",
		CategoryGeneral:   "google/gemini-2.0-flash-exp:free",
	}
}

// Lookup returns the candidate for category, falling back to the general
// entry.
func (t CategoryTable) Lookup(category Category) (domain.Candidate, bool) {
	if c, ok := t[category]; ok && c != "" {
		return c, true
	}
	c, ok := t[CategoryGeneral]
	return c, ok && c != ""
}

// AutoSelector resolves the "auto" candidate.
type AutoSelector struct {
	Classifier Classifier
	Table      CategoryTable
}

func (s AutoSelector) Select(text string) (domain.Candidate, bool) {
	return s.Table.Lookup(s.Classifier.Classify(text))
}
