package sanitizer

import (
	"encoding/base64"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	s := New()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"trims", "  hello  ", "hello"},
		{"script block", "hi<script>alert('x')</script> there", "hi there"},
		{"multiline script", "a<SCRIPT type=\"x\">\nboom()\n</SCRIPT>b", "ab"},
		{"tags", "<b>bold</b> and <a href=\"#\">link</a>", "bold and link"},
		{"self closing", "line<br/>break<!-- note -->", "linebreak"},
		{"unclosed script", "keep<script>steal()", "keep"},
		{"generics", "How do I use Map<String, Integer> in Java?", "How do I use Map<String, Integer> in Java?"},
		{"comparison", "is x < 5 and y > 3 true?", "is x < 5 and y > 3 true?"},
		{"tight comparison", "if a<b and c>d then", "if a<b and c>d then"},
		{"type parameters", "List<T> and Foo<A> and Array<Object>", "List<T> and Foo<A> and Array<Object>"},
		{"trailing angle", "is x<y true?", "is x<y true?"},
		{"entities kept", "fish &amp; chips", "fish &amp; chips"},
		{"control chars", "a\x00b\x07c\td\ne", "abc\td\ne"},
		{"nfkc", "ﬁle １２３", "file 123"},
		{"arabic untouched", "مرحبا بك", "مرحبا بك"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Sanitize(tt.in))
		})
	}
}

func TestSanitizeCapsLength(t *testing.T) {
	out := New().Sanitize(strings.Repeat("م", DefaultMaxRunes+50))
	assert.Equal(t, DefaultMaxRunes, utf8.RuneCountInString(out))
}

func TestValidateImage(t *testing.T) {
	s := New()
	png := base64.StdEncoding.EncodeToString([]byte("\x89PNG\r\n\x1a\nfake"))

	assert.True(t, s.ValidateImage("data:image/png;base64,"+png))
	assert.True(t, s.ValidateImage("data:image/webp;base64,"+png))
	assert.False(t, s.ValidateImage("data:image/svg+xml;base64,"+png))
	assert.False(t, s.ValidateImage("data:text/plain;base64,"+png))
	assert.False(t, s.ValidateImage("https://example.com/cat.png"))
	assert.False(t, s.ValidateImage("data:image/png;base64,%%%"))
	assert.False(t, s.ValidateImage("data:image/png;base64,abc"))

	small := &Sanitizer{maxRunes: DefaultMaxRunes, maxImageBytes: 4}
	assert.False(t, small.ValidateImage("data:image/png;base64,"+png))
}
