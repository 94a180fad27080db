package prompt

import (
	"strings"

	"golang.org/x/text/language"

	"github.com/satriahrh/cocoa-fruit/gateway/domain"
	"github.com/satriahrh/cocoa-fruit/gateway/utils/i18n"
)

type sections struct {
	persona      string
	voice        string
	text         string
	deepThinking string
	enhanced     string
	focus        map[domain.FocusMode]string
}

var arabic = sections{
	persona: "أنت مساعد ذكي محترف ومفيد، تتقن البرمجة والعلوم والتاريخ واللغات والكتابة.",
	voice: `المستخدم يتحدث معك صوتياً:
- أجب بلغة محادثة بسيطة بدون تنسيق أو قوائم
- كن مختصراً ومباشراً
- رد على التحية بتحية مختصرة واسأل كيف يمكنك المساعدة`,
	text: `تنسيق الرد:
- استخدم Markdown لتنظيم الإجابة
- استخدم كتل الكود عند الحاجة
- ابدأ بإجابة مباشرة ثم التفاصيل`,
	deepThinking: "فكر خطوة بخطوة قبل الإجابة، وحلل المسألة من عدة زوايا واذكر الافتراضات.",
	enhanced:     "قدم تحليلاً معمقاً: الأسباب والنتائج والمقارنات والتوصيات العملية.",
	focus: map[domain.FocusMode]string{
		domain.FocusAcademic: "ركز على الدقة العلمية واذكر المصادر والمفاهيم الأكاديمية.",
		domain.FocusWriting:  "ركز على جودة الكتابة والأسلوب وسلامة اللغة.",
		domain.FocusCode:     "ركز على كتابة كود نظيف وموثق مع شرح المنطق وأفضل الممارسات.",
	},
}

var english = sections{
	persona: "You are a professional, helpful assistant skilled in programming, science, history, languages and writing.",
	voice: `The user is talking to you by voice:
- Answer in plain conversational language without formatting or lists
- Keep answers short and direct
- Reply to greetings briefly and ask how you can help`,
	text: `Response format:
- Use Markdown to organize the answer
- Use code blocks when needed
- Lead with the direct answer, then the details`,
	deepThinking: "Think step by step before answering, analyze the problem from several angles and state your assumptions.",
	enhanced:     "Give an in-depth analysis: causes, consequences, comparisons and practical recommendations.",
	focus: map[domain.FocusMode]string{
		domain.FocusAcademic: "Focus on scientific accuracy and cite sources and academic concepts.",
		domain.FocusWriting:  "Focus on writing quality, style and correct language.",
		domain.FocusCode:     "Focus on clean, documented code and explain the logic and best practices.",
	},
}

// Builder assembles the system prompt from localized sections.
type Builder struct{}

func NewBuilder() Builder { return Builder{} }

var _ domain.PromptBuilder = Builder{}

func (Builder) Build(opts domain.PromptOptions) string {
	s := english
	if i18n.Match(opts.Locale) == language.Arabic {
		s = arabic
	}

	parts := []string{s.persona}
	if opts.VoiceMode {
		parts = append(parts, s.voice)
	} else {
		parts = append(parts, s.text)
	}
	if opts.DeepThinking {
		parts = append(parts, s.deepThinking)
	}
	if opts.EnhancedAnalysis {
		parts = append(parts, s.enhanced)
	}
	if focus, ok := s.focus[opts.Focus]; ok {
		parts = append(parts, focus)
	}
	return strings.Join(parts, "\n\n")
}
