// Package i18n holds the user-facing messages the gateway returns, in every
// locale the classifier can detect.
package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

type Key string

const (
	AllModelsBusy    Key = "all_models_busy"
	RateLimited      Key = "rate_limited"
	InvalidRequest   Key = "invalid_request"
	InvalidImage     Key = "invalid_image"
	NotConfigured    Key = "not_configured"
	SearchFailed     Key = "search_failed"
	NoAnswer         Key = "no_answer"
	StreamFailed     Key = "stream_failed"
	InternalError    Key = "internal_error"
	DefaultAssistant Key = "default_assistant"
)

// Supported lists the locales with a full catalog, preferred first.
var Supported = []language.Tag{language.Arabic, language.English}

var matcher = language.NewMatcher(Supported)

var catalog = map[Key]map[language.Tag]string{
	AllModelsBusy: {
		language.Arabic:  "عذراً، جميع النماذج مشغولة حالياً. يرجى المحاولة بعد قليل.",
		language.English: "Sorry, all models are busy right now. Please try again shortly.",
	},
	RateLimited: {
		language.Arabic:  "لقد تجاوزت الحد المسموح من الطلبات. يرجى المحاولة لاحقاً.",
		language.English: "You have exceeded the allowed number of requests. Please try again later.",
	},
	InvalidRequest: {
		language.Arabic:  "طلب غير صالح",
		language.English: "Invalid request",
	},
	InvalidImage: {
		language.Arabic:  "صورة غير صالحة",
		language.English: "Invalid image",
	},
	NotConfigured: {
		language.Arabic:  "⚠️ لم يتم تكوين مفتاح API. الرجاء إضافة OPENROUTER_API_KEY في ملف .env\n\nللحصول على مفتاح مجاني: https://openrouter.ai/keys",
		language.English: "⚠️ The API key is not configured. Please add OPENROUTER_API_KEY to your .env file\n\nGet a free key at: https://openrouter.ai/keys",
	},
	SearchFailed: {
		language.Arabic:  "عذراً، حدث خطأ أثناء البحث. يرجى المحاولة مرة أخرى.",
		language.English: "Sorry, an error occurred during search. Please try again.",
	},
	NoAnswer: {
		language.Arabic:  "عذراً، لم أتمكن من إنشاء رد.",
		language.English: "Sorry, I could not generate a response.",
	},
	StreamFailed: {
		language.Arabic:  "عذراً، انقطع الرد أثناء البث. يرجى المحاولة مرة أخرى.",
		language.English: "Sorry, the response was interrupted. Please try again.",
	},
	InternalError: {
		language.Arabic:  "عذراً، حدث خطأ في معالجة طلبك.",
		language.English: "Sorry, an error occurred while processing your request.",
	},
	DefaultAssistant: {
		language.Arabic:  "أنت مساعد ذكي ومفيد.",
		language.English: "You are a smart and helpful assistant.",
	},
}

func init() {
	for key, byTag := range catalog {
		for tag, msg := range byTag {
			if err := message.SetString(tag, string(key), msg); err != nil {
				panic(err)
			}
		}
	}
}

// Match maps any tag onto the closest supported locale.
func Match(tag language.Tag) language.Tag {
	_, idx, _ := matcher.Match(tag)
	return Supported[idx]
}

// Text returns the message for key in the given locale.
func Text(tag language.Tag, key Key) string {
	return message.NewPrinter(Match(tag)).Sprintf(string(key))
}
