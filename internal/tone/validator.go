// Package tone checks generated Japanese copy against the product's voice
// guidelines: invitations, never commands; no blame, no urgency pressure.
package tone

import (
	"regexp"
	"strings"
)

// Violation kinds.
const (
	ViolationForbiddenWord    = "FORBIDDEN_WORD"
	ViolationForbiddenPattern = "FORBIDDEN_PATTERN"
)

// Violation describes one tone-rule hit in a piece of text.
type Violation struct {
	Kind     string `json:"kind"`
	Match    string `json:"match"`
	Field    string `json:"field"`
	Position int    `json:"position"` // rune offset of the match
}

// Imperative, blaming, or pressuring vocabulary. Any occurrence fails.
var forbiddenWords = []string{
	"すべき",
	"しなさい",
	"しなければならない",
	"する必要がある",
	"必ず",
	"絶対",
	"サボ",
	"サボっ",
	"怠け",
	"怠っ",
	"ダメ",
	"駄目",
	"失敗",
	"失敗した",
	"今すぐ",
	"すぐに",
	"直ちに",
}

// Judgmental or pressuring phrasings that single words miss.
var forbiddenPatterns = []*regexp.Regexp{
	regexp.MustCompile(`あなたは.{0,20}(だ|です|ですね)`),
	regexp.MustCompile(`に違いない`),
	regexp.MustCompile(`に決まって`),
	regexp.MustCompile(`今すぐ.{0,10}しましょう$`),
	regexp.MustCompile(`すぐに.{0,10}しましょう$`),
}

// Check scans text and returns every violation found. Field labels the
// violations (e.g. "title", "message") for logging.
func Check(field, text string) []Violation {
	var out []Violation

	for _, w := range forbiddenWords {
		idx := strings.Index(text, w)
		if idx < 0 {
			continue
		}
		out = append(out, Violation{
			Kind:     ViolationForbiddenWord,
			Match:    w,
			Field:    field,
			Position: len([]rune(text[:idx])),
		})
	}

	for _, p := range forbiddenPatterns {
		loc := p.FindStringIndex(text)
		if loc == nil {
			continue
		}
		out = append(out, Violation{
			Kind:     ViolationForbiddenPattern,
			Match:    text[loc[0]:loc[1]],
			Field:    field,
			Position: len([]rune(text[:loc[0]])),
		})
	}

	return out
}

// CheckCopy validates a title/message pair plus any option labels.
func CheckCopy(title, message string, optionLabels []string) []Violation {
	out := Check("title", title)
	out = append(out, Check("message", message)...)
	for _, label := range optionLabels {
		out = append(out, Check("option", label)...)
	}
	return out
}

// RepairInstruction summarizes the violations for a rewrite request sent back
// to the model.
func RepairInstruction(violations []Violation) string {
	if len(violations) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("以下の表現はトーンガイドラインに違反しています。命令形・断定・急かす表現を避け、提案の形に書き直してください:\n")
	for _, v := range violations {
		b.WriteString("- ")
		b.WriteString(v.Field)
		b.WriteString(": 「")
		b.WriteString(v.Match)
		b.WriteString("」\n")
	}
	return b.String()
}
