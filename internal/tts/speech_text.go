package tts

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	speechURLPattern          = regexp.MustCompile(`https?://\S+`)
	speechMarkdownLinkPattern = regexp.MustCompile(`\[(.*?)\]\((.*?)\)`)
	speechEmphasis            = strings.NewReplacer("*", " ", "_", " ", "#", " ", "~", " ", "`", " ", "|", " ")
)

// SpeakableText strips markup, links and emoji that providers read out literally.
// It returns raw unchanged when nothing speakable would remain.
func SpeakableText(raw string) string {
	out := strings.TrimSpace(raw)
	if out == "" {
		return raw
	}
	out = speechMarkdownLinkPattern.ReplaceAllString(out, "$1")
	out = speechURLPattern.ReplaceAllString(out, " ")
	out = speechEmphasis.Replace(out)

	var b strings.Builder
	b.Grow(len(out))
	prevSpace := true
	for _, r := range out {
		switch {
		case r == '\u200d' || r == '\ufe0f' || r == '\u20e3':
			continue
		case unicode.IsSpace(r):
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
		case unicode.IsControl(r), unicode.In(r, unicode.So, unicode.Sk):
			continue
		default:
			b.WriteRune(r)
			prevSpace = false
		}
	}

	cleaned := strings.TrimSpace(b.String())
	if !strings.ContainsFunc(cleaned, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }) {
		return raw
	}
	return cleaned
}
