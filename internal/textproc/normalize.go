package textproc

import (
	"regexp"
	"strings"
)

// The speech engine reads raw whitespace, slashes and stray spacing between
// Japanese and Latin runs literally, so every dialogue line passes through
// Normalize before it is persisted or synthesized.

var (
	whitespaceRun = regexp.MustCompile(`\s+`)

	spaceBeforePunct = regexp.MustCompile(`\s+([、。！？…」』）】])`)
	spaceAfterOpen   = regexp.MustCompile(`([「『（【])\s+`)

	politenessRun = regexp.MustCompile(`(でしょう|ましょう|です|ます)(?:[/／・](?:でしょう|ましょう|です|ます))+`)
	politenessSep = regexp.MustCompile(`[/／・]`)

	slashReplacer = strings.NewReplacer("/", "スラッシュ", "／", "スラッシュ")
)

// Normalize applies the full chain of speech-safety transforms in order:
// whitespace collapse, inter-script space removal, punctuation spacing
// repair, politeness-marker run splitting and slash substitution.
// It is a total function and idempotent.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	s := strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
	s = removeInterScriptSpaces(s)
	s = spaceBeforePunct.ReplaceAllString(s, "$1")
	s = spaceAfterOpen.ReplaceAllString(s, "$1")
	s = joinPolitenessRuns(s)
	s = slashReplacer.Replace(s)
	return s
}

// isNative reports whether r belongs to the document's native script range
// (hiragana, katakana, CJK ideographs).
func isNative(r rune) bool {
	return (r >= 0x3040 && r <= 0x30ff) || (r >= 0x3400 && r <= 0x9fff)
}

func isASCIIAlpha(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

// removeInterScriptSpaces drops the single spaces that whitespace collapse
// leaves between adjacent native-script characters, and between a
// native-script character and a Latin letter or digit on either side.
// Spaces between two Latin letters are kept.
func removeInterScriptSpaces(s string) string {
	runes := []rune(s)
	out := make([]rune, 0, len(runes))
	for i, r := range runes {
		if r == ' ' && i > 0 && i < len(runes)-1 {
			prev, next := runes[i-1], runes[i+1]
			if shouldDropSpace(prev, next) {
				continue
			}
		}
		out = append(out, r)
	}
	return string(out)
}

func shouldDropSpace(prev, next rune) bool {
	switch {
	case (isNative(prev) || isDigit(prev)) && (isNative(next) || isDigit(next)):
		return true
	case isNative(prev) && (isASCIIAlpha(next) || isDigit(next)):
		return true
	case (isASCIIAlpha(prev) || isDigit(prev)) && isNative(next):
		return true
	}
	return false
}

// joinPolitenessRuns rewrites lazy alternative endings such as "です/ます"
// into separate clauses joined by a native comma, so the slash is never
// spoken. Runs of two or more markers separated by a slash or middle dot
// become "です、ます".
func joinPolitenessRuns(s string) string {
	return politenessRun.ReplaceAllStringFunc(s, func(run string) string {
		parts := politenessSep.Split(run, -1)
		return strings.Join(parts, "、")
	})
}
