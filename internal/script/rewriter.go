package script

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strings"

	"github.com/eegflow/scriptcast/provider"
)

// Latin-script runs the speech engine cannot read. A run may start with
// digits when they bind to the letters (5G, 3D).
var latinRun = regexp.MustCompile(`[0-9]*[A-Za-z][A-Za-z0-9]*`)

// annotationSpan matches a reading annotation already present in the text.
var annotationSpan = regexp.MustCompile(`《[^》]*》`)

// knownReadings covers terms frequent enough that a model round trip is a
// waste. Multi-word keys are matched before single runs.
var knownReadings = map[string]string{
	"machine learning": "マシンラーニング",
	"deep learning":    "ディープラーニング",
	"open source":      "オープンソース",
	"AI":               "エーアイ",
	"API":              "エーピーアイ",
	"AWS":              "エーダブリューエス",
	"CLI":              "シーエルアイ",
	"CPU":              "シーピーユー",
	"CSS":              "シーエスエス",
	"DNA":              "ディーエヌエー",
	"EEG":              "イーイージー",
	"GPU":              "ジーピーユー",
	"GitHub":           "ギットハブ",
	"Google":           "グーグル",
	"HTML":             "エイチティーエムエル",
	"HTTP":             "エイチティーティーピー",
	"IoT":              "アイオーティー",
	"JSON":             "ジェイソン",
	"LLM":              "エルエルエム",
	"Linux":            "リナックス",
	"OSS":              "オーエスエス",
	"PDF":              "ピーディーエフ",
	"Python":           "パイソン",
	"SNS":              "エスエヌエス",
	"SQL":              "エスキューエル",
	"URL":              "ユーアールエル",
	"Web":              "ウェブ",
	"WiFi":             "ワイファイ",
	"Wikipedia":        "ウィキペディア",
	"YouTube":          "ユーチューブ",
	"fMRI":             "エフエムアールアイ",
}

var letterReadings = map[rune]string{
	'A': "エー", 'B': "ビー", 'C': "シー", 'D': "ディー", 'E': "イー",
	'F': "エフ", 'G': "ジー", 'H': "エイチ", 'I': "アイ", 'J': "ジェー",
	'K': "ケー", 'L': "エル", 'M': "エム", 'N': "エヌ", 'O': "オー",
	'P': "ピー", 'Q': "キュー", 'R': "アール", 'S': "エス", 'T': "ティー",
	'U': "ユー", 'V': "ブイ", 'W': "ダブリュー", 'X': "エックス", 'Y': "ワイ",
	'Z': "ゼット",
	'0': "ゼロ", '1': "ワン", '2': "ツー", '3': "スリー", '4': "フォー",
	'5': "ファイブ", '6': "シックス", '7': "セブン", '8': "エイト", '9': "ナイン",
}

// Rewriter annotates Latin-script terms with katakana readings so the
// speech engine pronounces them. chat may be nil, in which case every
// unknown term takes the spelled-out fallback.
type Rewriter struct {
	chat      provider.Chat
	batchSize int
	logger    *log.Logger
}

func NewRewriter(chat provider.Chat, batchSize int) *Rewriter {
	if batchSize <= 0 {
		batchSize = 8
	}
	return &Rewriter{
		chat:      chat,
		batchSize: batchSize,
		logger:    log.New(log.Writer(), "[REWRITE] ", log.LstdFlags),
	}
}

// SpellOut reads a term letter by letter in katakana. It is total: any
// character without a table entry passes through unchanged, so the result
// is never empty for a non-empty term.
func SpellOut(term string) string {
	var b strings.Builder
	for _, r := range term {
		upper := r
		if r >= 'a' && r <= 'z' {
			upper = r - 'a' + 'A'
		}
		if reading, ok := letterReadings[upper]; ok {
			b.WriteString(reading)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// StripAnnotations removes reading annotations, leaving only the katakana
// that precedes them. Applied before speech synthesis and caption output.
func StripAnnotations(s string) string {
	return annotationSpan.ReplaceAllString(s, "")
}

// Rewrite returns text with every Latin run outside an existing annotation
// replaced by a katakana reading followed by 《original》. Known terms use
// the local table, the rest go to the model in batches, and any term the
// model cannot cover is spelled out letter by letter. The postcondition
// holds regardless of model availability: no bare Latin run survives.
func (r *Rewriter) Rewrite(ctx context.Context, text string) string {
	terms := collectTerms(text)
	if len(terms) == 0 {
		return text
	}

	readings := make(map[string]string, len(terms))
	var unknown []string
	for _, term := range terms {
		if reading, ok := lookupKnown(term); ok {
			readings[term] = reading
		} else {
			unknown = append(unknown, term)
		}
	}
	for i := 0; i < len(unknown); i += r.batchSize {
		end := i + r.batchSize
		if end > len(unknown) {
			end = len(unknown)
		}
		r.resolveBatch(ctx, unknown[i:end], readings)
	}
	for _, term := range unknown {
		if _, ok := readings[term]; !ok {
			readings[term] = SpellOut(term)
		}
	}
	return applyReadings(text, readings)
}

// lookupKnown matches the table exactly; "github" is not "GitHub" and goes
// through the model or the spelling fallback instead.
func lookupKnown(term string) (string, bool) {
	reading, ok := knownReadings[term]
	return reading, ok
}

// collectTerms finds unique Latin runs and multi-word table terms outside
// annotation spans, longest first so applyReadings never annotates inside a
// longer term's replacement.
func collectTerms(text string) []string {
	seen := map[string]bool{}
	var terms []string
	add := func(t string) {
		if !seen[t] {
			seen[t] = true
			terms = append(terms, t)
		}
	}
	forEachOutsideSegment(text, func(seg string) {
		for key := range knownReadings {
			if strings.Contains(key, " ") && strings.Contains(seg, key) {
				add(key)
			}
		}
		for _, run := range latinRun.FindAllString(seg, -1) {
			add(run)
		}
	})
	sort.Slice(terms, func(i, j int) bool { return len(terms[i]) > len(terms[j]) })
	return terms
}

// forEachOutsideSegment calls fn for every stretch of text not inside an
// annotation span.
func forEachOutsideSegment(text string, fn func(string)) {
	spans := annotationSpan.FindAllStringIndex(text, -1)
	prev := 0
	for _, span := range spans {
		if span[0] > prev {
			fn(text[prev:span[0]])
		}
		prev = span[1]
	}
	if prev < len(text) {
		fn(text[prev:])
	}
}

type rewriteEntry struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

const rewriteSystemPrompt = `あなたは音声合成の前処理を行うアシスタントです。` +
	`与えられた英語の用語それぞれについて、日本語話者が読むときのカタカナ読みを返してください。` +
	`出力はJSON配列のみ: [{"index": 番号, "text": "カタカナ読み"}]。説明は不要です。`

// resolveBatch asks the model for readings of one batch. Replies are
// matched by echoed index; an index out of range or already answered is
// discarded. Any failure leaves the terms unresolved for the caller's
// fallback.
func (r *Rewriter) resolveBatch(ctx context.Context, batch []string, readings map[string]string) {
	if r.chat == nil || len(batch) == 0 {
		return
	}
	var b strings.Builder
	for i, term := range batch {
		fmt.Fprintf(&b, "%d: %s\n", i, term)
	}
	reply, err := r.chat.ChatCompletion(ctx, provider.ChatRequest{
		System: rewriteSystemPrompt,
		User:   b.String(),
	})
	if err != nil {
		r.logger.Printf("batch rewrite failed, falling back to spelling: %v", err)
		return
	}
	items, err := ExtractArray(reply)
	if err != nil {
		r.logger.Printf("batch reply unusable, falling back to spelling: %v", err)
		return
	}
	answered := make(map[int]bool, len(batch))
	for _, raw := range items {
		var entry rewriteEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			continue
		}
		if entry.Index < 0 || entry.Index >= len(batch) || answered[entry.Index] {
			continue
		}
		reading := strings.TrimSpace(entry.Text)
		if reading == "" || latinRun.MatchString(reading) {
			continue
		}
		answered[entry.Index] = true
		readings[batch[entry.Index]] = reading
	}
}

// applyReadings annotates each term occurrence outside existing annotation
// spans. Terms are replaced longest first; the annotation 《》 delimiters
// shield already-rewritten spans from later passes.
func applyReadings(text string, readings map[string]string) string {
	terms := make([]string, 0, len(readings))
	for term := range readings {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool { return len(terms[i]) > len(terms[j]) })

	for _, term := range terms {
		pattern := regexp.MustCompile(regexp.QuoteMeta(term))
		reading := readings[term]
		var b strings.Builder
		prev := 0
		for _, span := range findOutside(text, pattern) {
			b.WriteString(text[prev:span[0]])
			original := text[span[0]:span[1]]
			b.WriteString(reading)
			b.WriteString("《")
			b.WriteString(original)
			b.WriteString("》")
			prev = span[1]
		}
		b.WriteString(text[prev:])
		text = b.String()
	}
	return text
}

// findOutside returns pattern match spans that do not overlap annotation
// spans and sit on word boundaries (no adjacent Latin letter or digit).
func findOutside(text string, pattern *regexp.Regexp) [][]int {
	annotated := annotationSpan.FindAllStringIndex(text, -1)
	inside := func(pos int) bool {
		for _, span := range annotated {
			if pos >= span[0] && pos < span[1] {
				return true
			}
		}
		return false
	}
	isAlnum := func(b byte) bool {
		return b >= 'A' && b <= 'Z' || b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
	}
	var out [][]int
	for _, span := range pattern.FindAllStringIndex(text, -1) {
		if inside(span[0]) || inside(span[1]-1) {
			continue
		}
		if span[0] > 0 && isAlnum(text[span[0]-1]) {
			continue
		}
		if span[1] < len(text) && isAlnum(text[span[1]]) {
			continue
		}
		out = append(out, span)
	}
	return out
}
