package textproc

import (
	"log"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Chunking and utterance splitting share one shape: bounded-size,
// structure-aware splitting with a hard fallback. ChunkSource keeps
// generation requests under the model context limit; SplitUtterance keeps
// each spoken line under the caption/utterance limit. Bounds are counted
// in runes, matching how the caption renderer measures width.

var chunkLogger = log.New(log.Writer(), "[CHUNK] ", log.LstdFlags)

// ChunkSource splits source text into generation-sized chunks on blank-line
// paragraph boundaries, hard-slicing any single paragraph that alone exceeds
// maxChars. Order is preserved and every returned piece fits within maxChars.
func ChunkSource(text string, maxChars int) []string {
	if maxChars < 1 {
		maxChars = 1
	}
	if len([]rune(text)) <= maxChars {
		return []string{text}
	}

	var chunks []string
	var current []string
	currentLen := 0

	flush := func() {
		if len(current) > 0 {
			chunks = append(chunks, strings.Join(current, "\n\n"))
			current = current[:0]
			currentLen = 0
		}
	}

	for _, para := range strings.Split(text, "\n\n") {
		paraLen := len([]rune(para))
		if paraLen > maxChars {
			// Degraded fallback: no paragraph boundary to respect.
			chunkLogger.Printf("paragraph of %d chars exceeds chunk bound %d, hard-slicing", paraLen, maxChars)
			flush()
			chunks = append(chunks, hardSlice(para, maxChars)...)
			continue
		}
		sep := 0
		if len(current) > 0 {
			sep = 2
		}
		if currentLen+sep+paraLen > maxChars {
			flush()
		}
		if len(current) > 0 {
			currentLen += 2
		}
		current = append(current, para)
		currentLen += paraLen
	}
	flush()
	return chunks
}

// hardSlice cuts text into maxChars-sized pieces with no structural awareness.
func hardSlice(text string, maxChars int) []string {
	runes := []rune(text)
	var pieces []string
	for len(runes) > maxChars {
		pieces = append(pieces, string(runes[:maxChars]))
		runes = runes[maxChars:]
	}
	if len(runes) > 0 {
		pieces = append(pieces, string(runes))
	}
	return pieces
}

// Sentence-terminal characters; the terminal stays attached to the sentence
// that precedes it.
var sentenceTerminals = map[rune]bool{
	'。': true, '！': true, '？': true, '!': true, '?': true, '…': true,
}

// Soft-break characters in preference order for force-splitting a sentence
// that alone exceeds the utterance bound.
var softBreaks = []rune{'、', '，', ',', '・', '／', '/', ' ', '　', '；', ';', '：', ':'}

// readingSpan matches a katakana reading annotation. Annotations are
// stripped before speech and caption output, so splitting treats them as
// atomic and free when measuring against the utterance bound.
var readingSpan = regexp.MustCompile(`《[^》]*》`)

// token is one splitting unit: a single display rune, carrying any reading
// annotation that follows it. A cut can only land between tokens, so it can
// never separate a reading from its annotation or open one up.
type token struct {
	text string
	cost int
}

func tokensCost(tokens []token) int {
	cost := 0
	for _, tok := range tokens {
		cost += tok.cost
	}
	return cost
}

// SplitUtterance splits a spoken line into caption-sized pieces on sentence
// boundaries, force-splitting an oversized sentence at the rightmost
// soft-break within the bound, or at the hard bound when no soft-break
// exists. The bound counts spoken runes: reading annotations cost nothing.
// Every returned piece is re-normalized; empty pieces are dropped.
func SplitUtterance(text string, maxChars int) []string {
	if maxChars < 1 {
		maxChars = 1
	}
	normalized := Normalize(text)
	if normalized == "" {
		return nil
	}
	tokens := tokenize(normalized)
	if tokensCost(tokens) <= maxChars {
		return []string{normalized}
	}

	var pieces []string
	var current []token
	currentCost := 0
	emit := func() {
		if len(current) == 0 {
			return
		}
		var b strings.Builder
		for _, tok := range current {
			b.WriteString(tok.text)
		}
		piece := Normalize(b.String())
		if piece != "" {
			pieces = append(pieces, piece)
		}
		current = current[:0]
		currentCost = 0
	}

	for _, sentence := range splitSentences(tokens) {
		cost := tokensCost(sentence)
		if currentCost+cost > maxChars {
			emit()
		}
		if cost <= maxChars {
			current = append(current, sentence...)
			currentCost += cost
			continue
		}
		// The sentence alone exceeds the bound.
		for _, part := range forceSplit(sentence, maxChars) {
			partCost := tokensCost(part)
			if currentCost+partCost > maxChars {
				emit()
			}
			current = append(current, part...)
			currentCost += partCost
		}
	}
	emit()
	return pieces
}

// tokenize cuts text into one-rune tokens, attaching each annotation span
// to the token before it.
func tokenize(text string) []token {
	spans := readingSpan.FindAllStringIndex(text, -1)
	var tokens []token
	pos := 0
	next := 0
	for pos < len(text) {
		if next < len(spans) && spans[next][0] == pos {
			span := text[spans[next][0]:spans[next][1]]
			if len(tokens) > 0 {
				tokens[len(tokens)-1].text += span
			} else {
				tokens = append(tokens, token{text: span})
			}
			pos = spans[next][1]
			next++
			continue
		}
		r, size := utf8.DecodeRuneInString(text[pos:])
		tokens = append(tokens, token{text: string(r), cost: 1})
		pos += size
	}
	return tokens
}

func leadingRune(tok token) rune {
	r, _ := utf8.DecodeRuneInString(tok.text)
	return r
}

// splitSentences cuts the token stream after each run of sentence-terminal
// tokens, keeping the terminals attached to the preceding sentence.
func splitSentences(tokens []token) [][]token {
	isTerminal := func(tok token) bool {
		return tok.cost == 1 && sentenceTerminals[leadingRune(tok)]
	}
	var sentences [][]token
	start := 0
	for i := 0; i < len(tokens); i++ {
		if !isTerminal(tokens[i]) {
			continue
		}
		// Consume the whole terminal run ("！？" stays together).
		j := i
		for j+1 < len(tokens) && isTerminal(tokens[j+1]) {
			j++
		}
		sentences = append(sentences, tokens[start:j+1])
		start = j + 1
		i = j
	}
	if start < len(tokens) {
		sentences = append(sentences, tokens[start:])
	}
	return sentences
}

// forceSplit cuts an oversized sentence into bounded pieces, preferring the
// rightmost soft-break within the bound. The soft-break token stays with
// the left piece. Falls back to a cut at the hard bound.
func forceSplit(tokens []token, maxChars int) [][]token {
	var parts [][]token
	for tokensCost(tokens) > maxChars {
		bound := prefixWithin(tokens, maxChars)
		cut := bound
		for _, br := range softBreaks {
			if idx := lastBreakToken(tokens[:bound], br); idx >= 0 {
				cut = idx + 1
				break
			}
		}
		parts = append(parts, tokens[:cut])
		tokens = tokens[cut:]
	}
	if len(tokens) > 0 {
		parts = append(parts, tokens)
	}
	return parts
}

// prefixWithin returns the longest token prefix whose cost stays within
// maxChars.
func prefixWithin(tokens []token, maxChars int) int {
	cost := 0
	for i, tok := range tokens {
		cost += tok.cost
		if cost > maxChars {
			return i
		}
	}
	return len(tokens)
}

func lastBreakToken(tokens []token, br rune) int {
	for i := len(tokens) - 1; i >= 0; i-- {
		if tokens[i].cost == 1 && leadingRune(tokens[i]) == br {
			return i
		}
	}
	return -1
}
