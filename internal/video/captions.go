package video

import (
	"fmt"
	"os"
	"strings"

	"github.com/eegflow/scriptcast/internal/script"
)

// WrapCaption breaks text into display lines of at most width characters,
// counted in runes so multibyte text wraps at the same column as ASCII.
// Existing newlines are kept as hard breaks.
func WrapCaption(text string, width int) []string {
	if width < 1 {
		return []string{text}
	}
	var lines []string
	for _, hard := range strings.Split(text, "\n") {
		runes := []rune(hard)
		if len(runes) == 0 {
			lines = append(lines, "")
			continue
		}
		for len(runes) > width {
			lines = append(lines, string(runes[:width]))
			runes = runes[width:]
		}
		lines = append(lines, string(runes))
	}
	return lines
}

// srtTimestamp renders seconds as the HH:MM:SS,mmm form subtitle players
// expect.
func srtTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	ms := int(seconds*1000 + 0.5)
	h := ms / 3600000
	ms -= h * 3600000
	m := ms / 60000
	ms -= m * 60000
	s := ms / 1000
	ms -= s * 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// WriteSRT renders the timeline as a SubRip file. Reading annotations are
// stripped and each cue is wrapped to the display width.
func WriteSRT(path string, intervals []Interval, width int) error {
	var b strings.Builder
	for i, iv := range intervals {
		text := script.StripAnnotations(iv.Text)
		fmt.Fprintf(&b, "%d\n", i+1)
		fmt.Fprintf(&b, "%s --> %s\n", srtTimestamp(iv.Start), srtTimestamp(iv.End))
		b.WriteString(strings.Join(WrapCaption(text, width), "\n"))
		b.WriteString("\n\n")
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write srt: %w", err)
	}
	return nil
}
