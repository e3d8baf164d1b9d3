package script

import (
	"encoding/json"

	"github.com/eegflow/scriptcast/internal/textproc"
)

// CleanDialogue turns raw model dialogue entries into usable lines. Entries
// that are not JSON objects are dropped, a missing or empty speaker falls
// back to defaultSpeaker, text is normalized, and lines whose text ends up
// empty are dropped. Relative order of surviving lines is preserved.
func CleanDialogue(entries []json.RawMessage, defaultSpeaker string) []DialogueLine {
	lines := make([]DialogueLine, 0, len(entries))
	for _, raw := range entries {
		var entry struct {
			Speaker string `json:"speaker"`
			Text    string `json:"text"`
		}
		if err := json.Unmarshal(raw, &entry); err != nil {
			continue
		}
		speaker := entry.Speaker
		if speaker == "" {
			speaker = defaultSpeaker
		}
		text := textproc.Normalize(entry.Text)
		if text == "" {
			continue
		}
		lines = append(lines, DialogueLine{Speaker: speaker, Text: text})
	}
	return lines
}
