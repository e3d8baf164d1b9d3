package script

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Extraction failure reasons, inspected by retry loops to decide the next
// attempt's prompt.
const (
	ReasonNoObject  = "no_object"
	ReasonBadJSON   = "bad_json"
	ReasonMalformed = "malformed"
)

// ExtractionError reports why a model reply could not be turned into a
// structured object.
type ExtractionError struct {
	Reason string
	Detail string
}

func (e *ExtractionError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("reply extraction failed: %s", e.Reason)
	}
	return fmt.Sprintf("reply extraction failed: %s: %s", e.Reason, e.Detail)
}

// ReplyObject is the shape every generation prompt demands from the model.
// Dialogue entries stay raw here: cleaning decides per entry whether it is
// usable, a bad entry must not sink the whole reply.
type ReplyObject struct {
	Title    string            `json:"title"`
	Dialogue []json.RawMessage `json:"dialogue"`
}

// stripFences removes markdown code fences the model tends to wrap JSON in,
// with or without the language tag.
func stripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// outermost returns the substring from the first open delimiter to the last
// close delimiter, or "" when no balanced pair exists.
func outermost(s string, open, close byte) string {
	start := strings.IndexByte(s, open)
	end := strings.LastIndexByte(s, close)
	if start < 0 || end < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}

// ExtractReply recovers the structured reply object from a raw model
// response. Prose around the object and code fences are tolerated; the
// substring between the first '{' and the last '}' must parse as JSON and
// carry a dialogue array.
func ExtractReply(raw string) (*ReplyObject, error) {
	cleaned := stripFences(raw)
	candidate := outermost(cleaned, '{', '}')
	if candidate == "" {
		return nil, &ExtractionError{Reason: ReasonNoObject, Detail: "no JSON object in reply"}
	}
	var obj struct {
		Title    string             `json:"title"`
		Dialogue *[]json.RawMessage `json:"dialogue"`
	}
	if err := json.Unmarshal([]byte(candidate), &obj); err != nil {
		return nil, &ExtractionError{Reason: ReasonBadJSON, Detail: err.Error()}
	}
	if obj.Dialogue == nil {
		return nil, &ExtractionError{Reason: ReasonMalformed, Detail: "missing dialogue field"}
	}
	return &ReplyObject{Title: obj.Title, Dialogue: *obj.Dialogue}, nil
}

// ExtractArray recovers a JSON array from a raw model response, used by
// the batched term-rewrite protocol.
func ExtractArray(raw string) ([]json.RawMessage, error) {
	cleaned := stripFences(raw)
	candidate := outermost(cleaned, '[', ']')
	if candidate == "" {
		return nil, &ExtractionError{Reason: ReasonNoObject, Detail: "no JSON array in reply"}
	}
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &items); err != nil {
		return nil, &ExtractionError{Reason: ReasonBadJSON, Detail: err.Error()}
	}
	return items, nil
}
