package script

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// SourceDocument is the immutable input to chunking, produced by a fetcher.
type SourceDocument struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url"`
}

// ChunkRole frames the prompt for a generation chunk by its position.
type ChunkRole string

const (
	RoleIntro  ChunkRole = "intro"
	RoleMiddle ChunkRole = "middle"
	RoleOutro  ChunkRole = "outro"
)

// GenerationChunk is one bounded slice of source text submitted as a single
// generation request. Ordinal order is the dialogue order and is never
// changed downstream.
type GenerationChunk struct {
	Text    string
	Ordinal int
	Role    ChunkRole
}

// DialogueLine is one spoken utterance. Its identity is positional: the
// index in the document's dialogue sequence pairs it with exactly one audio
// file and one caption interval.
type DialogueLine struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Reference is a citation record carried into the video description.
// Fields are populated per source kind; unused ones stay empty.
type Reference struct {
	Type      string `json:"type,omitempty"`
	Number    int    `json:"number,omitempty"`
	Title     string `json:"title"`
	Authors   string `json:"authors,omitempty"`
	Author    string `json:"author,omitempty"`
	URL       string `json:"url"`
	DOI       string `json:"doi,omitempty"`
	Source    string `json:"source,omitempty"`
	Published string `json:"published,omitempty"`
}

// Document is the cleaned script: written once by the generation phase,
// read-only afterwards. Dialogue order is the speaking and display order.
type Document struct {
	Title      string         `json:"title"`
	Dialogue   []DialogueLine `json:"dialogue"`
	References []Reference    `json:"references"`
	Date       string         `json:"date,omitempty"`
	SourceURL  string         `json:"source_url,omitempty"`
	Repo       string         `json:"repo,omitempty"`
}

// Save serializes the document to a JSON file consumed by the audio phase.
func (d *Document) Save(path string) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal script: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write script: %w", err)
	}
	return nil
}

// Description renders the upload-ready description text: title, date,
// source attribution and a numbered reference list.
func (d *Document) Description() string {
	var b strings.Builder
	b.WriteString(d.Title)
	b.WriteString("\n")
	if d.Date != "" {
		fmt.Fprintf(&b, "%s配信\n", d.Date)
	}
	if d.SourceURL != "" {
		fmt.Fprintf(&b, "出典: %s\n", d.SourceURL)
	}
	if d.Repo != "" {
		fmt.Fprintf(&b, "リポジトリ: %s\n", d.Repo)
	}
	if len(d.References) > 0 {
		b.WriteString("\n参考文献:\n")
		for i, ref := range d.References {
			n := ref.Number
			if n == 0 {
				n = i + 1
			}
			fmt.Fprintf(&b, "[%d] %s", n, ref.Title)
			if ref.Authors != "" {
				fmt.Fprintf(&b, " / %s", ref.Authors)
			} else if ref.Author != "" {
				fmt.Fprintf(&b, " / %s", ref.Author)
			}
			if ref.URL != "" {
				fmt.Fprintf(&b, "\n    %s", ref.URL)
			}
			if ref.DOI != "" {
				fmt.Fprintf(&b, "\n    doi:%s", ref.DOI)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Load reads a script document previously written by Save.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	return &doc, nil
}

// BuildChunks slices a source document into generation chunks and assigns
// positional roles: first=intro, last=outro, everything between=middle. A
// single chunk is an intro (it opens the episode either way).
func BuildChunks(pieces []string) []GenerationChunk {
	chunks := make([]GenerationChunk, 0, len(pieces))
	for i, text := range pieces {
		role := RoleMiddle
		if i == 0 {
			role = RoleIntro
		} else if i == len(pieces)-1 {
			role = RoleOutro
		}
		chunks = append(chunks, GenerationChunk{Text: text, Ordinal: i, Role: role})
	}
	return chunks
}
