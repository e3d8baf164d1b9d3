package script

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestBuildChunksRoles(t *testing.T) {
	chunks := BuildChunks([]string{"一", "二", "三"})
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	roles := []ChunkRole{RoleIntro, RoleMiddle, RoleOutro}
	for i, chunk := range chunks {
		if chunk.Ordinal != i {
			t.Errorf("chunk %d: expected ordinal %d, got %d", i, i, chunk.Ordinal)
		}
		if chunk.Role != roles[i] {
			t.Errorf("chunk %d: expected role %q, got %q", i, roles[i], chunk.Role)
		}
	}
}

func TestBuildChunksSingle(t *testing.T) {
	chunks := BuildChunks([]string{"一"})
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Role != RoleIntro {
		t.Errorf("expected intro role for a single chunk, got %q", chunks[0].Role)
	}
}

func TestDocumentSaveLoad(t *testing.T) {
	doc := &Document{
		Title:    "脳波の話",
		Dialogue: []DialogueLine{{Speaker: "ずんだもん", Text: "こんにちは"}},
		Date:     "2026年9月1日",
	}
	path := filepath.Join(t.TempDir(), "script.json")
	if err := doc.Save(path); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Title != doc.Title {
		t.Errorf("expected title %q, got %q", doc.Title, loaded.Title)
	}
	if len(loaded.Dialogue) != 1 || loaded.Dialogue[0].Text != "こんにちは" {
		t.Errorf("dialogue not preserved: %+v", loaded.Dialogue)
	}
}

func TestDescription(t *testing.T) {
	doc := &Document{
		Title:     "最新論文紹介",
		Date:      "2026年9月1日",
		SourceURL: "https://example.org/article",
		References: []Reference{
			{Number: 1, Title: "Some Paper", Authors: "Alice, Bob", URL: "https://example.org/p1", DOI: "10.1000/x"},
			{Title: "Untitled Note"},
		},
	}
	got := doc.Description()
	for _, want := range []string{
		"最新論文紹介",
		"2026年9月1日配信",
		"出典: https://example.org/article",
		"参考文献:",
		"[1] Some Paper / Alice, Bob",
		"https://example.org/p1",
		"doi:10.1000/x",
		"[2] Untitled Note",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("description missing %q:\n%s", want, got)
		}
	}
}

func TestDescriptionMinimal(t *testing.T) {
	doc := &Document{Title: "タイトルのみ"}
	got := doc.Description()
	if got != "タイトルのみ\n" {
		t.Errorf("expected bare title line, got %q", got)
	}
	if strings.Contains(got, "参考文献") {
		t.Errorf("empty reference list should be omitted: %q", got)
	}
}
