package script

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/eegflow/scriptcast/config"
)

func testGenCfg() config.GenerationConfig {
	return config.GenerationConfig{
		MaxChunkChars:     1500,
		MaxUtteranceChars: 100,
		MaxRetries:        3,
		RewriteBatchSize:  8,
	}
}

func newTestGenerator(chat *fakeChat, cfg config.GenerationConfig) *Generator {
	return NewGenerator(chat, NewRewriter(nil, cfg.RewriteBatchSize), cfg, nil)
}

func TestGenerateFromArticleSingleChunk(t *testing.T) {
	chat := &fakeChat{replies: []string{
		`{"title": "脳波の話", "dialogue": [{"speaker": "ずんだもん", "text": "こんにちは"}, {"speaker": "四国めたん", "text": "今日は脳波の話です"}]}`,
	}}
	g := newTestGenerator(chat, testGenCfg())
	doc, err := g.GenerateFromArticle(context.Background(), SourceDocument{
		Title: "脳波", Body: "脳波とは脳の電気活動である。", URL: "https://example.org/a",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "脳波の話" {
		t.Errorf("expected reply title, got %q", doc.Title)
	}
	if doc.SourceURL != "https://example.org/a" {
		t.Errorf("expected source URL carried, got %q", doc.SourceURL)
	}
	if len(doc.Dialogue) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(doc.Dialogue))
	}
	if chat.calls != 1 {
		t.Errorf("expected 1 model call, got %d", chat.calls)
	}
}

func TestGenerateRetriesOnUnusableReply(t *testing.T) {
	chat := &fakeChat{replies: []string{
		"すみません、書けませんでした。",
		`{"title": "t", "dialogue": [{"speaker": "s", "text": "やっと書けた"}]}`,
	}}
	g := newTestGenerator(chat, testGenCfg())
	doc, err := g.GenerateFromArticle(context.Background(), SourceDocument{Title: "t", Body: "本文。"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chat.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", chat.calls)
	}
	if !strings.Contains(chat.prompts[1], "JSONとして解釈できません") {
		t.Errorf("expected corrective reminder on retry, got %q", chat.prompts[1])
	}
	if len(doc.Dialogue) != 1 {
		t.Errorf("expected 1 line, got %d", len(doc.Dialogue))
	}
}

func TestGenerateGivesUpAfterMaxRetries(t *testing.T) {
	chat := &fakeChat{replies: []string{"だめ", "だめ", "だめ", "だめ"}}
	g := newTestGenerator(chat, testGenCfg())
	_, err := g.GenerateFromArticle(context.Background(), SourceDocument{Title: "t", Body: "本文。"})
	if err == nil {
		t.Fatal("expected error after retries exhausted")
	}
	if chat.calls != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", chat.calls)
	}
}

func TestGenerateMultipleChunksKeepFirstTitle(t *testing.T) {
	chat := &fakeChat{replies: []string{
		`{"title": "最初の題", "dialogue": [{"speaker": "s", "text": "導入"}]}`,
		`{"title": "別の題", "dialogue": [{"speaker": "s", "text": "本編"}]}`,
		`{"title": "また別", "dialogue": [{"speaker": "s", "text": "まとめ"}]}`,
	}}
	cfg := testGenCfg()
	cfg.MaxChunkChars = 10
	g := newTestGenerator(chat, cfg)
	body := "一つ目の段落です。\n\n二つ目の段落です。\n\n三つ目の段落です。"
	doc, err := g.GenerateFromArticle(context.Background(), SourceDocument{Title: "t", Body: body})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chat.calls != 3 {
		t.Fatalf("expected 3 chunk calls, got %d", chat.calls)
	}
	if doc.Title != "最初の題" {
		t.Errorf("expected first chunk's title, got %q", doc.Title)
	}
	got := make([]string, len(doc.Dialogue))
	for i, l := range doc.Dialogue {
		got[i] = l.Text
	}
	want := []string{"導入", "本編", "まとめ"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d: expected %q, got %q", i, want[i], got[i])
		}
	}
	if !strings.Contains(chat.prompts[0], "冒頭部分") {
		t.Errorf("expected intro framing in first prompt")
	}
	if !strings.Contains(chat.prompts[2], "最終部分") {
		t.Errorf("expected outro framing in last prompt")
	}
}

func TestGenerateSplitsLongUtterances(t *testing.T) {
	chat := &fakeChat{replies: []string{
		`{"title": "t", "dialogue": [{"speaker": "s", "text": "こんにちは。元気ですか？"}]}`,
	}}
	cfg := testGenCfg()
	cfg.MaxUtteranceChars = 10
	g := newTestGenerator(chat, cfg)
	doc, err := g.GenerateFromArticle(context.Background(), SourceDocument{Title: "t", Body: "本文。"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Dialogue) != 2 {
		t.Fatalf("expected split into 2 lines, got %d", len(doc.Dialogue))
	}
	for i, l := range doc.Dialogue {
		if l.Speaker != "s" {
			t.Errorf("line %d: expected speaker kept, got %q", i, l.Speaker)
		}
	}
}

func TestGenerateRewritesForeignTerms(t *testing.T) {
	chat := &fakeChat{replies: []string{
		`{"title": "t", "dialogue": [{"speaker": "s", "text": "EEGを測ります"}]}`,
	}}
	g := newTestGenerator(chat, testGenCfg())
	doc, err := g.GenerateFromArticle(context.Background(), SourceDocument{Title: "t", Body: "本文。"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Dialogue[0].Text != "イーイージー《EEG》を測ります" {
		t.Errorf("expected annotated term, got %q", doc.Dialogue[0].Text)
	}
}

func TestGenerateBoundHoldsAfterRewriteLengthensLine(t *testing.T) {
	// 14 runes as written, but the readings push the spoken text past the
	// bound; the line must split after rewriting, without cutting an
	// annotation.
	chat := &fakeChat{replies: []string{
		`{"title": "t", "dialogue": [{"speaker": "s", "text": "EEGとAIはすごい。未来です。"}]}`,
	}}
	cfg := testGenCfg()
	cfg.MaxUtteranceChars = 16
	g := newTestGenerator(chat, cfg)
	doc, err := g.GenerateFromArticle(context.Background(), SourceDocument{Title: "t", Body: "本文。"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Dialogue) != 2 {
		t.Fatalf("expected 2 lines after split, got %d: %+v", len(doc.Dialogue), doc.Dialogue)
	}
	if doc.Dialogue[0].Text != "イーイージー《EEG》とエーアイ《AI》はすごい。" {
		t.Errorf("unexpected first line %q", doc.Dialogue[0].Text)
	}
	for i, l := range doc.Dialogue {
		if got := len([]rune(StripAnnotations(l.Text))); got > cfg.MaxUtteranceChars {
			t.Errorf("line %d speaks %d runes, bound is %d", i, got, cfg.MaxUtteranceChars)
		}
		if strings.Count(l.Text, "《") != strings.Count(l.Text, "》") {
			t.Errorf("line %d has a cut-open annotation: %q", i, l.Text)
		}
	}
}

func TestGenerateDigest(t *testing.T) {
	chat := &fakeChat{replies: []string{
		`{"title": "今日の論文", "dialogue": [{"speaker": "s", "text": "紹介します"}]}`,
	}}
	g := newTestGenerator(chat, testGenCfg())
	refs := []Reference{{Number: 1, Title: "Some Paper", URL: "https://example.org/p"}}
	doc, err := g.GenerateDigest(context.Background(), "論文紹介", "要約テキスト", refs, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Date != "2026年9月1日" {
		t.Errorf("expected formatted date, got %q", doc.Date)
	}
	if len(doc.References) != 1 || doc.References[0].Title != "Some Paper" {
		t.Errorf("expected references carried through, got %+v", doc.References)
	}
	if chat.calls != 1 {
		t.Errorf("expected single call, got %d", chat.calls)
	}
}

func TestSafeFileName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"脳波の話", "脳波の話"},
		{"a/b:c", "a_b_c"},
		{"  ", "untitled"},
		{"題 名　付き", "題_名_付き"},
	}
	for _, c := range cases {
		if got := SafeFileName(c.in); got != c.want {
			t.Errorf("SafeFileName(%q): expected %q, got %q", c.in, c.want, got)
		}
	}
}
