package script

import (
	"context"
	"errors"
	"testing"

	"github.com/eegflow/scriptcast/provider"
)

type fakeChat struct {
	replies []string
	err     error
	calls   int
	prompts []string
}

func (f *fakeChat) ChatCompletion(_ context.Context, req provider.ChatRequest) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, req.User)
	if f.err != nil {
		return "", f.err
	}
	if len(f.replies) == 0 {
		return "", errors.New("fake chat exhausted")
	}
	reply := f.replies[0]
	f.replies = f.replies[1:]
	return reply, nil
}

func TestSpellOut(t *testing.T) {
	cases := []struct{ in, want string }{
		{"EEG", "イーイージー"},
		{"R2D2", "アールツーディーツー"},
		{"xyz", "エックスワイゼット"},
	}
	for _, c := range cases {
		if got := SpellOut(c.in); got != c.want {
			t.Errorf("SpellOut(%q): expected %q, got %q", c.in, c.want, got)
		}
	}
}

func TestStripAnnotations(t *testing.T) {
	in := "イーイージー《EEG》で計測したエーアイ《AI》の話"
	want := "イーイージーで計測したエーアイの話"
	if got := StripAnnotations(in); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestRewriteKnownTerms(t *testing.T) {
	r := NewRewriter(nil, 8)
	got := r.Rewrite(context.Background(), "EEGの信号をAIで解析する")
	want := "イーイージー《EEG》の信号をエーアイ《AI》で解析する"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestRewriteUnknownTermFallsBack(t *testing.T) {
	r := NewRewriter(nil, 8)
	got := r.Rewrite(context.Background(), "Xyzを使う")
	want := "エックスワイゼット《Xyz》を使う"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestRewriteWordBoundary(t *testing.T) {
	// "AI" inside a longer run is not a term of its own; the run is the
	// unit. The whole run is annotated once.
	r := NewRewriter(nil, 8)
	got := r.Rewrite(context.Background(), "CHAINを辿る")
	want := "シーエイチエーアイエヌ《CHAIN》を辿る"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestRewriteSkipsAnnotatedSpans(t *testing.T) {
	r := NewRewriter(nil, 8)
	in := "イーイージー《EEG》は既に処理済み"
	if got := r.Rewrite(context.Background(), in); got != in {
		t.Errorf("expected annotated text untouched, got %q", got)
	}
}

func TestRewriteIdempotent(t *testing.T) {
	r := NewRewriter(nil, 8)
	once := r.Rewrite(context.Background(), "AIとXyzの話")
	twice := r.Rewrite(context.Background(), once)
	if once != twice {
		t.Errorf("rewrite not idempotent:\n once: %q\ntwice: %q", once, twice)
	}
}

func TestRewriteTableIsCaseSensitive(t *testing.T) {
	r := NewRewriter(nil, 8)
	got := r.Rewrite(context.Background(), "GitHubとgithubの違い")
	want := "ギットハブ《GitHub》とジーアイティーエイチユービー《github》の違い"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestRewriteModelBatch(t *testing.T) {
	chat := &fakeChat{replies: []string{
		// index 0 answered twice (second discarded), index 9 out of range,
		// index 1 reading still contains Latin so it is discarded too.
		`[{"index": 0, "text": "フーバー"}, {"index": 0, "text": "ダメ"}, {"index": 9, "text": "ナナ"}, {"index": 1, "text": "qx"}]`,
	}}
	r := NewRewriter(chat, 8)
	got := r.Rewrite(context.Background(), "FoobarとQuxの比較")
	want := "フーバー《Foobar》とキューユーエックス《Qux》の比較"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	if chat.calls != 1 {
		t.Errorf("expected 1 model call, got %d", chat.calls)
	}
}

func TestRewriteModelFailureStillCoversEverything(t *testing.T) {
	chat := &fakeChat{err: errors.New("connection refused")}
	r := NewRewriter(chat, 8)
	got := r.Rewrite(context.Background(), "BlorptyとZanxが登場、AIも出る")
	if latinRun.MatchString(StripAnnotations(got)) {
		t.Errorf("bare Latin run survived rewrite: %q", StripAnnotations(got))
	}
}

func TestRewriteBatchSizeSplitsCalls(t *testing.T) {
	chat := &fakeChat{replies: []string{`[]`, `[]`, `[]`}}
	r := NewRewriter(chat, 2)
	r.Rewrite(context.Background(), "Aaaaa Bbbb Ccc Dd Erty")
	if chat.calls != 3 {
		t.Errorf("expected 3 batched calls for 5 terms at size 2, got %d", chat.calls)
	}
}

func TestRewriteMultiWordTerm(t *testing.T) {
	r := NewRewriter(nil, 8)
	got := r.Rewrite(context.Background(), "machine learningの応用")
	want := "マシンラーニング《machine learning》の応用"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
