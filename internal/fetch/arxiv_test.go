package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/eegflow/scriptcast/config"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/2601.00001v1</id>
    <title>Sleep Spindle Detection with
      Transformers</title>
    <summary>We propose a method for
      detecting sleep spindles.</summary>
    <published>2026-08-30T12:00:00Z</published>
    <author><name>A. Suzuki</name></author>
    <author><name>B. Tanaka</name></author>
    <link rel="alternate" href="https://arxiv.org/abs/2601.00001"/>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2601.00002v1</id>
    <title>EEG Artifacts Revisited</title>
    <summary>A survey.</summary>
    <published>2026-08-29T09:30:00Z</published>
    <author><name>C. Sato</name></author>
  </entry>
</feed>`

func testPaperFetcher(t *testing.T, handler http.HandlerFunc) (*PaperFetcher, func()) {
	t.Helper()
	server := httptest.NewServer(handler)
	f := NewPaperFetcher(config.SourcesConfig{PaperQuery: "cat:q-bio.NC", PaperMaxResults: 3})
	f.endpoint = server.URL
	return f, server.Close
}

func TestPaperRecent(t *testing.T) {
	f, closeServer := testPaperFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("search_query") != "cat:q-bio.NC" {
			t.Errorf("unexpected search_query: %q", q.Get("search_query"))
		}
		if q.Get("sortBy") != "submittedDate" {
			t.Errorf("unexpected sortBy: %q", q.Get("sortBy"))
		}
		fmt.Fprint(w, sampleFeed)
	})
	defer closeServer()

	papers, err := f.Recent(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(papers) != 2 {
		t.Fatalf("expected 2 papers, got %d", len(papers))
	}
	if papers[0].Title != "Sleep Spindle Detection with Transformers" {
		t.Errorf("expected collapsed title, got %q", papers[0].Title)
	}
	if papers[0].URL != "https://arxiv.org/abs/2601.00001" {
		t.Errorf("expected alternate link as URL, got %q", papers[0].URL)
	}
	if papers[1].URL != "http://arxiv.org/abs/2601.00002v1" {
		t.Errorf("expected id fallback URL, got %q", papers[1].URL)
	}
	if len(papers[0].Authors) != 2 {
		t.Errorf("expected 2 authors, got %v", papers[0].Authors)
	}
	if papers[0].Published.IsZero() {
		t.Error("expected published time parsed")
	}
}

func TestPaperRecentServerError(t *testing.T) {
	f, closeServer := testPaperFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	defer closeServer()

	if _, err := f.Recent(context.Background()); err == nil {
		t.Fatal("expected error on server failure")
	}
}

func TestDigestText(t *testing.T) {
	papers := []Paper{
		{Title: "Paper One", Authors: []string{"A", "B"}, Summary: "First."},
		{Title: "Paper Two", Summary: "Second."},
	}
	text := DigestText(papers)
	if !strings.Contains(text, "論文1: Paper One") {
		t.Errorf("missing first paper header:\n%s", text)
	}
	if !strings.Contains(text, "論文2: Paper Two") {
		t.Errorf("missing second paper header:\n%s", text)
	}
	if !strings.Contains(text, "著者: A, B") {
		t.Errorf("missing authors line:\n%s", text)
	}
}

func TestPaperReferences(t *testing.T) {
	refs := PaperReferences([]Paper{{Title: "P", URL: "u", Authors: []string{"A"}}})
	if len(refs) != 1 {
		t.Fatalf("expected 1 reference, got %d", len(refs))
	}
	if refs[0].Number != 1 || refs[0].Type != "paper" || refs[0].Source != "arXiv" {
		t.Errorf("unexpected reference: %+v", refs[0])
	}
}
