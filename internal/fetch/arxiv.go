package fetch

import (
	"context"
	"encoding/xml"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/eegflow/scriptcast/config"
	"github.com/eegflow/scriptcast/internal/script"
)

const arxivEndpoint = "https://export.arxiv.org/api/query"

// Paper is one entry from the arXiv Atom feed.
type Paper struct {
	Title     string
	Summary   string
	Authors   []string
	URL       string
	DOI       string
	Published time.Time
}

// PaperFetcher queries the arXiv API for recent papers matching the
// configured search query.
type PaperFetcher struct {
	cfg      config.SourcesConfig
	client   *http.Client
	endpoint string
	logger   *log.Logger
}

func NewPaperFetcher(cfg config.SourcesConfig) *PaperFetcher {
	return &PaperFetcher{
		cfg:      cfg,
		client:   &http.Client{Timeout: 30 * time.Second},
		endpoint: arxivEndpoint,
		logger:   log.New(log.Writer(), "[FETCH] ", log.LstdFlags),
	}
}

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string `xml:"id"`
	Title     string `xml:"title"`
	Summary   string `xml:"summary"`
	Published string `xml:"published"`
	Authors   []struct {
		Name string `xml:"name"`
	} `xml:"author"`
	DOI   string `xml:"doi"`
	Links []struct {
		Href string `xml:"href,attr"`
		Rel  string `xml:"rel,attr"`
	} `xml:"link"`
}

// Recent fetches the newest submissions for the configured query, sorted
// by submission date.
func (f *PaperFetcher) Recent(ctx context.Context) ([]Paper, error) {
	max := f.cfg.PaperMaxResults
	if max < 1 {
		max = 3
	}
	params := url.Values{}
	params.Set("search_query", f.cfg.PaperQuery)
	params.Set("max_results", fmt.Sprintf("%d", max))
	params.Set("sortBy", "submittedDate")
	params.Set("sortOrder", "descending")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("paper query failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("paper query returned status %d", resp.StatusCode)
	}
	var feed atomFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	papers := make([]Paper, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		p := Paper{
			Title:   collapseWhitespace(entry.Title),
			Summary: collapseWhitespace(entry.Summary),
			URL:     entry.ID,
			DOI:     entry.DOI,
		}
		for _, a := range entry.Authors {
			p.Authors = append(p.Authors, a.Name)
		}
		for _, link := range entry.Links {
			if link.Rel == "alternate" && link.Href != "" {
				p.URL = link.Href
			}
		}
		if t, err := time.Parse(time.RFC3339, entry.Published); err == nil {
			p.Published = t
		}
		papers = append(papers, p)
	}
	f.logger.Printf("fetched %d paper(s) for query %q", len(papers), f.cfg.PaperQuery)
	return papers, nil
}

// collapseWhitespace flattens the newline-indented text arXiv embeds in
// Atom fields.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// DigestText formats papers into the numbered source text handed to the
// script generator, one block per paper.
func DigestText(papers []Paper) string {
	var b strings.Builder
	for i, p := range papers {
		fmt.Fprintf(&b, "論文%d: %s\n", i+1, p.Title)
		if len(p.Authors) > 0 {
			fmt.Fprintf(&b, "著者: %s\n", strings.Join(p.Authors, ", "))
		}
		fmt.Fprintf(&b, "概要: %s\n\n", p.Summary)
	}
	return strings.TrimSpace(b.String())
}

// PaperReferences converts papers into the numbered citation records
// carried into the video description.
func PaperReferences(papers []Paper) []script.Reference {
	refs := make([]script.Reference, 0, len(papers))
	for i, p := range papers {
		refs = append(refs, script.Reference{
			Type:      "paper",
			Number:    i + 1,
			Title:     p.Title,
			Authors:   strings.Join(p.Authors, ", "),
			URL:       p.URL,
			DOI:       p.DOI,
			Source:    "arXiv",
			Published: p.Published.Format("2006-01-02"),
		})
	}
	return refs
}
