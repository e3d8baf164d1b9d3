package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"

	"github.com/eegflow/scriptcast/config"
	"github.com/eegflow/scriptcast/internal/script"
)

// WikiItem is one article reference from the recent-changes feed.
type WikiItem struct {
	Title string
	URL   string
}

// WikiFetcher pulls recently changed articles from a MediaWiki site and
// extracts their readable text.
type WikiFetcher struct {
	cfg    config.SourcesConfig
	client *http.Client
	logger *log.Logger
}

func NewWikiFetcher(cfg config.SourcesConfig) *WikiFetcher {
	return &WikiFetcher{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: log.New(log.Writer(), "[FETCH] ", log.LstdFlags),
	}
}

// RecentArticles lists up to limit recently changed main-namespace pages
// through the MediaWiki query API.
func (f *WikiFetcher) RecentArticles(ctx context.Context, limit int) ([]WikiItem, error) {
	if limit < 1 {
		limit = 10
	}
	endpoint := fmt.Sprintf(
		"%s/api.php?action=query&list=recentchanges&rcnamespace=0&rctype=new|edit&rclimit=%d&format=json",
		strings.TrimRight(f.cfg.WikiBaseURL, "/"), limit,
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("recent changes request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("recent changes returned status %d", resp.StatusCode)
	}
	var payload struct {
		Query struct {
			RecentChanges []struct {
				Title string `json:"title"`
			} `json:"recentchanges"`
		} `json:"query"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to parse recent changes: %w", err)
	}
	seen := map[string]bool{}
	items := make([]WikiItem, 0, len(payload.Query.RecentChanges))
	for _, rc := range payload.Query.RecentChanges {
		if rc.Title == "" || seen[rc.Title] {
			continue
		}
		seen[rc.Title] = true
		items = append(items, WikiItem{
			Title: rc.Title,
			URL:   f.articleURL(rc.Title),
		})
	}
	f.logger.Printf("found %d recent article(s)", len(items))
	return items, nil
}

func (f *WikiFetcher) articleURL(title string) string {
	return fmt.Sprintf("%s%s%s",
		strings.TrimRight(f.cfg.WikiBaseURL, "/"),
		f.cfg.WikiRecentPath,
		url.PathEscape(strings.ReplaceAll(title, " ", "_")),
	)
}

// FetchArticle downloads an article page and reduces it to readable text.
func (f *WikiFetcher) FetchArticle(ctx context.Context, item WikiItem) (*script.SourceDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, item.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("article request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("article %q returned status %d", item.Title, resp.StatusCode)
	}
	html, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read article body: %w", err)
	}
	parsed, err := url.Parse(item.URL)
	if err != nil {
		return nil, fmt.Errorf("bad article url %q: %w", item.URL, err)
	}
	article, err := readability.FromReader(strings.NewReader(string(html)), parsed)
	if err != nil {
		return nil, fmt.Errorf("readability extraction failed for %q: %w", item.Title, err)
	}
	body := strings.TrimSpace(article.TextContent)
	if body == "" {
		return nil, fmt.Errorf("article %q has no readable text", item.Title)
	}
	title := strings.TrimSpace(article.Title)
	if title == "" {
		title = item.Title
	}
	return &script.SourceDocument{Title: title, Body: body, URL: item.URL}, nil
}
