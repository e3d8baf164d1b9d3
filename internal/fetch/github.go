package fetch

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	gh "github.com/google/go-github/v80/github"

	"github.com/eegflow/scriptcast/config"
	"github.com/eegflow/scriptcast/internal/script"
)

// Activity is a day's worth of repository events, the source material for
// a development-digest episode.
type Activity struct {
	Repo    string
	Commits []ActivityItem
	Pulls   []ActivityItem
	Issues  []ActivityItem
}

type ActivityItem struct {
	Title  string
	Author string
	URL    string
}

func (a *Activity) Empty() bool {
	return len(a.Commits) == 0 && len(a.Pulls) == 0 && len(a.Issues) == 0
}

// GithubFetcher collects recent activity from a single repository.
type GithubFetcher struct {
	gh     *gh.Client
	repo   string
	logger *log.Logger
}

func NewGithubFetcher(cfg config.SourcesConfig) *GithubFetcher {
	httpClient := &http.Client{Timeout: 30 * time.Second}
	client := gh.NewClient(httpClient)
	if cfg.GithubToken != "" {
		client = client.WithAuthToken(cfg.GithubToken)
	}
	return &GithubFetcher{
		gh:     client,
		repo:   cfg.GithubRepo,
		logger: log.New(log.Writer(), "[FETCH] ", log.LstdFlags),
	}
}

func (f *GithubFetcher) split() (string, string, error) {
	owner, name, ok := strings.Cut(f.repo, "/")
	if !ok || owner == "" || name == "" {
		return "", "", fmt.Errorf("github repo must be owner/name, got %q", f.repo)
	}
	return owner, name, nil
}

// RecentActivity gathers commits, pull requests, and issues updated since
// the given time.
func (f *GithubFetcher) RecentActivity(ctx context.Context, since time.Time) (*Activity, error) {
	owner, name, err := f.split()
	if err != nil {
		return nil, err
	}
	activity := &Activity{Repo: f.repo}

	commits, _, err := f.gh.Repositories.ListCommits(ctx, owner, name, &gh.CommitsListOptions{
		Since:       since,
		ListOptions: gh.ListOptions{PerPage: 30},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list commits: %w", err)
	}
	for _, c := range commits {
		message := c.GetCommit().GetMessage()
		if i := strings.IndexByte(message, '\n'); i >= 0 {
			message = message[:i]
		}
		activity.Commits = append(activity.Commits, ActivityItem{
			Title:  message,
			Author: c.GetCommit().GetAuthor().GetName(),
			URL:    c.GetHTMLURL(),
		})
	}

	issues, _, err := f.gh.Issues.ListByRepo(ctx, owner, name, &gh.IssueListByRepoOptions{
		State:       "all",
		Since:       since,
		ListOptions: gh.ListOptions{PerPage: 30},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}
	for _, is := range issues {
		item := ActivityItem{
			Title:  is.GetTitle(),
			Author: is.GetUser().GetLogin(),
			URL:    is.GetHTMLURL(),
		}
		// The issues API returns pull requests too; keep them apart.
		if is.IsPullRequest() {
			activity.Pulls = append(activity.Pulls, item)
		} else {
			activity.Issues = append(activity.Issues, item)
		}
	}

	f.logger.Printf("%s since %s: %d commit(s), %d pull(s), %d issue(s)",
		f.repo, since.Format("2006-01-02"), len(activity.Commits), len(activity.Pulls), len(activity.Issues))
	return activity, nil
}

// ActivityText formats repository activity into the source text for a
// development-digest script.
func ActivityText(a *Activity) string {
	var b strings.Builder
	fmt.Fprintf(&b, "リポジトリ %s の最近の動きです。\n\n", a.Repo)
	writeSection := func(header string, items []ActivityItem) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(&b, "%s:\n", header)
		for _, item := range items {
			if item.Author != "" {
				fmt.Fprintf(&b, "- %s (%s)\n", item.Title, item.Author)
			} else {
				fmt.Fprintf(&b, "- %s\n", item.Title)
			}
		}
		b.WriteString("\n")
	}
	writeSection("コミット", a.Commits)
	writeSection("プルリクエスト", a.Pulls)
	writeSection("イシュー", a.Issues)
	return strings.TrimSpace(b.String())
}

// ActivityReferences lists each pull request and issue as a citation.
func ActivityReferences(a *Activity) []script.Reference {
	var refs []script.Reference
	add := func(kind string, items []ActivityItem) {
		for _, item := range items {
			refs = append(refs, script.Reference{
				Type:   kind,
				Number: len(refs) + 1,
				Title:  item.Title,
				Author: item.Author,
				URL:    item.URL,
				Source: a.Repo,
			})
		}
	}
	add("pull_request", a.Pulls)
	add("issue", a.Issues)
	return refs
}
