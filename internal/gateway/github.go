// Package gateway provides a gateway to the GitHub API,
// abstracting away the underlying REST and GraphQL clients.
package gateway

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"

	"github.com/naka-gawa/github-taskmail/internal/config"
	"github.com/naka-gawa/github-taskmail/internal/domain"
)

// Fetcher defines the behavior of a gateway for fetching information from GitHub.
type Fetcher interface {
	// Authenticate verifies the credential and returns the login it belongs to.
	Authenticate(ctx context.Context) (string, error)
	// SearchOpenItems returns every open issue and pull request of repo ("owner/name").
	SearchOpenItems(ctx context.Context, repo string) ([]*domain.Record, error)
	// LookupEmail returns the public email of login, "" when it is not set.
	LookupEmail(ctx context.Context, login string) (string, error)
}

// GitHubGateway is the concrete implementation of the Fetcher interface.
type GitHubGateway struct {
	restClient    *github.Client
	graphqlClient *githubv4.Client
	logger        *log.Logger
}

// userEmailQuery reads the public profile email of a user.
type userEmailQuery struct {
	User struct {
		Email githubv4.String
	} `graphql:"user(login: $login)"`
}

// NewGitHubGateway is a constructor that creates a new instance of GitHubGateway.
func NewGitHubGateway(cfg config.GitHubConfig, logger *log.Logger) (Fetcher, error) {
	var base http.RoundTripper = http.DefaultTransport
	if cfg.WaitOnRateLimit {
		rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(nil, github_ratelimit.WithSingleSleepLimit(1*time.Hour, nil))
		if err != nil {
			return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
		}
		base = rateLimitWaiter
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Base:   base,
			Source: ts,
		},
	}

	restClient := github.NewClient(httpClient)
	graphqlClient := githubv4.NewClient(httpClient)
	if cfg.BaseURL != "" {
		var err error
		restClient, err = restClient.WithEnterpriseURLs(cfg.BaseURL, cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to configure enterprise URL: %w", err)
		}
		graphqlClient = githubv4.NewEnterpriseClient(graphQLEndpoint(cfg.BaseURL), httpClient)
	}

	return &GitHubGateway{
		restClient:    restClient,
		graphqlClient: graphqlClient,
		logger:        logger,
	}, nil
}

// graphQLEndpoint derives the GraphQL URL of a GitHub Enterprise REST base URL
// ("https://host/api/v3/" -> "https://host/api/graphql").
func graphQLEndpoint(baseURL string) string {
	u := strings.TrimSuffix(baseURL, "/")
	u = strings.TrimSuffix(u, "/v3")
	return u + "/graphql"
}

func (g *GitHubGateway) Authenticate(ctx context.Context) (string, error) {
	user, _, err := g.restClient.Users.Get(ctx, "")
	if err != nil {
		return "", fmt.Errorf("failed to authenticate with REST API: %w", err)
	}
	return user.GetLogin(), nil
}

func (g *GitHubGateway) SearchOpenItems(ctx context.Context, repo string) ([]*domain.Record, error) {
	g.logger.Printf("Fetching open issues and pull requests of %s...", repo)
	query := fmt.Sprintf("repo:%s is:open", repo)
	opts := &github.SearchOptions{ListOptions: github.ListOptions{PerPage: 100}}
	var records []*domain.Record
	total, incomplete := 0, false
	for {
		result, resp, err := g.restClient.Search.Issues(ctx, query, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to search issues with REST API: %w", err)
		}
		total = result.GetTotal()
		incomplete = incomplete || result.GetIncompleteResults()
		for _, issue := range result.Issues {
			records = append(records, toRecord(repo, issue))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
		g.logger.Printf("  Fetching next page of %s...", repo)
	}
	// The search API serves at most 1000 results per query.
	if total > len(records) || incomplete {
		g.logger.Printf("Warning: search for %s returned %d of %d open items (incomplete: %t); the rest are not evaluated.", repo, len(records), total, incomplete)
	}
	g.logger.Printf("Completed fetching %s: %d open items.", repo, len(records))
	return records, nil
}

func (g *GitHubGateway) LookupEmail(ctx context.Context, login string) (string, error) {
	var q userEmailQuery
	variables := map[string]interface{}{"login": githubv4.String(login)}
	if err := g.graphqlClient.Query(ctx, &q, variables); err != nil {
		return "", fmt.Errorf("failed to execute GraphQL query for user %s: %w", login, err)
	}
	return string(q.User.Email), nil
}

func toRecord(repo string, issue *github.Issue) *domain.Record {
	rec := &domain.Record{
		ID:         issue.GetID(),
		Number:     issue.GetNumber(),
		Repository: repo,
		Title:      issue.GetTitle(),
		URL:        issue.GetHTMLURL(),
		Author:     issue.GetUser().GetLogin(),
		Assignee:   issue.GetAssignee().GetLogin(),
		Comments:   issue.GetComments(),
		CreatedAt:  issue.GetCreatedAt().Time,
		UpdatedAt:  issue.GetUpdatedAt().Time,
		Fields: map[string]any{
			"body":               issue.GetBody(),
			"author_association": issue.GetAuthorAssociation(),
		},
	}
	for _, label := range issue.Labels {
		rec.Labels = append(rec.Labels, label.GetName())
	}
	assignees := make([]string, 0, len(issue.Assignees))
	for _, a := range issue.Assignees {
		assignees = append(assignees, a.GetLogin())
	}
	rec.Fields["assignees"] = assignees
	if issue.Milestone != nil {
		rec.Fields["milestone"] = issue.Milestone.GetTitle()
	}
	if issue.PullRequestLinks != nil {
		rec.PullRequest = &domain.PullRequestRef{URL: issue.PullRequestLinks.GetURL()}
	}
	return rec
}
