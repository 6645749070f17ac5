package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/go-github/v62/github"
	"github.com/shurcooL/githubv4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naka-gawa/github-taskmail/internal/config"
)

// setupTestGateway creates a GitHubGateway that communicates with a mock HTTP server.
func setupTestGateway(t *testing.T, handler http.Handler) (*GitHubGateway, *httptest.Server) {
	server := httptest.NewServer(handler)

	// Setup REST client to point to the mock server.
	restClient := github.NewClient(server.Client())
	baseURL, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	restClient.BaseURL = baseURL

	// Use NewEnterpriseClient to point the GraphQL client to our mock server's URL.
	graphqlClient := githubv4.NewEnterpriseClient(server.URL, server.Client())
	logger := log.New(io.Discard, "", 0)

	gateway := &GitHubGateway{
		restClient:    restClient,
		graphqlClient: graphqlClient,
		logger:        logger,
	}

	return gateway, server
}

func TestGitHubGateway_SearchOpenItems(t *testing.T) {
	testCases := []struct {
		name           string
		handlerFunc    func(w http.ResponseWriter, r *http.Request)
		expectedCount  int
		expectError    bool
		expectedErrMsg string
	}{
		{
			name: "happy path - issue and pull request",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/search/issues", r.URL.Path)
				assert.Equal(t, "repo:org/repo1 is:open", r.URL.Query().Get("q"))
				w.WriteHeader(http.StatusOK)
				fmt.Fprint(w, `{"total_count": 2, "items": [
					{"id": 1, "number": 10, "title": "Crash", "html_url": "https://github.com/org/repo1/issues/10",
					 "user": {"login": "dave"}, "assignee": {"login": "alice"}, "assignees": [{"login": "alice"}],
					 "labels": [{"name": "bug"}], "comments": 3, "milestone": {"title": "v1"},
					 "created_at": "2024-01-02T03:04:05Z", "updated_at": "2024-02-02T03:04:05Z"},
					{"id": 2, "number": 11, "title": "Fix crash",
					 "pull_request": {"url": "https://api.github.com/repos/org/repo1/pulls/11"}}
				]}`)
			},
			expectedCount: 2,
		},
		{
			name: "error case - GitHub API returns an error",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				fmt.Fprint(w, `{"message": "Internal Server Error"}`)
			},
			expectError:    true,
			expectedErrMsg: "failed to search issues with REST API",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gateway, server := setupTestGateway(t, http.HandlerFunc(tc.handlerFunc))
			defer server.Close()
			records, err := gateway.SearchOpenItems(context.Background(), "org/repo1")
			if tc.expectError {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tc.expectedErrMsg)
				return
			}
			require.NoError(t, err)
			require.Len(t, records, tc.expectedCount)

			issue := records[0]
			assert.Equal(t, int64(1), issue.ID)
			assert.Equal(t, 10, issue.Number)
			assert.Equal(t, "org/repo1", issue.Repository)
			assert.Equal(t, "alice", issue.Assignee)
			assert.Equal(t, "dave", issue.Author)
			assert.Equal(t, []string{"bug"}, issue.Labels)
			assert.Equal(t, 3, issue.Comments)
			assert.Equal(t, "v1", issue.Fields["milestone"])
			assert.Equal(t, []string{"alice"}, issue.Fields["assignees"])
			assert.Equal(t, 2024, issue.CreatedAt.Year())
			assert.Nil(t, issue.PullRequest)

			pr := records[1]
			require.NotNil(t, pr.PullRequest)
			assert.Equal(t, "https://api.github.com/repos/org/repo1/pulls/11", pr.PullRequest.URL)
			assert.Empty(t, pr.Assignee)
		})
	}
}

func TestGitHubGateway_SearchOpenItems_Pagination(t *testing.T) {
	var serverURL string
	handler := func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "" {
			w.Header().Set("Link", fmt.Sprintf(`<%s/search/issues?q=x&page=2>; rel="next"`, serverURL))
			fmt.Fprint(w, `{"total_count": 2, "items": [{"id": 1}]}`)
			return
		}
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		fmt.Fprint(w, `{"total_count": 2, "items": [{"id": 2}]}`)
	}
	gateway, server := setupTestGateway(t, http.HandlerFunc(handler))
	defer server.Close()
	serverURL = server.URL

	records, err := gateway.SearchOpenItems(context.Background(), "org/repo1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, int64(1), records[0].ID)
	assert.Equal(t, int64(2), records[1].ID)
}

func TestGitHubGateway_SearchOpenItems_TruncatedResults(t *testing.T) {
	testCases := []struct {
		name          string
		responseBody  string
		expectWarning bool
	}{
		{
			name:          "total above what the search API returns",
			responseBody:  `{"total_count": 1500, "incomplete_results": false, "items": [{"id": 1}]}`,
			expectWarning: true,
		},
		{
			name:          "incomplete results",
			responseBody:  `{"total_count": 1, "incomplete_results": true, "items": [{"id": 1}]}`,
			expectWarning: true,
		},
		{
			name:         "complete results",
			responseBody: `{"total_count": 1, "incomplete_results": false, "items": [{"id": 1}]}`,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gateway, server := setupTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tc.responseBody)
			}))
			defer server.Close()
			var logs bytes.Buffer
			gateway.logger = log.New(&logs, "", 0)

			records, err := gateway.SearchOpenItems(context.Background(), "org/big")
			require.NoError(t, err)
			assert.Len(t, records, 1)
			if tc.expectWarning {
				assert.Contains(t, logs.String(), "Warning: search for org/big returned 1 of")
			} else {
				assert.NotContains(t, logs.String(), "Warning")
			}
		})
	}
}

func TestGitHubGateway_LookupEmail(t *testing.T) {
	testCases := []struct {
		name           string
		responseBody   string
		expectedEmail  string
		expectError    bool
		expectedErrMsg string
	}{
		{
			name:          "public email",
			responseBody:  `{"data":{"user":{"email":"bob@example.com"}}}`,
			expectedEmail: "bob@example.com",
		},
		{
			name:          "email not set",
			responseBody:  `{"data":{"user":{"email":""}}}`,
			expectedEmail: "",
		},
		{
			name:           "unknown user",
			responseBody:   `{"errors":[{"message":"Could not resolve to a User with the login of 'ghost'."}]}`,
			expectError:    true,
			expectedErrMsg: "failed to execute GraphQL query",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			handler := func(w http.ResponseWriter, r *http.Request) {
				body, err := io.ReadAll(r.Body)
				require.NoError(t, err)
				assert.Contains(t, string(body), "bob")
				w.WriteHeader(http.StatusOK)
				fmt.Fprint(w, tc.responseBody)
			}
			gateway, server := setupTestGateway(t, http.HandlerFunc(handler))
			defer server.Close()

			email, err := gateway.LookupEmail(context.Background(), "bob")
			if tc.expectError {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tc.expectedErrMsg)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.expectedEmail, email)
		})
	}
}

func TestGitHubGateway_Authenticate(t *testing.T) {
	t.Run("valid token", func(t *testing.T) {
		gateway, server := setupTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/user", r.URL.Path)
			fmt.Fprint(w, `{"login": "auditor"}`)
		}))
		defer server.Close()
		login, err := gateway.Authenticate(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "auditor", login)
	})
	t.Run("bad credentials", func(t *testing.T) {
		gateway, server := setupTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"message": "Bad credentials"}`)
		}))
		defer server.Close()
		_, err := gateway.Authenticate(context.Background())
		assert.ErrorContains(t, err, "failed to authenticate")
	})
}

func TestNewGitHubGateway(t *testing.T) {
	logger := log.New(io.Discard, "", 0)

	f, err := NewGitHubGateway(config.GitHubConfig{Token: "t", WaitOnRateLimit: true}, logger)
	require.NoError(t, err)
	assert.NotNil(t, f)

	f, err = NewGitHubGateway(config.GitHubConfig{Token: "t", BaseURL: "https://ghe.example.com/api/v3/"}, logger)
	require.NoError(t, err)
	g := f.(*GitHubGateway)
	assert.Equal(t, "https://ghe.example.com/api/v3/", g.restClient.BaseURL.String())
}

func TestGraphQLEndpoint(t *testing.T) {
	assert.Equal(t, "https://ghe.example.com/api/graphql", graphQLEndpoint("https://ghe.example.com/api/v3/"))
	assert.Equal(t, "https://ghe.example.com/api/graphql", graphQLEndpoint("https://ghe.example.com/api/v3"))
}
