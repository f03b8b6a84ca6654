package config

import (
	"context"
	"net/url"
	"os"

	"github.com/google/go-github/v56/github"
	"github.com/platformeng/infrarepo/envvar"
	"golang.org/x/oauth2"
)

// NewGitHubClient builds a GitHub API client authenticated with the
// GITHUB_TOKEN environment variable. INFRAREPO_GITHUB_BASE_URL overrides
// the API base URL for tests and GitHub Enterprise.
func NewGitHubClient() *github.Client {
	token := os.Getenv(envvar.GitHubToken)

	httpClient := oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	))
	client := github.NewClient(httpClient)

	if u := os.Getenv(envvar.GitHubBaseURL); u != "" {
		u, err := url.Parse(u)
		if err != nil {
			panic(err)
		}

		client.BaseURL = u
	}

	return client
}
