// Package publish pushes generated apps to GitHub and serves them over
// GitHub Pages.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/go-github/v55/github"
	"golang.org/x/oauth2"
)

type Client struct {
	gh    *github.Client
	owner string
}

func New(ctx context.Context, token string, owner string) *Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(ctx, ts)
	return &Client{
		gh:    github.NewClient(tc),
		owner: owner,
	}
}

// NewWithGithubClient wraps an existing client (for testing).
func NewWithGithubClient(gh *github.Client, owner string) *Client {
	return &Client{gh: gh, owner: owner}
}

func isNotFound(resp *github.Response) bool {
	return resp != nil && resp.StatusCode == http.StatusNotFound
}

// EnsureRepo returns the HTML URL of the named repository, creating a
// public one when it doesn't exist yet.
func (c *Client) EnsureRepo(ctx context.Context, name string, description string) (string, error) {
	repo, resp, err := c.gh.Repositories.Get(ctx, c.owner, name)
	if err == nil {
		slog.Debug("repo already exists", "repo", repo.GetFullName())
		return repo.GetHTMLURL(), nil
	}
	if !isNotFound(resp) {
		return "", fmt.Errorf("failed to look up repo %s: %v", name, err)
	}

	repo, _, err = c.gh.Repositories.Create(ctx, "", &github.Repository{
		Name:        github.String(name),
		Description: github.String(description),
		Private:     github.Bool(false),
		AutoInit:    github.Bool(false),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create repo %s: %v", name, err)
	}
	slog.Info("created repo", "repo", repo.GetFullName())
	return repo.GetHTMLURL(), nil
}

// PutFile creates or updates a file through the contents API. Updates need
// the SHA of the existing blob, so look it up first.
func (c *Client) PutFile(ctx context.Context, repo string, path string, content []byte, message string) error {
	opts := &github.RepositoryContentFileOptions{
		Message: github.String(message),
		Content: content,
	}

	existing, _, resp, err := c.gh.Repositories.GetContents(ctx, c.owner, repo, path, nil)
	if err != nil {
		if !isNotFound(resp) {
			return fmt.Errorf("failed to check %s in %s: %v", path, repo, err)
		}
		if _, _, err := c.gh.Repositories.CreateFile(ctx, c.owner, repo, path, opts); err != nil {
			return fmt.Errorf("failed to create %s in %s: %v", path, repo, err)
		}
		slog.Debug("created file", "repo", repo, "path", path)
		return nil
	}

	opts.SHA = github.String(existing.GetSHA())
	if _, _, err := c.gh.Repositories.UpdateFile(ctx, c.owner, repo, path, opts); err != nil {
		return fmt.Errorf("failed to update %s in %s: %v", path, repo, err)
	}
	slog.Debug("updated file", "repo", repo, "path", path)
	return nil
}

// ReadFile returns the decoded contents of a file, or "" when it doesn't
// exist.
func (c *Client) ReadFile(ctx context.Context, repo string, path string) (string, error) {
	fileContent, _, resp, err := c.gh.Repositories.GetContents(ctx, c.owner, repo, path, nil)
	if err != nil {
		if isNotFound(resp) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read %s in %s: %v", path, repo, err)
	}
	content, err := fileContent.GetContent()
	if err != nil {
		return "", fmt.Errorf("failed to decode %s in %s: %v", path, repo, err)
	}
	return content, nil
}

// EnablePages turns on GitHub Pages from the main branch root. A conflict
// means Pages was already enabled, which is fine for rebuild rounds.
func (c *Client) EnablePages(ctx context.Context, repo string) error {
	_, resp, err := c.gh.Repositories.EnablePages(ctx, c.owner, repo, &github.Pages{
		Source: &github.PagesSource{
			Branch: github.String("main"),
			Path:   github.String("/"),
		},
	})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusConflict {
			slog.Debug("pages already enabled", "repo", repo)
			return nil
		}
		return fmt.Errorf("failed to enable pages for %s: %v", repo, err)
	}
	return nil
}

// LatestCommitSHA returns the SHA of the most recent commit on the default
// branch, or "" for an empty repo.
func (c *Client) LatestCommitSHA(ctx context.Context, repo string) (string, error) {
	commits, resp, err := c.gh.Repositories.ListCommits(ctx, c.owner, repo, &github.CommitsListOptions{
		ListOptions: github.ListOptions{PerPage: 1},
	})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusConflict {
			// 409 is what GitHub returns for a repo with no commits
			return "", nil
		}
		return "", fmt.Errorf("failed to list commits for %s: %v", repo, err)
	}
	if len(commits) == 0 {
		return "", nil
	}
	return commits[0].GetSHA(), nil
}

// PagesURL is where the published app will be served once Pages builds.
func (c *Client) PagesURL(repo string) string {
	return fmt.Sprintf("https://%s.github.io/%s/", c.owner, repo)
}

// Owner returns the account the client publishes under.
func (c *Client) Owner() string {
	return c.owner
}
