package vcs

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"

	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v84/github"
	"golang.org/x/oauth2"
)

// maxSearchResults bounds the paths taken from each keyword search.
const maxSearchResults = 5

// GitHubHost opens pull requests on a GitHub repository.
type GitHubHost struct {
	client     *github.Client
	owner      string
	repo       string
	baseBranch string
}

// NewGitHubHost returns a host for repo ("owner/name") authenticated with token.
func NewGitHubHost(ctx context.Context, repo, token, baseBranch string) (*GitHubHost, error) {
	if repo == "" || token == "" {
		return nil, errors.New("GITHUB_REPO and GITHUB_TOKEN must be set")
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return newGitHubHost(github.NewClient(oauth2.NewClient(ctx, ts)), repo, baseBranch)
}

func newGitHubHost(client *github.Client, repo, baseBranch string) (*GitHubHost, error) {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" {
		return nil, fmt.Errorf("invalid repository %q, want owner/name", repo)
	}
	if baseBranch == "" {
		baseBranch = "main"
	}
	return &GitHubHost{client: client, owner: owner, repo: name, baseBranch: baseBranch}, nil
}

// SearchCode runs one code search per keyword, keeping the first few paths of
// each in first-seen order. A failing search is skipped.
func (h *GitHubHost) SearchCode(ctx context.Context, keywords []string) ([]string, error) {
	log := clog.FromContext(ctx)

	var paths []string
	seen := make(map[string]bool)
	for _, word := range keywords {
		query := fmt.Sprintf("%s repo:%s/%s", word, h.owner, h.repo)
		result, _, err := h.client.Search.Code(ctx, query, &github.SearchOptions{})
		if err != nil {
			if ctx.Err() != nil {
				return paths, ctx.Err()
			}
			log.Warnf("code search for %q failed: %v", word, err)
			continue
		}

		codeResults := result.CodeResults
		if len(codeResults) > maxSearchResults {
			codeResults = codeResults[:maxSearchResults]
		}
		for _, item := range codeResults {
			p := item.GetPath()
			if p == "" || seen[p] {
				continue
			}
			seen[p] = true
			paths = append(paths, p)
		}
	}
	return paths, nil
}

// CreateReview commits the fix to the bug's branch and opens a pull request
// against the base branch.
func (h *GitHubHost) CreateReview(ctx context.Context, req ReviewRequest) (string, error) {
	log := clog.FromContext(ctx)
	branch := BranchName(req.BugKey)

	if err := h.ensureBranch(ctx, branch); err != nil {
		return "", err
	}
	if len(req.Fix) > 0 {
		if err := h.commitFiles(ctx, branch, req.Fix, "Automated fix"); err != nil {
			return "", err
		}
	}

	pr, _, err := h.client.PullRequests.Create(ctx, h.owner, h.repo, &github.NewPullRequest{
		Title: github.Ptr("Fix: " + req.Summary),
		Head:  github.Ptr(branch),
		Base:  github.Ptr(h.baseBranch),
		Body:  github.Ptr("Automated fix"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create pull request: %w", err)
	}

	log.Infof("Created PR #%d: %s", pr.GetNumber(), pr.GetHTMLURL())
	return pr.GetHTMLURL(), nil
}

// ensureBranch creates branch from the head of the base branch if it does not exist.
func (h *GitHubHost) ensureBranch(ctx context.Context, branch string) error {
	_, resp, err := h.client.Git.GetRef(ctx, h.owner, h.repo, "heads/"+branch)
	if err == nil {
		return nil
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("failed to look up branch %s: %w", branch, err)
	}

	base, _, err := h.client.Git.GetRef(ctx, h.owner, h.repo, "heads/"+h.baseBranch)
	if err != nil {
		return fmt.Errorf("failed to look up base branch %s: %w", h.baseBranch, err)
	}

	ref := github.CreateRef{Ref: "refs/heads/" + branch, SHA: base.GetObject().GetSHA()}
	if _, _, err := h.client.Git.CreateRef(ctx, h.owner, h.repo, ref); err != nil {
		return fmt.Errorf("failed to create branch %s: %w", branch, err)
	}
	return nil
}

// commitFiles creates or updates each file on branch, one commit per file.
func (h *GitHubHost) commitFiles(ctx context.Context, branch string, files map[string]string, message string) error {
	for _, path := range slices.Sorted(maps.Keys(files)) {
		opts := &github.RepositoryContentFileOptions{
			Message: github.Ptr(message),
			Content: []byte(files[path]),
			Branch:  github.Ptr(branch),
		}

		existing, _, resp, err := h.client.Repositories.GetContents(ctx, h.owner, h.repo, path, &github.RepositoryContentGetOptions{Ref: branch})
		switch {
		case err == nil && existing.GetSHA() != "":
			opts.SHA = github.Ptr(existing.GetSHA())
			if _, _, err := h.client.Repositories.UpdateFile(ctx, h.owner, h.repo, path, opts); err != nil {
				return fmt.Errorf("failed to update %s: %w", path, err)
			}
		case err == nil || (resp != nil && resp.StatusCode == http.StatusNotFound):
			if _, _, err := h.client.Repositories.CreateFile(ctx, h.owner, h.repo, path, opts); err != nil {
				return fmt.Errorf("failed to create %s: %w", path, err)
			}
		default:
			return fmt.Errorf("failed to look up %s: %w", path, err)
		}
	}
	return nil
}

var _ ReviewHost = (*GitHubHost)(nil)
