// Package github provides the version-control collaborator. All operations
// return tagged results rather than errors: version-control side effects are
// best-effort and must never abort the pipeline.
package github

import (
	"context"
	"fmt"
	"strings"
	"time"

	gh "github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"

	execpkg "devteam/pkg/exec"
	"devteam/pkg/logx"
)

// DefaultBranch is the default base branch for branch and PR operations.
const DefaultBranch = "main"

// ResultStatus is the closed set of version-control operation outcomes.
type ResultStatus string

const (
	StatusSuccess ResultStatus = "success"
	StatusWarning ResultStatus = "warning"
	StatusError   ResultStatus = "error"
)

// Result is the tagged outcome of a version-control operation.
type Result struct {
	Status  ResultStatus
	Message string
}

// OK reports whether the operation succeeded.
func (r Result) OK() bool {
	return r.Status == StatusSuccess
}

// Client wraps the GitHub API for the pipeline's side-effect operations.
type Client struct {
	api      *gh.Client
	executor execpkg.Executor
	logger   *logx.Logger
	owner    string
	repo     string
	timeout  time.Duration
}

// NewClient creates an authenticated GitHub client. The token is used both
// for API calls and (via the environment) for git pushes.
func NewClient(ctx context.Context, token, owner, repo string) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("github token not set")
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(ctx, ts)

	return &Client{
		api:      gh.NewClient(tc),
		executor: execpkg.NewLocalExec(),
		logger:   logx.NewLogger("github"),
		owner:    owner,
		repo:     repo,
		timeout:  30 * time.Second,
	}, nil
}

// WithTimeout returns a copy of the client with the specified timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	copied := *c
	copied.timeout = timeout
	return &copied
}

// WithBaseURL redirects API calls to the given endpoint, typically a local
// test server. The URL must end in a slash.
func (c *Client) WithBaseURL(rawURL string) (*Client, error) {
	api, err := c.api.WithEnterpriseURLs(rawURL, rawURL)
	if err != nil {
		return nil, err
	}
	copied := *c
	copied.api = api
	return &copied, nil
}

// WithExecutor returns a copy of the client using the given executor for git
// subprocesses.
func (c *Client) WithExecutor(executor execpkg.Executor) *Client {
	copied := *c
	copied.executor = executor
	return &copied
}

// RepoPath returns the owner/repo path.
func (c *Client) RepoPath() string {
	return fmt.Sprintf("%s/%s", c.owner, c.repo)
}

// SetRepository rebinds the client to a different repository under the same
// owner, used after create_repository.
func (c *Client) SetRepository(repo string) {
	c.repo = repo
}

// HasRepository reports whether the client is bound to a repository.
func (c *Client) HasRepository() bool {
	return c.repo != ""
}

// CreateBranch creates a branch from the head of base. An already-existing
// branch is a warning, not an error.
func (c *Client) CreateBranch(ctx context.Context, name, base string) Result {
	if !c.HasRepository() {
		return Result{Status: StatusWarning, Message: "no repository configured"}
	}
	if base == "" {
		base = DefaultBranch
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	baseRef, _, err := c.api.Git.GetRef(ctx, c.owner, c.repo, "refs/heads/"+base)
	if err != nil {
		return c.errorResult("failed to resolve base branch %s: %v", base, err)
	}

	newRef := &gh.Reference{
		Ref:    gh.String("refs/heads/" + name),
		Object: &gh.GitObject{SHA: baseRef.Object.SHA},
	}
	if _, _, err := c.api.Git.CreateRef(ctx, c.owner, c.repo, newRef); err != nil {
		// 422 means the ref already exists; treat as reusable.
		if resp, ok := err.(*gh.ErrorResponse); ok && resp.Response != nil && resp.Response.StatusCode == 422 {
			return Result{Status: StatusWarning, Message: fmt.Sprintf("branch %s already exists", name)}
		}
		return c.errorResult("failed to create branch %s: %v", name, err)
	}

	c.logger.Info("created branch %s from %s on %s", name, base, c.RepoPath())
	return Result{Status: StatusSuccess, Message: fmt.Sprintf("created branch %s", name)}
}

// Commit stages all changes in workDir, commits to the given branch, and
// pushes. Nothing-to-commit is a warning.
func (c *Client) Commit(ctx context.Context, message, branch, workDir string) Result {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	steps := [][]string{
		{"git", "checkout", "-B", branch},
		{"git", "add", "-A"},
		{"git", "commit", "-m", message},
	}
	for _, cmd := range steps {
		result, err := c.executor.Run(ctx, cmd, &execpkg.Opts{WorkDir: workDir, Timeout: c.timeout})
		if err != nil {
			return c.errorResult("git failed to start: %v", err)
		}
		if result.Failed() {
			if strings.Contains(result.Stdout+result.Stderr, "nothing to commit") {
				return Result{Status: StatusWarning, Message: "nothing to commit"}
			}
			return c.errorResult("git %s failed: %s", cmd[1], result.Stderr)
		}
	}

	push, err := c.executor.Run(ctx, []string{"git", "push", "-u", "origin", branch},
		&execpkg.Opts{WorkDir: workDir, Timeout: c.timeout})
	if err != nil {
		return c.errorResult("git push failed to start: %v", err)
	}
	if push.Failed() {
		return c.errorResult("git push failed: %s", push.Stderr)
	}

	c.logger.Info("committed and pushed to %s: %s", branch, message)
	return Result{Status: StatusSuccess, Message: fmt.Sprintf("committed to %s", branch)}
}

// CreatePullRequest opens a PR from head into base.
func (c *Client) CreatePullRequest(ctx context.Context, title, body, head, base string) Result {
	if !c.HasRepository() {
		return Result{Status: StatusWarning, Message: "no repository configured"}
	}
	if base == "" {
		base = DefaultBranch
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	pr, _, err := c.api.PullRequests.Create(ctx, c.owner, c.repo, &gh.NewPullRequest{
		Title: gh.String(title),
		Body:  gh.String(body),
		Head:  gh.String(head),
		Base:  gh.String(base),
	})
	if err != nil {
		return c.errorResult("failed to create pull request: %v", err)
	}

	c.logger.Info("opened PR #%d: %s", pr.GetNumber(), title)
	return Result{Status: StatusSuccess, Message: pr.GetHTMLURL()}
}

// CreateRepository creates a repository under the authenticated user and
// rebinds the client to it on success.
func (c *Client) CreateRepository(ctx context.Context, name, description string, private bool) Result {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	repo, _, err := c.api.Repositories.Create(ctx, "", &gh.Repository{
		Name:        gh.String(name),
		Description: gh.String(description),
		Private:     gh.Bool(private),
	})
	if err != nil {
		return c.errorResult("failed to create repository %s: %v", name, err)
	}

	c.repo = repo.GetName()
	c.logger.Info("created repository %s", c.RepoPath())
	return Result{Status: StatusSuccess, Message: repo.GetHTMLURL()}
}

// errorResult logs and returns an error-tagged result. Callers log but never
// raise; the pipeline continues.
func (c *Client) errorResult(format string, args ...any) Result {
	message := fmt.Sprintf(format, args...)
	c.logger.Warn("%s", message)
	return Result{Status: StatusError, Message: message}
}

