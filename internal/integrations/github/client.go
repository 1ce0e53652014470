// Package github wraps the GitHub API operations prkeeper needs: pull
// request lookup, the label catalog, label mutations, and milestones.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v60/github"
	"golang.org/x/oauth2"
)

// Client wraps the GitHub API client.
type Client struct {
	client *github.Client
}

// NewClient creates a new GitHub client using the provided token.
// If token is empty, it returns an unauthenticated client.
func NewClient(ctx context.Context, token string) *Client {
	var tc *http.Client

	if token != "" {
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: token},
		)
		tc = oauth2.NewClient(ctx, ts)
	}

	return &Client{
		client: github.NewClient(tc),
	}
}

// GetPullRequest fetches pull request details.
func (c *Client) GetPullRequest(ctx context.Context, owner, repo string, number int) (*github.PullRequest, error) {
	pr, _, err := c.client.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pull request #%d: %w", number, err)
	}
	return pr, nil
}

// ListRepoLabels returns the names of all labels defined in the repository.
func (c *Client) ListRepoLabels(ctx context.Context, owner, repo string) ([]string, error) {
	opts := &github.ListOptions{PerPage: 100}
	var names []string
	for {
		labels, resp, err := c.client.Issues.ListLabels(ctx, owner, repo, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list repository labels: %w", err)
		}
		for _, l := range labels {
			names = append(names, l.GetName())
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return names, nil
}

// CreateLabel creates a repository label with the given color.
func (c *Client) CreateLabel(ctx context.Context, owner, repo, name, color string) error {
	label := &github.Label{
		Name:  github.String(name),
		Color: github.String(color),
	}
	_, _, err := c.client.Issues.CreateLabel(ctx, owner, repo, label)
	if err != nil {
		return fmt.Errorf("failed to create label %q: %w", name, err)
	}
	return nil
}

// AddLabels adds labels to a pull request.
func (c *Client) AddLabels(ctx context.Context, owner, repo string, number int, labels []string) error {
	if len(labels) == 0 {
		return fmt.Errorf("labels cannot be empty")
	}

	_, _, err := c.client.Issues.AddLabelsToIssue(ctx, owner, repo, number, labels)
	if err != nil {
		return fmt.Errorf("failed to add labels: %w", err)
	}
	return nil
}

// RemoveLabel removes a single label from a pull request.
func (c *Client) RemoveLabel(ctx context.Context, owner, repo string, number int, label string) error {
	_, err := c.client.Issues.RemoveLabelForIssue(ctx, owner, repo, number, label)
	if err != nil {
		return fmt.Errorf("failed to remove label %q: %w", label, err)
	}
	return nil
}

// ListMilestones returns all milestones, open and closed, so an existing
// closed milestone is still matched instead of recreated.
func (c *Client) ListMilestones(ctx context.Context, owner, repo string) ([]*github.Milestone, error) {
	opts := &github.MilestoneListOptions{
		State:       "all",
		ListOptions: github.ListOptions{PerPage: 100},
	}
	var milestones []*github.Milestone
	for {
		page, resp, err := c.client.Issues.ListMilestones(ctx, owner, repo, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list milestones: %w", err)
		}
		milestones = append(milestones, page...)
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return milestones, nil
}

// CreateMilestone creates a milestone with the given title.
func (c *Client) CreateMilestone(ctx context.Context, owner, repo, title string) (*github.Milestone, error) {
	milestone, _, err := c.client.Issues.CreateMilestone(ctx, owner, repo, &github.Milestone{
		Title: github.String(title),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create milestone %q: %w", title, err)
	}
	return milestone, nil
}

// SetMilestone assigns a milestone to a pull request through the issues
// edit endpoint.
func (c *Client) SetMilestone(ctx context.Context, owner, repo string, number, milestone int) error {
	_, _, err := c.client.Issues.Edit(ctx, owner, repo, number, &github.IssueRequest{
		Milestone: github.Int(milestone),
	})
	if err != nil {
		return fmt.Errorf("failed to set milestone via issue edit: %w", err)
	}
	return nil
}

// PatchIssueMilestone assigns a milestone by patching the issue resource
// directly. This is the fallback path when SetMilestone fails.
func (c *Client) PatchIssueMilestone(ctx context.Context, owner, repo string, number, milestone int) error {
	url := fmt.Sprintf("repos/%s/%s/issues/%d", owner, repo, number)
	req, err := c.client.NewRequest(http.MethodPatch, url, map[string]int{"milestone": milestone})
	if err != nil {
		return fmt.Errorf("failed to build issue patch request: %w", err)
	}
	if _, err := c.client.Do(ctx, req, nil); err != nil {
		return fmt.Errorf("failed to patch issue milestone: %w", err)
	}
	return nil
}

// IsAlreadyExists reports whether err is the API's "already_exists"
// validation failure, e.g. from racing another run on label creation.
func IsAlreadyExists(err error) bool {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) {
		for _, e := range ghErr.Errors {
			if e.Code == "already_exists" {
				return true
			}
		}
	}
	return strings.Contains(fmt.Sprint(err), "already_exists")
}
