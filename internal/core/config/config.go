// Package config handles loading prkeeper configuration: the required
// per-run inputs from the environment and the optional labelling policy
// from a YAML file.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variables required for every run. Missing any of them is a
// fatal startup error.
const (
	EnvToken    = "GITHUB_TOKEN"
	EnvRepo     = "REPO_NAME"
	EnvPRNumber = "PR_NUMBER"
	EnvBranch   = "BRANCH_NAME"
	EnvTitle    = "PR_TITLE"
)

// Config is the effective configuration for a single run.
type Config struct {
	// Owner and Repo identify the repository ("owner/repo" in REPO_NAME).
	Owner string
	Repo  string

	// PRNumber is the pull request being processed.
	PRNumber int

	// Branch is the PR's head branch as reported by the CI environment.
	// It feeds the rule engine; milestone policy matches the base branch
	// read from the fetched PR instead.
	Branch string

	// Title is the PR title as reported by the CI environment.
	Title string

	// Token is the API credential.
	Token string

	// Policy holds the labelling/milestone policy.
	Policy Policy
}

// Policy is the tunable part of the configuration. All fields are optional
// in the YAML file; zero values fall back to the built-in defaults.
type Policy struct {
	// SystemLabels are the only labels the reconciler may remove.
	SystemLabels []string `yaml:"system_labels,omitempty"`

	// TicketPattern matches issue-tracker keys (e.g. "PROJ-42").
	TicketPattern string `yaml:"ticket_pattern,omitempty"`

	// CachePattern is matched case-insensitively against source file
	// content to detect cacheable components.
	CachePattern string `yaml:"cache_pattern,omitempty"`

	// SourceSuffixes are the file suffixes subject to content scanning.
	SourceSuffixes []string `yaml:"source_suffixes,omitempty"`

	// LabelColor is the color used for labels created by the reconciler.
	LabelColor string `yaml:"label_color,omitempty"`

	// Milestones maps base-branch prefixes to milestone titles.
	// Ordered; the first matching prefix wins.
	Milestones []MilestoneRule `yaml:"milestones,omitempty"`

	// Steps overrides the pipeline step list.
	Steps []string `yaml:"steps,omitempty"`
}

// MilestoneRule maps a base-branch prefix to a milestone title.
type MilestoneRule struct {
	Prefix    string `yaml:"prefix"`
	Milestone string `yaml:"milestone"`
}

// DefaultPolicy returns the built-in policy.
func DefaultPolicy() Policy {
	return Policy{
		SystemLabels:   []string{"IMPEX", "CACHE", "ITEMS", "conflict"},
		TicketPattern:  `[A-Z]{2,4}-\d+`,
		CachePattern:   `@cacheable|@cacheble`,
		SourceSuffixes: []string{".java"},
		LabelColor:     "ededed",
		Milestones: []MilestoneRule{
			{Prefix: "development", Milestone: "sprint-dev"},
			{Prefix: "feature/marketplace", Milestone: "marketplace"},
			{Prefix: "release/upgrade", Milestone: "cloud"},
			{Prefix: "offline_kasa", Milestone: "offline-kasa"},
		},
		Steps: []string{"changes", "rules", "labels", "milestone"},
	}
}

// FromEnv builds a Config from the required environment variables and the
// default policy.
func FromEnv() (*Config, error) {
	var missing []string
	get := func(key string) string {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}

	token := get(EnvToken)
	repoName := get(EnvRepo)
	prNumber := get(EnvPRNumber)
	branch := get(EnvBranch)
	title := get(EnvTitle)

	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	owner, repo, err := splitRepoName(repoName)
	if err != nil {
		return nil, err
	}

	number, err := strconv.Atoi(prNumber)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", EnvPRNumber, prNumber, err)
	}

	return &Config{
		Owner:    owner,
		Repo:     repo,
		PRNumber: number,
		Branch:   branch,
		Title:    title,
		Token:    token,
		Policy:   DefaultPolicy(),
	}, nil
}

// LoadPolicy reads a policy file and merges it over the defaults.
// Environment variables in the YAML content are expanded before parsing.
func LoadPolicy(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("failed to read policy file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var p Policy
	if err := yaml.Unmarshal([]byte(expanded), &p); err != nil {
		return Policy{}, fmt.Errorf("failed to parse policy file: %w", err)
	}

	p.applyDefaults()
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// Validate checks that the policy's patterns compile. A broken pattern is a
// configuration error and fails the run before any remote state is touched.
func (p Policy) Validate() error {
	if _, err := regexp.Compile(p.TicketPattern); err != nil {
		return fmt.Errorf("invalid ticket_pattern %q: %w", p.TicketPattern, err)
	}
	if _, err := regexp.Compile(`(?i:` + p.CachePattern + `)`); err != nil {
		return fmt.Errorf("invalid cache_pattern %q: %w", p.CachePattern, err)
	}
	return nil
}

// applyDefaults fills unset policy fields from the built-in policy.
func (p *Policy) applyDefaults() {
	def := DefaultPolicy()
	if len(p.SystemLabels) == 0 {
		p.SystemLabels = def.SystemLabels
	}
	if p.TicketPattern == "" {
		p.TicketPattern = def.TicketPattern
	}
	if p.CachePattern == "" {
		p.CachePattern = def.CachePattern
	}
	if len(p.SourceSuffixes) == 0 {
		p.SourceSuffixes = def.SourceSuffixes
	}
	if p.LabelColor == "" {
		p.LabelColor = def.LabelColor
	}
	if len(p.Milestones) == 0 {
		p.Milestones = def.Milestones
	}
	if len(p.Steps) == 0 {
		p.Steps = def.Steps
	}
}

func splitRepoName(repoName string) (owner, repo string, err error) {
	parts := strings.Split(repoName, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid %s: expected 'owner/repo', got %q", EnvRepo, repoName)
	}
	return parts[0], parts[1], nil
}
