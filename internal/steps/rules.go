package steps

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/prkeeper/prkeeper/internal/core/config"
	"github.com/prkeeper/prkeeper/internal/core/pipeline"
	"github.com/prkeeper/prkeeper/internal/integrations/git"
	"github.com/prkeeper/prkeeper/internal/utils/text"
)

const (
	conflictPrefix = "conflict"
	conflictLabel  = "conflict"
	impexSuffix    = ".impex"
	impexLabel     = "IMPEX"
	itemsSuffix    = "-items.xml"
	itemsLabel     = "ITEMS"
	cacheLabel     = "CACHE"
)

// Rules computes the expected label set from the changed files, branch
// name, PR title, and commit subjects.
type Rules struct {
	root string
}

// NewRules creates a new rule engine step. root is the directory changed
// file paths are relative to.
func NewRules(deps *pipeline.Dependencies) *Rules {
	return &Rules{
		root: deps.Git.Dir(),
	}
}

// Name returns the step name.
func (s *Rules) Name() string {
	return "rules"
}

// Run evaluates all rules and stores the resulting label set on the context.
func (s *Rules) Run(ctx *pipeline.Context) error {
	rs, err := compileRules(ctx.Config.Policy)
	if err != nil {
		return err
	}

	ctx.Expected = rs.Evaluate(s.root, ctx.Changes, ctx.PR.HeadBranch, ctx.PR.Title, ctx.CommitSubjects)
	ctx.Result.ExpectedLabels = ctx.Expected.Sorted()

	ctx.Log.WithField("step", s.Name()).
		WithField("expected", ctx.Result.ExpectedLabels).
		Info("computed expected labels")
	return nil
}

// ruleset holds the compiled policy patterns.
type ruleset struct {
	ticket   *regexp.Regexp
	cache    *regexp.Regexp
	suffixes []string
}

// compileRules compiles the policy's patterns. The cache pattern is matched
// case-insensitively, the ticket pattern as written.
func compileRules(p config.Policy) (*ruleset, error) {
	ticket, err := regexp.Compile(p.TicketPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid ticket pattern %q: %w", p.TicketPattern, err)
	}
	cache, err := regexp.Compile(`(?i:` + p.CachePattern + `)`)
	if err != nil {
		return nil, fmt.Errorf("invalid cache pattern %q: %w", p.CachePattern, err)
	}
	return &ruleset{
		ticket:   ticket,
		cache:    cache,
		suffixes: p.SourceSuffixes,
	}, nil
}

// Evaluate runs every rule and unions the outputs into one label set.
// The rules are independent; none can veto another's label.
func (r *ruleset) Evaluate(root string, changes []git.ChangeRecord, branch, title string, subjects []string) pipeline.LabelSet {
	expected := pipeline.NewLabelSet()

	if strings.HasPrefix(strings.ToLower(branch), conflictPrefix) {
		expected.Add(conflictLabel)
	}

	for _, rec := range changes {
		// A deletion cannot justify a content-derived label.
		if rec.Deleted() {
			continue
		}
		if strings.HasSuffix(rec.Path, impexSuffix) {
			expected.Add(impexLabel)
		}
		if strings.HasSuffix(rec.Path, itemsSuffix) {
			expected.Add(itemsLabel)
		}
		if r.isSource(rec.Path) && !expected.Has(cacheLabel) {
			if text.ScanForPattern(filepath.Join(root, rec.Path), r.cache) {
				expected.Add(cacheLabel)
			}
		}
	}

	for _, key := range r.ticket.FindAllString(branch, -1) {
		expected.Add(key)
	}
	for _, key := range r.ticket.FindAllString(title, -1) {
		expected.Add(key)
	}
	for _, subject := range subjects {
		for _, key := range r.ticket.FindAllString(subject, -1) {
			expected.Add(key)
		}
	}

	return expected
}

func (r *ruleset) isSource(path string) bool {
	for _, suffix := range r.suffixes {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}
