// Package pipeline provides the core pipeline engine for prkeeper.
// It defines the Step interface and Context structure used by all pipeline steps.
package pipeline

import (
	"context"
	"errors"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/prkeeper/prkeeper/internal/core/config"
	"github.com/prkeeper/prkeeper/internal/integrations/git"
)

// ErrSkipPipeline indicates that the pipeline should stop gracefully.
// This is not an error condition, just an early exit.
var ErrSkipPipeline = errors.New("skip remaining pipeline steps")

// Step defines the interface that all pipeline steps must implement.
type Step interface {
	// Name returns the unique identifier for this step.
	Name() string

	// Run executes the step's logic.
	// It should return ErrSkipPipeline to stop the pipeline gracefully.
	// Any other error is recorded in the Result and the pipeline continues
	// with the next step.
	Run(ctx *Context) error
}

// PullRequest is the pull request being processed.
type PullRequest struct {
	Owner      string
	Repo       string
	Number     int
	Title      string
	HeadBranch string
	BaseBranch string
	Labels     []string
	Milestone  string
}

// LabelSet is a set of label names.
type LabelSet map[string]struct{}

// NewLabelSet creates a set from the given names.
func NewLabelSet(names ...string) LabelSet {
	s := make(LabelSet, len(names))
	for _, n := range names {
		s.Add(n)
	}
	return s
}

// Add inserts a name into the set.
func (s LabelSet) Add(name string) {
	s[name] = struct{}{}
}

// Has reports whether name is in the set.
func (s LabelSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Sorted returns the set's names in lexical order.
func (s LabelSet) Sorted() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Result holds the accumulated results from pipeline execution.
type Result struct {
	PRNumber        int
	Skipped         bool
	SkipReason      string
	ExpectedLabels  []string
	LabelsCreated   []string
	LabelsAdded     []string
	LabelsRemoved   []string
	Milestone       string
	MilestoneAction string
	Errors          []error
}

// RecordError appends a non-fatal error to the result.
func (r *Result) RecordError(err error) {
	r.Errors = append(r.Errors, err)
}

// Context carries data through the pipeline steps.
type Context struct {
	// Ctx is the Go context for cancellation and timeouts.
	Ctx context.Context

	// PR is the pull request being processed.
	PR *PullRequest

	// Config is the loaded configuration.
	Config *config.Config

	// Result accumulates the processing results.
	Result *Result

	// Log is the run-scoped logger; steps derive their own entries from it.
	Log *logrus.Entry

	// Changes holds the changed files produced by the changes step.
	Changes []git.ChangeRecord

	// CommitSubjects holds the commit subject lines between base and head.
	CommitSubjects []string

	// Expected is the label set computed by the rules step.
	Expected LabelSet
}

// NewContext creates a new pipeline context for a pull request.
func NewContext(ctx context.Context, pr *PullRequest, cfg *config.Config, log *logrus.Entry) *Context {
	return &Context{
		Ctx:      ctx,
		PR:       pr,
		Config:   cfg,
		Result:   &Result{PRNumber: pr.Number},
		Log:      log,
		Expected: NewLabelSet(),
	}
}

// Pipeline executes a sequence of steps.
type Pipeline struct {
	steps []Step
}

// New creates a new pipeline with the given steps.
func New(steps ...Step) *Pipeline {
	return &Pipeline{steps: steps}
}

// Run executes all steps in order. A failing step is logged and recorded in
// the Result, and the remaining steps still run: every reconciliation action
// is independent, so partial progress beats an all-or-nothing abort.
// ErrSkipPipeline stops the run gracefully.
func (p *Pipeline) Run(ctx *Context) {
	for _, step := range p.steps {
		if err := step.Run(ctx); err != nil {
			if errors.Is(err, ErrSkipPipeline) {
				ctx.Result.Skipped = true
				// Steps may set a reason before skipping; default to the
				// step that asked for the stop.
				if ctx.Result.SkipReason == "" {
					ctx.Result.SkipReason = step.Name()
				}
				return
			}
			ctx.Log.WithField("step", step.Name()).WithError(err).Error("step failed, continuing")
			ctx.Result.RecordError(err)
		}
	}
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// Steps returns the list of steps (for introspection).
func (p *Pipeline) Steps() []Step {
	return p.steps
}
