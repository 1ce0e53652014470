// Package steps contains the pipeline steps: change inspection, label
// rules, label reconciliation, and milestone resolution.
package steps

import (
	"github.com/prkeeper/prkeeper/internal/core/pipeline"
	"github.com/prkeeper/prkeeper/internal/integrations/git"
)

// Changes enumerates the files and commit subjects between the PR's base
// branch and HEAD.
type Changes struct {
	git *git.Runner
}

// NewChanges creates a new change inspection step.
func NewChanges(deps *pipeline.Dependencies) *Changes {
	return &Changes{
		git: deps.Git,
	}
}

// Name returns the step name.
func (s *Changes) Name() string {
	return "changes"
}

// Run reads the diff and commit log. Both reads degrade to an empty result
// on failure: a broken local checkout only disables the content rules, it
// never aborts the run.
func (s *Changes) Run(ctx *pipeline.Context) error {
	log := ctx.Log.WithField("step", s.Name())
	base := ctx.PR.BaseBranch

	records, err := s.git.DiffNameStatus(base)
	if err != nil {
		log.WithError(err).Warn("could not read diff, continuing with no changed files")
		records = nil
	}
	ctx.Changes = records
	log.WithField("changed_files", len(records)).Info("inspected changes")

	subjects, err := s.git.CommitSubjects(base)
	if err != nil {
		log.WithError(err).Warn("could not read commit log, continuing with no subjects")
		subjects = nil
	}
	ctx.CommitSubjects = subjects

	return nil
}
