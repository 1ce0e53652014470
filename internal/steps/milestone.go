package steps

import (
	"context"
	"strings"

	gogithub "github.com/google/go-github/v60/github"

	"github.com/prkeeper/prkeeper/internal/core/config"
	"github.com/prkeeper/prkeeper/internal/core/pipeline"
)

// Milestone action outcomes reported in the run result.
const (
	MilestoneNoMatch         = "no-match"
	MilestoneAlreadyAssigned = "already-assigned"
	MilestoneAssigned        = "assigned"
	MilestoneFailed          = "assignment-failed"
)

// milestoneService is the slice of the tracker API the resolver needs.
type milestoneService interface {
	ListMilestones(ctx context.Context, owner, repo string) ([]*gogithub.Milestone, error)
	CreateMilestone(ctx context.Context, owner, repo, title string) (*gogithub.Milestone, error)
	SetMilestone(ctx context.Context, owner, repo string, number, milestone int) error
	PatchIssueMilestone(ctx context.Context, owner, repo string, number, milestone int) error
}

// Milestone assigns a milestone to the PR based on its base branch.
// Milestones track the integration branch, so policy matching uses the
// base branch, never the head branch.
type Milestone struct {
	svc    milestoneService
	dryRun bool
}

// NewMilestone creates a new milestone resolution step.
func NewMilestone(deps *pipeline.Dependencies) *Milestone {
	return &Milestone{
		svc:    deps.GitHub,
		dryRun: deps.DryRun,
	}
}

// Name returns the step name.
func (s *Milestone) Name() string {
	return "milestone"
}

// Run resolves and assigns the milestone. Every outcome, including an
// assignment failure, leaves the run successful: milestones are advisory
// bookkeeping here.
func (s *Milestone) Run(ctx *pipeline.Context) error {
	log := ctx.Log.WithField("step", s.Name())
	pr := ctx.PR

	name, ok := MatchMilestone(ctx.Config.Policy.Milestones, pr.BaseBranch)
	if !ok {
		ctx.Result.MilestoneAction = MilestoneNoMatch
		log.WithField("base_branch", pr.BaseBranch).Info("no milestone policy matched")
		return nil
	}
	ctx.Result.Milestone = name
	log = log.WithField("milestone", name)

	if pr.Milestone == name {
		ctx.Result.MilestoneAction = MilestoneAlreadyAssigned
		log.Info("milestone already set")
		return nil
	}

	if s.dryRun {
		ctx.Result.MilestoneAction = MilestoneAssigned
		log.Info("dry run, would assign milestone")
		return nil
	}

	target, err := s.findOrCreate(ctx.Ctx, pr.Owner, pr.Repo, name)
	if err != nil {
		ctx.Result.MilestoneAction = MilestoneFailed
		ctx.Result.RecordError(err)
		log.WithError(err).Error("could not resolve milestone")
		return nil
	}

	// Assignment strategies in preference order; first success wins.
	strategies := []struct {
		name   string
		assign func(context.Context, string, string, int, int) error
	}{
		{"issue-edit", s.svc.SetMilestone},
		{"issue-patch", s.svc.PatchIssueMilestone},
	}
	for _, strat := range strategies {
		err := strat.assign(ctx.Ctx, pr.Owner, pr.Repo, pr.Number, target.GetNumber())
		if err == nil {
			ctx.Result.MilestoneAction = MilestoneAssigned
			log.WithField("strategy", strat.name).Info("assigned milestone")
			return nil
		}
		log.WithField("strategy", strat.name).WithError(err).Warn("milestone assignment attempt failed")
		ctx.Result.RecordError(err)
	}

	ctx.Result.MilestoneAction = MilestoneFailed
	log.Error("all milestone assignment strategies failed")
	return nil
}

// findOrCreate looks up a milestone by exact title, creating it if absent.
func (s *Milestone) findOrCreate(ctx context.Context, owner, repo, title string) (*gogithub.Milestone, error) {
	milestones, err := s.svc.ListMilestones(ctx, owner, repo)
	if err != nil {
		return nil, err
	}
	for _, m := range milestones {
		if m.GetTitle() == title {
			return m, nil
		}
	}
	return s.svc.CreateMilestone(ctx, owner, repo, title)
}

// MatchMilestone resolves a base branch to a milestone title.
// The rules are ordered; the first matching prefix wins.
func MatchMilestone(rules []config.MilestoneRule, branch string) (string, bool) {
	for _, rule := range rules {
		if strings.HasPrefix(branch, rule.Prefix) {
			return rule.Milestone, true
		}
	}
	return "", false
}
