package steps

import (
	"context"
	"fmt"
	"testing"

	gogithub "github.com/google/go-github/v60/github"

	"github.com/prkeeper/prkeeper/internal/core/config"
	"github.com/prkeeper/prkeeper/internal/core/pipeline"
)

func TestMatchMilestone(t *testing.T) {
	rules := config.DefaultPolicy().Milestones

	tests := []struct {
		branch string
		want   string
		ok     bool
	}{
		{"development-foo", "sprint-dev", true},
		{"development", "sprint-dev", true},
		{"feature/marketplace-x", "marketplace", true},
		{"release/upgrade-2", "cloud", true},
		{"offline_kasa_v2", "offline-kasa", true},
		{"hotfix/123", "", false},
		{"feature/checkout", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.branch, func(t *testing.T) {
			got, ok := MatchMilestone(rules, tt.branch)
			if got != tt.want || ok != tt.ok {
				t.Fatalf("MatchMilestone(%q) = (%q, %v), want (%q, %v)", tt.branch, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestMatchMilestoneFirstRuleWins(t *testing.T) {
	rules := []config.MilestoneRule{
		{Prefix: "release", Milestone: "first"},
		{Prefix: "release/upgrade", Milestone: "second"},
	}
	got, ok := MatchMilestone(rules, "release/upgrade-1")
	if !ok || got != "first" {
		t.Fatalf("expected the first matching rule, got (%q, %v)", got, ok)
	}
}

// fakeMilestoneService serves a fixed milestone list and records
// create/assign calls, with injectable failures per strategy.
type fakeMilestoneService struct {
	milestones []*gogithub.Milestone
	nextNumber int

	created []string
	edits   []int
	patches []int

	listErr   error
	createErr error
	editErr   error
	patchErr  error
}

func milestone(title string, number int) *gogithub.Milestone {
	return &gogithub.Milestone{
		Title:  gogithub.String(title),
		Number: gogithub.Int(number),
	}
}

func (f *fakeMilestoneService) ListMilestones(_ context.Context, _, _ string) ([]*gogithub.Milestone, error) {
	return f.milestones, f.listErr
}

func (f *fakeMilestoneService) CreateMilestone(_ context.Context, _, _, title string) (*gogithub.Milestone, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, title)
	f.nextNumber++
	return milestone(title, f.nextNumber), nil
}

func (f *fakeMilestoneService) SetMilestone(_ context.Context, _, _ string, _, m int) error {
	if f.editErr != nil {
		return f.editErr
	}
	f.edits = append(f.edits, m)
	return nil
}

func (f *fakeMilestoneService) PatchIssueMilestone(_ context.Context, _, _ string, _, m int) error {
	if f.patchErr != nil {
		return f.patchErr
	}
	f.patches = append(f.patches, m)
	return nil
}

func TestMilestoneRunNoMatch(t *testing.T) {
	svc := &fakeMilestoneService{}
	step := &Milestone{svc: svc}

	ctx := testContext(t, &pipeline.PullRequest{Owner: "acme", Repo: "shop", Number: 7, BaseBranch: "hotfix/123"})
	if err := step.Run(ctx); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if ctx.Result.MilestoneAction != MilestoneNoMatch {
		t.Fatalf("expected %q, got %q", MilestoneNoMatch, ctx.Result.MilestoneAction)
	}
	if len(svc.edits) != 0 || len(svc.patches) != 0 || len(svc.created) != 0 {
		t.Fatalf("no-match must not touch the API")
	}
}

func TestMilestoneRunAssignsExisting(t *testing.T) {
	svc := &fakeMilestoneService{
		milestones: []*gogithub.Milestone{milestone("sprint-dev", 3)},
	}
	step := &Milestone{svc: svc}

	ctx := testContext(t, &pipeline.PullRequest{Owner: "acme", Repo: "shop", Number: 7, BaseBranch: "development"})
	if err := step.Run(ctx); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if ctx.Result.MilestoneAction != MilestoneAssigned || ctx.Result.Milestone != "sprint-dev" {
		t.Fatalf("unexpected result: %+v", ctx.Result)
	}
	if len(svc.created) != 0 {
		t.Fatalf("existing milestone must not be recreated")
	}
	if len(svc.edits) != 1 || svc.edits[0] != 3 {
		t.Fatalf("expected issue-edit assignment of milestone 3, got %v", svc.edits)
	}
}

func TestMilestoneRunCreatesWhenAbsent(t *testing.T) {
	svc := &fakeMilestoneService{nextNumber: 10}
	step := &Milestone{svc: svc}

	ctx := testContext(t, &pipeline.PullRequest{Owner: "acme", Repo: "shop", Number: 7, BaseBranch: "feature/marketplace-x"})
	if err := step.Run(ctx); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(svc.created) != 1 || svc.created[0] != "marketplace" {
		t.Fatalf("expected milestone creation, got %v", svc.created)
	}
	if len(svc.edits) != 1 || svc.edits[0] != 11 {
		t.Fatalf("expected assignment of the created milestone, got %v", svc.edits)
	}
}

func TestMilestoneRunAlreadyAssigned(t *testing.T) {
	svc := &fakeMilestoneService{
		milestones: []*gogithub.Milestone{milestone("cloud", 5)},
	}
	step := &Milestone{svc: svc}

	ctx := testContext(t, &pipeline.PullRequest{
		Owner: "acme", Repo: "shop", Number: 7,
		BaseBranch: "release/upgrade-2",
		Milestone:  "cloud",
	})
	if err := step.Run(ctx); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if ctx.Result.MilestoneAction != MilestoneAlreadyAssigned {
		t.Fatalf("expected %q, got %q", MilestoneAlreadyAssigned, ctx.Result.MilestoneAction)
	}
	if len(svc.edits) != 0 && len(svc.patches) != 0 {
		t.Fatalf("already-assigned must not re-assign")
	}
}

func TestMilestoneRunFallsBackToPatch(t *testing.T) {
	svc := &fakeMilestoneService{
		milestones: []*gogithub.Milestone{milestone("offline-kasa", 2)},
		editErr:    fmt.Errorf("edit endpoint unavailable"),
	}
	step := &Milestone{svc: svc}

	ctx := testContext(t, &pipeline.PullRequest{Owner: "acme", Repo: "shop", Number: 7, BaseBranch: "offline_kasa_v2"})
	if err := step.Run(ctx); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if ctx.Result.MilestoneAction != MilestoneAssigned {
		t.Fatalf("expected fallback assignment, got %q", ctx.Result.MilestoneAction)
	}
	if len(svc.patches) != 1 || svc.patches[0] != 2 {
		t.Fatalf("expected patch fallback with milestone 2, got %v", svc.patches)
	}
}

func TestMilestoneRunAllStrategiesFailNonFatal(t *testing.T) {
	svc := &fakeMilestoneService{
		milestones: []*gogithub.Milestone{milestone("sprint-dev", 1)},
		editErr:    fmt.Errorf("edit down"),
		patchErr:   fmt.Errorf("patch down"),
	}
	step := &Milestone{svc: svc}

	ctx := testContext(t, &pipeline.PullRequest{Owner: "acme", Repo: "shop", Number: 7, BaseBranch: "development"})
	if err := step.Run(ctx); err != nil {
		t.Fatalf("exhausted strategies must stay non-fatal, got %v", err)
	}
	if ctx.Result.MilestoneAction != MilestoneFailed {
		t.Fatalf("expected %q, got %q", MilestoneFailed, ctx.Result.MilestoneAction)
	}
	if len(ctx.Result.Errors) != 2 {
		t.Fatalf("expected both attempts recorded, got %v", ctx.Result.Errors)
	}
}

func TestMilestoneRunLookupFailureNonFatal(t *testing.T) {
	svc := &fakeMilestoneService{listErr: fmt.Errorf("list down")}
	step := &Milestone{svc: svc}

	ctx := testContext(t, &pipeline.PullRequest{Owner: "acme", Repo: "shop", Number: 7, BaseBranch: "development"})
	if err := step.Run(ctx); err != nil {
		t.Fatalf("lookup failure must stay non-fatal, got %v", err)
	}
	if ctx.Result.MilestoneAction != MilestoneFailed {
		t.Fatalf("expected %q, got %q", MilestoneFailed, ctx.Result.MilestoneAction)
	}
	if len(svc.edits) != 0 && len(svc.patches) != 0 {
		t.Fatalf("failed lookup must not attempt assignment")
	}
}

func TestMilestoneRunDryRun(t *testing.T) {
	svc := &fakeMilestoneService{}
	step := &Milestone{svc: svc, dryRun: true}

	ctx := testContext(t, &pipeline.PullRequest{Owner: "acme", Repo: "shop", Number: 7, BaseBranch: "development"})
	if err := step.Run(ctx); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if ctx.Result.Milestone != "sprint-dev" || ctx.Result.MilestoneAction != MilestoneAssigned {
		t.Fatalf("unexpected dry-run result: %+v", ctx.Result)
	}
	if len(svc.created) != 0 || len(svc.edits) != 0 || len(svc.patches) != 0 {
		t.Fatalf("dry run must not touch the API")
	}
}
