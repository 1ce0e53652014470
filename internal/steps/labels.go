package steps

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/prkeeper/prkeeper/internal/core/pipeline"
	"github.com/prkeeper/prkeeper/internal/integrations/github"
)

// labelService is the slice of the tracker API the reconciler needs.
type labelService interface {
	ListRepoLabels(ctx context.Context, owner, repo string) ([]string, error)
	CreateLabel(ctx context.Context, owner, repo, name, color string) error
	AddLabels(ctx context.Context, owner, repo string, number int, labels []string) error
	RemoveLabel(ctx context.Context, owner, repo string, number int, label string) error
}

// Plan is the minimal set of label mutations to converge a PR onto the
// expected label set.
type Plan struct {
	Add    []string
	Remove []string
}

// Empty reports whether the plan has no mutations.
func (p Plan) Empty() bool {
	return len(p.Add) == 0 && len(p.Remove) == 0
}

// Labels reconciles the PR's labels against the expected set.
type Labels struct {
	svc    labelService
	dryRun bool
}

// NewLabels creates a new label reconciliation step.
func NewLabels(deps *pipeline.Dependencies) *Labels {
	return &Labels{
		svc:    deps.GitHub,
		dryRun: deps.DryRun,
	}
}

// Name returns the step name.
func (s *Labels) Name() string {
	return "labels"
}

// Run creates missing ticket labels, then applies the add/remove plan.
// Each mutation is independent; one failing label never aborts the rest.
func (s *Labels) Run(ctx *pipeline.Context) error {
	log := ctx.Log.WithField("step", s.Name())
	pr := ctx.PR

	ticket, err := anchoredTicketPattern(ctx.Config.Policy.TicketPattern)
	if err != nil {
		return err
	}

	catalog, err := s.svc.ListRepoLabels(ctx.Ctx, pr.Owner, pr.Repo)
	if err != nil {
		return fmt.Errorf("cannot reconcile labels: %w", err)
	}

	attempted, pending := s.createTicketLabels(ctx, log, ticket, catalog)
	if attempted {
		// Refresh so labels created here are eligible for addition. The
		// refresh also covers a concurrent run winning the creation race:
		// its label exists remotely even though our create failed.
		catalog, err = s.svc.ListRepoLabels(ctx.Ctx, pr.Owner, pr.Repo)
		if err != nil {
			return fmt.Errorf("cannot refresh label catalog: %w", err)
		}
	}
	// In a dry run nothing was created, so count the would-be labels as
	// present; otherwise the reported plan understates a real run.
	catalog = append(catalog, pending...)

	plan := BuildPlan(ctx.Expected, pr.Labels, catalog, ctx.Config.Policy.SystemLabels)
	log.WithField("add", plan.Add).WithField("remove", plan.Remove).Info("label plan")

	if s.dryRun {
		log.Info("dry run, skipping label mutations")
		ctx.Result.LabelsAdded = plan.Add
		ctx.Result.LabelsRemoved = plan.Remove
		return nil
	}

	s.applyPlan(ctx, log, plan)
	return nil
}

// createTicketLabels creates repository labels for expected ticket keys not
// yet in the catalog. A concurrent run may win the race; "already exists"
// is not a failure. It reports whether any create was attempted (the caller
// refreshes the catalog then) and, in a dry run, the names that would have
// been created.
func (s *Labels) createTicketLabels(ctx *pipeline.Context, log *logrus.Entry, ticket *regexp.Regexp, catalog []string) (attempted bool, pending []string) {
	pr := ctx.PR
	known := pipeline.NewLabelSet(catalog...)
	color := ctx.Config.Policy.LabelColor

	var created []string
	for _, name := range ctx.Expected.Sorted() {
		if !ticket.MatchString(name) || known.Has(name) {
			continue
		}
		if s.dryRun {
			log.WithField("label", name).Info("dry run, would create ticket label")
			pending = append(pending, name)
			continue
		}
		attempted = true
		if err := s.svc.CreateLabel(ctx.Ctx, pr.Owner, pr.Repo, name, color); err != nil {
			if github.IsAlreadyExists(err) {
				log.WithField("label", name).Info("label already exists")
				continue
			}
			log.WithField("label", name).WithError(err).Error("failed to create label")
			ctx.Result.RecordError(err)
			continue
		}
		log.WithField("label", name).Info("created ticket label")
		created = append(created, name)
	}
	ctx.Result.LabelsCreated = created
	return attempted, pending
}

// applyPlan performs additions, then removals, recording per-label failures.
func (s *Labels) applyPlan(ctx *pipeline.Context, log *logrus.Entry, plan Plan) {
	pr := ctx.PR

	for _, name := range plan.Add {
		if err := s.svc.AddLabels(ctx.Ctx, pr.Owner, pr.Repo, pr.Number, []string{name}); err != nil {
			log.WithField("label", name).WithError(err).Error("failed to add label")
			ctx.Result.RecordError(err)
			continue
		}
		ctx.Result.LabelsAdded = append(ctx.Result.LabelsAdded, name)
		log.WithField("label", name).Info("added label")
	}

	for _, name := range plan.Remove {
		if err := s.svc.RemoveLabel(ctx.Ctx, pr.Owner, pr.Repo, pr.Number, name); err != nil {
			log.WithField("label", name).WithError(err).Warn("failed to remove label")
			ctx.Result.RecordError(err)
			continue
		}
		ctx.Result.LabelsRemoved = append(ctx.Result.LabelsRemoved, name)
		log.WithField("label", name).Info("removed label")
	}
}

// BuildPlan computes the minimal label mutations.
//
// Additions are expected labels the PR lacks, restricted to labels that
// exist in the repository catalog. Removals are restricted to the system
// label set: ticket labels and anything a human applied stay untouched
// even when no rule re-derives them this run.
func BuildPlan(expected pipeline.LabelSet, current, catalog, system []string) Plan {
	currentSet := pipeline.NewLabelSet(current...)
	catalogSet := pipeline.NewLabelSet(catalog...)

	var plan Plan
	for name := range expected {
		if !currentSet.Has(name) && catalogSet.Has(name) {
			plan.Add = append(plan.Add, name)
		}
	}
	for _, name := range system {
		if currentSet.Has(name) && !expected.Has(name) {
			plan.Remove = append(plan.Remove, name)
		}
	}

	sort.Strings(plan.Add)
	sort.Strings(plan.Remove)
	return plan
}

// anchoredTicketPattern compiles the ticket pattern anchored at both ends,
// so "is this label a ticket key" checks the whole name.
func anchoredTicketPattern(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(`^(?:` + pattern + `)$`)
	if err != nil {
		return nil, fmt.Errorf("invalid ticket pattern %q: %w", pattern, err)
	}
	return re, nil
}
