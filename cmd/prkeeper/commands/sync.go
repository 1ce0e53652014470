package commands

import (
	"context"
	"fmt"

	"github.com/google/go-github/v60/github"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/prkeeper/prkeeper/internal/core/config"
	"github.com/prkeeper/prkeeper/internal/core/pipeline"
	"github.com/prkeeper/prkeeper/internal/integrations/git"
	ghclient "github.com/prkeeper/prkeeper/internal/integrations/github"
	"github.com/prkeeper/prkeeper/internal/steps"
)

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile one pull request's labels and milestone",
	Long: `Run the bookkeeping pipeline once for the pull request described by
GITHUB_TOKEN, REPO_NAME, PR_NUMBER, BRANCH_NAME, and PR_TITLE. Individual
label and milestone failures are logged but never fail the run; only missing
configuration or a failing PR lookup do.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSync(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	if cfgFile != "" {
		policy, err := config.LoadPolicy(cfgFile)
		if err != nil {
			return err
		}
		cfg.Policy = policy
	}

	log := logrus.WithFields(logrus.Fields{
		"run_id": uuid.NewString(),
		"repo":   fmt.Sprintf("%s/%s", cfg.Owner, cfg.Repo),
		"pr":     cfg.PRNumber,
	})
	log.Info("starting pull request sync")

	gh := ghclient.NewClient(ctx, cfg.Token)

	// The PR lookup is the one remote call the run cannot survive without.
	remote, err := gh.GetPullRequest(ctx, cfg.Owner, cfg.Repo, cfg.PRNumber)
	if err != nil {
		return err
	}
	pr := buildPullRequest(cfg, remote)
	log.WithField("base_branch", pr.BaseBranch).Info("fetched pull request")

	registry := pipeline.NewRegistry()
	steps.RegisterAll(registry)

	deps := &pipeline.Dependencies{
		GitHub: gh,
		Git:    git.NewRunner(workDir),
		DryRun: dryRun,
	}
	pl, err := registry.BuildFromNames(cfg.Policy.Steps, deps)
	if err != nil {
		return err
	}

	pctx := pipeline.NewContext(ctx, pr, cfg, log)
	pl.Run(pctx)

	summarize(log, pctx.Result)
	return nil
}

// buildPullRequest merges the fetched PR with the CI-provided inputs.
// Branch name and title come from the environment (the rule engine's
// contract); base branch, labels, and milestone come from the API.
func buildPullRequest(cfg *config.Config, remote *github.PullRequest) *pipeline.PullRequest {
	labels := make([]string, 0, len(remote.Labels))
	for _, l := range remote.Labels {
		labels = append(labels, l.GetName())
	}

	return &pipeline.PullRequest{
		Owner:      cfg.Owner,
		Repo:       cfg.Repo,
		Number:     cfg.PRNumber,
		Title:      cfg.Title,
		HeadBranch: cfg.Branch,
		BaseBranch: remote.GetBase().GetRef(),
		Labels:     labels,
		Milestone:  remote.GetMilestone().GetTitle(),
	}
}

func summarize(log *logrus.Entry, result *pipeline.Result) {
	if result.Skipped {
		log.WithField("reason", result.SkipReason).Info("sync skipped")
		return
	}
	log.WithFields(logrus.Fields{
		"expected":         result.ExpectedLabels,
		"created":          result.LabelsCreated,
		"added":            result.LabelsAdded,
		"removed":          result.LabelsRemoved,
		"milestone":        result.Milestone,
		"milestone_action": result.MilestoneAction,
		"errors":           len(result.Errors),
	}).Info("sync complete")

	for _, err := range result.Errors {
		log.WithError(err).Warn("non-fatal error during sync")
	}
}
