// Package provision sequences the provisioning of an infrastructure
// repository: validate inputs, ensure the repository exists, materialize
// the template, establish the GitOps branches, configure the protected
// environments, commit, and report.
//
// Every stage is a barrier: later stages never run after a fatal failure.
// Every stage is safely repeatable, so re-running the orchestrator after a
// partial failure converges on the same remote state. There is no rollback;
// repository creation and branch/environment configuration are forward-only
// side effects.
package provision

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"github.com/platformeng/infrarepo/config"
	"github.com/platformeng/infrarepo/githost"
	"github.com/platformeng/infrarepo/template"
	"github.com/sirupsen/logrus"
)

// GitOps branch names. The production environment deploys from the
// "production" branch; the dev and staging environments from branches
// named after themselves.
const (
	BranchDev     = "dev"
	BranchStaging = "staging"
	BranchProd    = "production"
)

// EnvBranches maps the environment key to its GitOps branch and host
// environment name.
var EnvBranches = map[string]string{
	config.EnvDev:     BranchDev,
	config.EnvStaging: BranchStaging,
	config.EnvProd:    BranchProd,
}

// ProdWaitTimerSeconds is the fixed wait timer applied to the production
// environment. Not user-configurable.
const ProdWaitTimerSeconds = 300

// Decision is the operator's answer when the target repository already
// exists.
type Decision int

const (
	// Abort stops provisioning without touching the repository.
	Abort Decision = iota
	// Proceed continues against the existing repository, overlaying the
	// template onto whatever it already contains.
	Proceed
	// Recreate clears the checked-out contents before materializing, so
	// files absent from the template do not survive. The repository
	// itself is never deleted.
	Recreate
)

// ErrAborted is returned when the operator declines to proceed against an
// existing repository.
var ErrAborted = pkgerrors.New("provisioning aborted: target repository already exists")

// DecisionFunc resolves the already-exists branch point. The interactive
// trigger prompts the operator; non-interactive triggers supply a fixed
// answer.
type DecisionFunc func(repo *githost.Repository, existence githost.Existence) (Decision, error)

// Committer checks out the provisioned repository's working tree and
// commits the materialized files to the default branch.
type Committer interface {
	Checkout(ctx context.Context) (string, error)
	CommitAll(ctx context.Context, message string) error
}

// CommitterFunc builds a Committer for the resolved repository handle.
type CommitterFunc func(repo *githost.Repository) (Committer, error)

// Summary is the human-readable completion report of a provisioning run.
type Summary struct {
	RepoURL      string
	Environments []githost.EnvironmentSpec
	NextSteps    []string
}

// Orchestrator runs the provisioning state machine.
type Orchestrator struct {
	Host         githost.Host
	Materializer *template.Materializer
	NewCommitter CommitterFunc
	Decide       DecisionFunc

	Log *logrus.Logger
}

type runState struct {
	req       config.Request
	repo      *githost.Repository
	committer Committer
	dir       string
	decision  Decision
}

type stage struct {
	name string
	fn   func(ctx context.Context, s *runState) error
}

// Run executes the stages in order. The returned error names the failing
// stage and wraps the underlying cause.
func (o *Orchestrator) Run(ctx context.Context, req config.Request) (*Summary, error) {
	log := o.log()

	s := &runState{req: req}

	stages := []stage{
		{"Validated", o.validated},
		{"RepositoryReady", o.repositoryReady},
		{"Materialized", o.materialized},
		{"BranchesReady", o.branchesReady},
		{"EnvironmentsConfigured", o.environmentsConfigured},
		{"Committed", o.committed},
	}

	for _, st := range stages {
		log.WithField("stage", st.name).Info("running stage")

		if err := st.fn(ctx, s); err != nil {
			return nil, pkgerrors.Wrapf(err, "stage %s", st.name)
		}
	}

	return o.report(s), nil
}

// validated runs the parameter predicates before any external call.
func (o *Orchestrator) validated(ctx context.Context, s *runState) error {
	if err := s.req.Validate(); err != nil {
		return err
	}

	// Empty approver lists are accepted but always warned about.
	for _, env := range s.req.EmptyApproverEnvs() {
		o.log().WithField("environment", env).Warn("no approvers configured; deployments will not be gated")
	}

	return nil
}

func (o *Orchestrator) repositoryReady(ctx context.Context, s *runState) error {
	req := s.req

	existence, err := o.Host.Exists(ctx, req.Org, req.RepoName)
	if err != nil {
		return err
	}

	if existence == githost.Absent {
		repo, err := o.Host.Create(ctx, req.Org, req.RepoName,
			fmt.Sprintf("Infrastructure repository for %s", req.AppName))
		if err != nil {
			return err
		}
		s.repo = repo
		return nil
	}

	repo, err := o.Host.Get(ctx, req.Org, req.RepoName)
	if err != nil {
		return err
	}

	decision := Proceed
	if o.Decide != nil {
		decision, err = o.Decide(repo, existence)
		if err != nil {
			return err
		}
	}

	if decision == Abort {
		return ErrAborted
	}

	o.log().WithFields(logrus.Fields{
		"repository": repo.FullName(),
		"existence":  existence.String(),
	}).Info("continuing with existing repository")

	s.repo = repo
	s.decision = decision
	return nil
}

func (o *Orchestrator) materialized(ctx context.Context, s *runState) error {
	committer, err := o.NewCommitter(s.repo)
	if err != nil {
		return err
	}
	s.committer = committer

	dir, err := committer.Checkout(ctx)
	if err != nil {
		return err
	}
	s.dir = dir

	if s.decision == Recreate {
		if err := clearWorktree(dir); err != nil {
			return pkgerrors.Wrap(err, "unable to clear existing contents")
		}
	}

	return o.Materializer.Materialize(dir, s.req)
}

// clearWorktree removes everything under dir except the git metadata, so
// that a Recreate run converges exactly on the template.
func clearWorktree(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	for _, e := range entries {
		if e.Name() == ".git" {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}

	return nil
}

func (o *Orchestrator) branchesReady(ctx context.Context, s *runState) error {
	for _, env := range config.EnvNames {
		branch := EnvBranches[env]

		err := o.Host.CreateBranch(ctx, s.repo.Org, s.repo.Name, branch, s.repo.DefaultBranch)
		if pkgerrors.Is(err, githost.ErrAlreadyExists) {
			o.log().WithField("branch", branch).Debug("branch already exists")
			continue
		}
		if err != nil {
			return err
		}
	}

	return nil
}

func (o *Orchestrator) environmentsConfigured(ctx context.Context, s *runState) error {
	for _, spec := range EnvironmentSpecs(s.req) {
		if err := o.Host.UpsertEnvironment(ctx, s.repo.Org, s.repo.Name, spec); err != nil {
			return err
		}
	}

	return nil
}

func (o *Orchestrator) committed(ctx context.Context, s *runState) error {
	return s.committer.CommitAll(ctx, CommitMessage(s.req))
}

func (o *Orchestrator) report(s *runState) *Summary {
	summary := &Summary{
		RepoURL:      s.repo.HTMLURL,
		Environments: EnvironmentSpecs(s.req),
		NextSteps:    NextSteps(s.req),
	}

	o.log().WithField("repository", s.repo.FullName()).Info("provisioning complete")

	return summary
}

func (o *Orchestrator) log() *logrus.Logger {
	if o.Log != nil {
		return o.Log
	}
	return logrus.StandardLogger()
}

// EnvironmentSpecs builds the three environment specs with the fixed
// wait-timer and branch policy.
func EnvironmentSpecs(req config.Request) []githost.EnvironmentSpec {
	return []githost.EnvironmentSpec{
		{
			Name:      BranchDev,
			AccountID: req.Accounts[config.EnvDev],
			Branch:    BranchDev,
		},
		{
			Name:      BranchStaging,
			AccountID: req.Accounts[config.EnvStaging],
			Reviewers: req.StagingApprovers,
			Branch:    BranchStaging,
		},
		{
			Name:             BranchProd,
			AccountID:        req.Accounts[config.EnvProd],
			Reviewers:        req.ProdApprovers,
			WaitTimerSeconds: ProdWaitTimerSeconds,
			Branch:           BranchProd,
		},
	}
}

// NextSteps lists the follow-up actions the application team owns.
func NextSteps(req config.Request) []string {
	return []string{
		"Populate tfvars/ from the .example files (nothing deploys until at least one exists)",
		"Populate userdata/ from the .example files if your workload needs instance bootstrap",
		fmt.Sprintf("Add the %s secrets to the repository", strings.Join(SecretNames(), ", ")),
		"Review the approver lists of the staging and production environments",
	}
}

// SecretNames are the deployment secrets every provisioned repository
// needs before its pipeline can assume the per-account roles.
func SecretNames() []string {
	return []string{
		"AWS_DEPLOY_ROLE_DEV",
		"AWS_DEPLOY_ROLE_STAGING",
		"AWS_DEPLOY_ROLE_PROD",
	}
}

// CommitMessage is the message of the single provisioning commit.
// It enumerates the configured accounts and the follow-up actions.
func CommitMessage(req config.Request) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Provision infrastructure repository for %s\n\n", req.AppName)

	b.WriteString("AWS accounts:\n")
	for _, env := range config.EnvNames {
		fmt.Fprintf(&b, "- %s: %s\n", env, req.Accounts[env])
	}

	b.WriteString("\nNext steps:\n")
	for _, step := range NextSteps(req) {
		fmt.Fprintf(&b, "- %s\n", step)
	}

	return b.String()
}

// WriteSummary renders the completion report.
func WriteSummary(w io.Writer, s *Summary) {
	fmt.Fprintf(w, "\nRepository: %s\n\n", s.RepoURL)

	fmt.Fprintln(w, "Environments:")
	for _, env := range s.Environments {
		approvers := "none"
		if len(env.Reviewers) > 0 {
			approvers = strings.Join(env.Reviewers, ", ")
		}
		fmt.Fprintf(w, "  %-10s account=%s branch=%s wait=%ds approvers=%s\n",
			env.Name, env.AccountID, env.Branch, env.WaitTimerSeconds, approvers)
	}

	fmt.Fprintln(w, "\nNext steps:")
	for _, step := range s.NextSteps {
		fmt.Fprintf(w, "  - %s\n", step)
	}
}
