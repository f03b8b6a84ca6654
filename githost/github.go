package githost

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/go-github/v56/github"
	"github.com/pkg/errors"
)

// GitHub implements Host on the GitHub REST API.
type GitHub struct {
	client *github.Client
}

var _ Host = &GitHub{}

func NewGitHub(client *github.Client) *GitHub {
	return &GitHub{client: client}
}

func (g *GitHub) Exists(ctx context.Context, org, name string) (Existence, error) {
	_, resp, err := g.client.Repositories.Get(ctx, org, name)
	if isNotFound(resp, err) {
		return Absent, nil
	}
	if err != nil {
		return Absent, errors.Wrapf(err, "unable to get repository %s/%s", org, name)
	}

	// An initialized repository has at least its default branch.
	branches, _, err := g.client.Repositories.ListBranches(ctx, org, name, &github.BranchListOptions{
		ListOptions: github.ListOptions{PerPage: 1},
	})
	if err != nil {
		return Absent, errors.Wrapf(err, "unable to list branches of %s/%s", org, name)
	}

	if len(branches) == 0 {
		return ExistsEmpty, nil
	}

	return ExistsPopulated, nil
}

func (g *GitHub) Get(ctx context.Context, org, name string) (*Repository, error) {
	repo, resp, err := g.client.Repositories.Get(ctx, org, name)
	if isNotFound(resp, err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "unable to get repository %s/%s", org, name)
	}

	return toRepository(org, repo), nil
}

func (g *GitHub) Create(ctx context.Context, org, name, description string) (*Repository, error) {
	// AutoInit so that the default branch exists and branches can be
	// created from it before the first push.
	repo, _, err := g.client.Repositories.Create(ctx, org, &github.Repository{
		Name:        github.String(name),
		Description: github.String(description),
		Private:     github.Bool(true),
		AutoInit:    github.Bool(true),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "unable to create repository %s/%s", org, name)
	}

	return toRepository(org, repo), nil
}

func (g *GitHub) CreateBranch(ctx context.Context, org, name, branch, from string) error {
	base, _, err := g.client.Git.GetRef(ctx, org, name, "heads/"+from)
	if err != nil {
		return errors.Wrapf(err, "unable to resolve base branch %q of %s/%s", from, org, name)
	}

	_, resp, err := g.client.Git.CreateRef(ctx, org, name, &github.Reference{
		Ref:    github.String("refs/heads/" + branch),
		Object: &github.GitObject{SHA: base.Object.SHA},
	})
	if isAlreadyExists(resp, err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return errors.Wrapf(err, "unable to create branch %q in %s/%s", branch, org, name)
	}

	return nil
}

func (g *GitHub) BranchExists(ctx context.Context, org, name, branch string) (bool, error) {
	_, resp, err := g.client.Git.GetRef(ctx, org, name, "heads/"+branch)
	if isNotFound(resp, err) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "unable to get branch %q of %s/%s", branch, org, name)
	}

	return true, nil
}

func (g *GitHub) UpsertEnvironment(ctx context.Context, org, name string, spec EnvironmentSpec) error {
	reviewers, err := g.resolveReviewers(ctx, spec.Reviewers)
	if err != nil {
		return err
	}

	// wait_timer is minutes on the GitHub side.
	waitTimer := spec.WaitTimerSeconds / 60

	env := &github.CreateUpdateEnvironment{
		WaitTimer: github.Int(waitTimer),
		Reviewers: reviewers,
		DeploymentBranchPolicy: &github.BranchPolicy{
			ProtectedBranches:    github.Bool(false),
			CustomBranchPolicies: github.Bool(true),
		},
	}

	if _, _, err := g.client.Repositories.CreateUpdateEnvironment(ctx, org, name, spec.Name, env); err != nil {
		return errors.Wrapf(err, "unable to upsert environment %q of %s/%s", spec.Name, org, name)
	}

	return g.upsertBranchPolicy(ctx, org, name, spec.Name, spec.Branch)
}

func (g *GitHub) upsertBranchPolicy(ctx context.Context, org, name, envName, branch string) error {
	if branch == "" {
		return nil
	}

	policies, _, err := g.client.Repositories.ListDeploymentBranchPolicies(ctx, org, name, envName)
	if err != nil {
		return errors.Wrapf(err, "unable to list deployment branch policies of environment %q", envName)
	}

	for _, p := range policies.BranchPolicies {
		if p.GetName() == branch {
			return nil
		}
	}

	_, _, err = g.client.Repositories.CreateDeploymentBranchPolicy(ctx, org, name, envName, &github.DeploymentBranchPolicyRequest{
		Name: github.String(branch),
	})
	if err != nil {
		return errors.Wrapf(err, "unable to restrict environment %q to branch %q", envName, branch)
	}

	return nil
}

func (g *GitHub) resolveReviewers(ctx context.Context, handles []string) ([]*github.EnvReviewers, error) {
	var reviewers []*github.EnvReviewers

	for _, handle := range handles {
		u, _, err := g.client.Users.Get(ctx, handle)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to resolve reviewer %q", handle)
		}

		reviewers = append(reviewers, &github.EnvReviewers{
			Type: github.String("User"),
			ID:   u.ID,
		})
	}

	return reviewers, nil
}

func (g *GitHub) GetEnvironment(ctx context.Context, org, name, envName string) (*EnvironmentSpec, error) {
	env, resp, err := g.client.Repositories.GetEnvironment(ctx, org, name, envName)
	if isNotFound(resp, err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "unable to get environment %q of %s/%s", envName, org, name)
	}

	spec := &EnvironmentSpec{Name: envName}

	for _, rule := range env.ProtectionRules {
		switch rule.GetType() {
		case "wait_timer":
			spec.WaitTimerSeconds = rule.GetWaitTimer() * 60
		case "required_reviewers":
			for _, r := range rule.Reviewers {
				if u, ok := r.Reviewer.(*github.User); ok {
					spec.Reviewers = append(spec.Reviewers, u.GetLogin())
				}
			}
		}
	}

	policies, _, err := g.client.Repositories.ListDeploymentBranchPolicies(ctx, org, name, envName)
	if err == nil && len(policies.BranchPolicies) > 0 {
		spec.Branch = policies.BranchPolicies[0].GetName()
	}

	return spec, nil
}

func (g *GitHub) ListSecrets(ctx context.Context, org, name string) ([]string, error) {
	var names []string

	opts := &github.ListOptions{PerPage: 100}
	for {
		secrets, resp, err := g.client.Actions.ListRepoSecrets(ctx, org, name, opts)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to list secrets of %s/%s", org, name)
		}

		for _, s := range secrets.Secrets {
			names = append(names, s.Name)
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return names, nil
}

func toRepository(org string, repo *github.Repository) *Repository {
	defaultBranch := repo.GetDefaultBranch()
	if defaultBranch == "" {
		defaultBranch = "main"
	}

	return &Repository{
		Org:           org,
		Name:          repo.GetName(),
		DefaultBranch: defaultBranch,
		CloneURL:      repo.GetCloneURL(),
		HTMLURL:       repo.GetHTMLURL(),
	}
}

func isNotFound(resp *github.Response, err error) bool {
	return err != nil && resp != nil && resp.StatusCode == http.StatusNotFound
}

func isAlreadyExists(resp *github.Response, err error) bool {
	if err == nil {
		return false
	}

	if resp != nil && resp.StatusCode == http.StatusUnprocessableEntity {
		return strings.Contains(err.Error(), "already exists")
	}

	return false
}
