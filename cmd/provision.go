package cmd

import (
	"context"
	"fmt"
	"os"

	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/platformeng/infrarepo/config"
	"github.com/platformeng/infrarepo/envvar"
	"github.com/platformeng/infrarepo/githost"
	"github.com/platformeng/infrarepo/gitrepo"
	"github.com/platformeng/infrarepo/provision"
	"github.com/platformeng/infrarepo/template"
	"github.com/platformeng/infrarepo/wizard"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// requestFlags is the flag-settable subset of a provisioning request,
// shared by the provision and dispatch commands.
type requestFlags struct {
	appName          string
	org              string
	repoName         string
	accounts         string
	stagingApprovers string
	prodApprovers    string
	region           string
	contacts         string
	file             string
}

func (f *requestFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.appName, "app-name", "", "The name of the application (lowercase alphanumeric and hyphens).")
	cmd.Flags().StringVar(&f.org, "org", "", "The GitHub organization to create the repository in.")
	cmd.Flags().StringVar(&f.repoName, "repo", "", "The repository name. Defaults to <app-name>"+config.RepoNameSuffix+".")
	cmd.Flags().StringVar(&f.accounts, "aws-accounts", "", "The AWS accounts in the form dev:<id>,staging:<id>,prod:<id>.")
	cmd.Flags().StringVar(&f.stagingApprovers, "staging-approvers", "", "Comma-separated GitHub handles gating staging deployments.")
	cmd.Flags().StringVar(&f.prodApprovers, "prod-approvers", "", "Comma-separated GitHub handles gating production deployments.")
	cmd.Flags().StringVar(&f.region, "aws-region", "", "The AWS region written into the generated configuration.")
	cmd.Flags().StringVar(&f.contacts, "contacts", "", "The application team's contact or notification channel.")
	cmd.Flags().StringVar(&f.file, "file", "", "A YAML request file. Flags override its fields.")
}

// request builds the partially-filled request from the file and flags.
// Validation happens later so that the interactive path can still prompt
// for whatever is missing.
func (f *requestFlags) request() (*config.Request, error) {
	req := &config.Request{}

	if f.file != "" {
		loaded, err := config.Load(f.file)
		if err != nil {
			return nil, err
		}
		req = loaded
	}

	if f.appName != "" {
		req.AppName = f.appName
	}
	if f.org != "" {
		req.Org = f.org
	}
	if f.repoName != "" {
		req.RepoName = f.repoName
	}
	if f.accounts != "" {
		accounts, err := config.ParseAccounts(f.accounts)
		if err != nil {
			return nil, err
		}
		req.Accounts = accounts
	}
	if f.stagingApprovers != "" {
		req.StagingApprovers = config.ParseApprovers(f.stagingApprovers)
	}
	if f.prodApprovers != "" {
		req.ProdApprovers = config.ParseApprovers(f.prodApprovers)
	}
	if f.region != "" {
		req.Region = f.region
	}
	if f.contacts != "" {
		req.Contacts = f.contacts
	}

	return req, nil
}

func NewCmdProvision() *cobra.Command {
	var (
		flags          requestFlags
		templateRoot   string
		nonInteractive bool
		onExisting     string
		yes            bool
	)

	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Provision an infrastructure repository",
		Long:  "creates the repository from the template, establishes the dev/staging/production GitOps branches, configures the protected environments, and pushes the result.",
		RunE: runE(func(ctx context.Context) error {
			req, err := flags.request()
			if err != nil {
				return err
			}

			if !nonInteractive {
				if err := wizard.Run(ctx, req); err != nil {
					return err
				}
			}

			*req = req.WithDefaults()

			if err := req.Validate(); err != nil {
				return err
			}

			if !nonInteractive && !yes {
				proceed, err := wizard.Confirm(ctx, *req)
				if err != nil {
					return err
				}
				if !proceed {
					logrus.Info("provisioning cancelled")
					return nil
				}
			}

			decide, err := decisionFunc(ctx, nonInteractive, onExisting)
			if err != nil {
				return err
			}

			orch := &provision.Orchestrator{
				Host:         githost.NewGitHub(config.NewGitHubClient()),
				Materializer: &template.Materializer{TemplateRoot: templateRoot},
				NewCommitter: newCommitter,
				Decide:       decide,
			}

			summary, err := orch.Run(ctx, *req)
			if err != nil {
				return err
			}

			provision.WriteSummary(os.Stdout, summary)
			return nil
		}),
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&templateRoot, "template-root", defaultTemplateRoot(), "The directory containing the repository template.")
	cmd.Flags().BoolVar(&nonInteractive, "non-interactive", false, "Never prompt; all fields must come from flags or the request file.")
	cmd.Flags().StringVar(&onExisting, "on-existing", "abort", "What to do when the repository already exists: abort, proceed, or recreate. Interactive runs prompt instead.")
	cmd.Flags().BoolVar(&yes, "yes", false, "Skip the final confirmation prompt.")

	return cmd
}

func decisionFunc(ctx context.Context, nonInteractive bool, onExisting string) (provision.DecisionFunc, error) {
	if !nonInteractive {
		return wizard.Decider(ctx), nil
	}

	var decision provision.Decision
	switch onExisting {
	case "abort":
		decision = provision.Abort
	case "proceed":
		decision = provision.Proceed
	case "recreate":
		decision = provision.Recreate
	default:
		return nil, fmt.Errorf("invalid --on-existing value %q: want abort, proceed, or recreate", onExisting)
	}

	return func(*githost.Repository, githost.Existence) (provision.Decision, error) {
		return decision, nil
	}, nil
}

func newCommitter(repo *githost.Repository) (provision.Committer, error) {
	token := os.Getenv(envvar.GitHubToken)
	auth := &githttp.BasicAuth{
		Username: "x-access-token",
		Password: token,
	}

	authorName := os.Getenv(envvar.GitCommitAuthorName)
	if authorName == "" {
		authorName = "infrarepo-bot"
	}
	authorEmail := os.Getenv(envvar.GitCommitAuthorEmail)
	if authorEmail == "" {
		authorEmail = "infrarepo-bot@users.noreply.github.com"
	}

	return gitrepo.New(auth, repo.CloneURL, repo.DefaultBranch,
		authorName, authorEmail, os.Getenv(envvar.GitRoot)), nil
}

func defaultTemplateRoot() string {
	if root := os.Getenv(envvar.TemplateRoot); root != "" {
		return root
	}
	return "template"
}
