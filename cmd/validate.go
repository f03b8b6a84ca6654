package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/platformeng/infrarepo/awsregistry"
	"github.com/platformeng/infrarepo/config"
	"github.com/platformeng/infrarepo/githost"
	"github.com/platformeng/infrarepo/validate"
	"github.com/spf13/cobra"
)

func NewCmdValidate() *cobra.Command {
	var (
		dir    = "."
		org    string
		repo   string
		remote bool
		aws    bool
	)

	cmd := &cobra.Command{
		Use:   "validate [dir]",
		Short: "Validate a provisioned infrastructure repository",
		Long:  "runs the deployability checks against a working tree and, with --remote, against the repository host. Exits non-zero iff a critical check fails; warnings alone never fail the run.",
		Args:  cobra.MaximumNArgs(1),
		PreRun: func(cmd *cobra.Command, args []string) {
			if len(args) > 0 {
				dir = args[0]
			}
		},
	}

	cmd.RunE = runE(func(ctx context.Context) error {
		target := &validate.Target{
			Dir:  dir,
			Org:  org,
			Repo: repo,
		}

		if remote {
			if org == "" || repo == "" {
				return fmt.Errorf("--remote requires --org and --repo")
			}
			target.Host = githost.NewGitHub(config.NewGitHubClient())
		}

		if aws {
			registry, err := awsregistry.NewOrganizations(ctx)
			if err != nil {
				return err
			}
			target.Registry = registry
		}

		report := validate.New().Run(ctx, target)
		validate.Write(os.Stdout, report)

		if report.Failed > 0 {
			cmd.SilenceUsage = true
			return fmt.Errorf("%d critical check(s) failed", report.Failed)
		}

		return nil
	})

	cmd.Flags().StringVar(&org, "org", "", "The GitHub organization of the repository.")
	cmd.Flags().StringVar(&repo, "repo", "", "The repository name.")
	cmd.Flags().BoolVar(&remote, "remote", false, "Also check branches, environments, and secrets on the host.")
	cmd.Flags().BoolVar(&aws, "aws", false, "Also check account status against the AWS organization.")

	return cmd
}
