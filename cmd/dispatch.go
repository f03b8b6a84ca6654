package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/platformeng/infrarepo/config"
	"github.com/platformeng/infrarepo/dispatch"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func NewCmdDispatch() *cobra.Command {
	var (
		flags        requestFlags
		workflowRepo string
		workflowFile string
		ref          string
	)

	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Trigger provisioning remotely",
		Long:  "sends a workflow_dispatch event to the repository that hosts the provisioning workflow. Unlike provision, every request field must be supplied up front; the workflow cannot prompt.",
		RunE: runE(func(ctx context.Context) error {
			req, err := flags.request()
			if err != nil {
				return err
			}

			*req = req.WithDefaults()

			owner, repo, ok := strings.Cut(workflowRepo, "/")
			if !ok {
				return fmt.Errorf("--workflow-repo must be in the form owner/repo, got %q", workflowRepo)
			}

			target := dispatch.Target{
				Owner:        owner,
				Repo:         repo,
				WorkflowFile: workflowFile,
				Ref:          ref,
			}

			if err := dispatch.Send(ctx, config.NewGitHubClient(), target, *req); err != nil {
				return err
			}

			logrus.WithFields(logrus.Fields{
				"workflow":   workflowFile,
				"repository": workflowRepo,
			}).Info("provisioning dispatched; watch the workflow run for completion")

			return nil
		}),
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&workflowRepo, "workflow-repo", "", "The owner/repo that hosts the provisioning workflow.")
	cmd.Flags().StringVar(&workflowFile, "workflow-file", dispatch.DefaultWorkflowFile, "The workflow file to dispatch.")
	cmd.Flags().StringVar(&ref, "ref", "main", "The branch the workflow runs on.")

	return cmd
}
