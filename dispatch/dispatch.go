// Package dispatch triggers a provisioning run remotely by sending a
// workflow_dispatch event to the repository that hosts the provisioning
// workflow. The dispatch only submits the request; completion is observed
// on the host, not awaited here.
package dispatch

import (
	"context"
	"strings"

	"github.com/google/go-github/v56/github"
	"github.com/pkg/errors"
	"github.com/platformeng/infrarepo/config"
)

// DefaultWorkflowFile is the workflow that runs provisioning on dispatch.
const DefaultWorkflowFile = "provision-infra-repo.yml"

// Target names the workflow the dispatch is sent to.
type Target struct {
	Owner string
	Repo  string
	// WorkflowFile is the workflow file name, e.g. provision-infra-repo.yml.
	WorkflowFile string
	// Ref is the branch the workflow runs on.
	Ref string
}

// Inputs flattens a provisioning request into the workflow_dispatch input
// fields. Every field is required on this path; the workflow has no way to
// prompt for the rest.
func Inputs(req config.Request) map[string]interface{} {
	return map[string]interface{}{
		"app_name":          req.AppName,
		"target_github_org": req.Org,
		"app_team_contacts": req.Contacts,
		"aws_accounts":      config.FormatAccounts(req.Accounts),
		"staging_approvers": strings.Join(req.StagingApprovers, ","),
		"prod_approvers":    strings.Join(req.ProdApprovers, ","),
		"aws_region":        req.Region,
	}
}

// Send validates the request and submits the workflow_dispatch event.
// The host answers 204 on success; any other status surfaces as an error
// carrying the response body.
func Send(ctx context.Context, client *github.Client, target Target, req config.Request) error {
	if err := req.Validate(); err != nil {
		return err
	}

	if target.WorkflowFile == "" {
		target.WorkflowFile = DefaultWorkflowFile
	}
	if target.Ref == "" {
		target.Ref = "main"
	}

	_, err := client.Actions.CreateWorkflowDispatchEventByFileName(
		ctx, target.Owner, target.Repo, target.WorkflowFile,
		github.CreateWorkflowDispatchEventRequest{
			Ref:    target.Ref,
			Inputs: Inputs(req),
		})
	if err != nil {
		return errors.Wrapf(err, "unable to dispatch %s on %s/%s", target.WorkflowFile, target.Owner, target.Repo)
	}

	return nil
}
