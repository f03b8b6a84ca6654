package provision

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/platformeng/infrarepo/config"
	"github.com/platformeng/infrarepo/githost"
	"github.com/platformeng/infrarepo/template"
	"github.com/stretchr/testify/require"
)

func testRequest() config.Request {
	return config.Request{
		AppName: "my-web-app",
		Org:     "acme",
		Accounts: map[string]string{
			config.EnvDev:     "123456789012",
			config.EnvStaging: "123456789013",
			config.EnvProd:    "123456789014",
		},
		StagingApprovers: []string{"john", "jane"},
		ProdApprovers:    []string{"lee", "kim"},
	}.WithDefaults()
}

func writeTemplateFixture(t *testing.T) string {
	t.Helper()

	root := t.TempDir()

	files := map[string]string{
		"main.tf":                "module \"app\" {}\n",
		"variables.tf":           "variable \"app_name\" {}\n",
		"outputs.tf":             "output \"app_url\" {}\n",
		"README.md":              "# infrastructure\n",
		".workflows/deploy.yml":  "name: deploy\n",
		"scripts/plan.sh":        "#!/bin/bash\nterraform plan\n",
		"docs/SETUP.md":          "# setup\n",
		"config/.gitkeep":        "",
		"shared/backend-dev.hcl": "allowed_account_ids = [\"REPLACE_WITH_DEV_ACCOUNT_ID\"]\n",
	}

	for name, content := range files {
		p := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}

	return root
}

// fakeCommitter satisfies Committer with a plain directory, no git.
type fakeCommitter struct {
	dir      string
	messages []string
}

func (c *fakeCommitter) Checkout(ctx context.Context) (string, error) {
	return c.dir, nil
}

func (c *fakeCommitter) CommitAll(ctx context.Context, message string) error {
	c.messages = append(c.messages, message)
	return nil
}

func newOrchestrator(t *testing.T, host *githost.Fake) (*Orchestrator, *fakeCommitter) {
	t.Helper()

	committer := &fakeCommitter{dir: t.TempDir()}

	return &Orchestrator{
		Host:         host,
		Materializer: &template.Materializer{TemplateRoot: writeTemplateFixture(t)},
		NewCommitter: func(*githost.Repository) (Committer, error) {
			return committer, nil
		},
	}, committer
}

func TestRunRejectsInvalidInputWithoutExternalCalls(t *testing.T) {
	host := githost.NewFake()
	orch, _ := newOrchestrator(t, host)

	t.Run("app name", func(t *testing.T) {
		req := testRequest()
		req.AppName = "My_Web_App"

		_, err := orch.Run(context.Background(), req)
		require.Error(t, err)
		require.Contains(t, err.Error(), "stage Validated")
		require.Zero(t, host.Calls)
	})

	t.Run("account id", func(t *testing.T) {
		req := testRequest()
		req.Accounts[config.EnvProd] = "not-a-number"

		_, err := orch.Run(context.Background(), req)
		require.Error(t, err)
		require.Zero(t, host.Calls)
	})
}

func TestRunProvisionsRepository(t *testing.T) {
	host := githost.NewFake()
	orch, committer := newOrchestrator(t, host)

	req := testRequest()

	summary, err := orch.Run(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, []string{"dev", "main", "production", "staging"},
		host.Branches("acme", "my-web-app-infrastructure"))

	staging, ok := host.Environment("acme", "my-web-app-infrastructure", "staging")
	require.True(t, ok)
	require.Equal(t, 0, staging.WaitTimerSeconds)
	require.Equal(t, []string{"john", "jane"}, staging.Reviewers)
	require.Equal(t, "staging", staging.Branch)

	prod, ok := host.Environment("acme", "my-web-app-infrastructure", "production")
	require.True(t, ok)
	require.Equal(t, 300, prod.WaitTimerSeconds)
	require.Equal(t, []string{"lee", "kim"}, prod.Reviewers)
	require.Equal(t, "production", prod.Branch)

	require.Len(t, committer.messages, 1)
	for _, id := range []string{"123456789012", "123456789013", "123456789014"} {
		require.Contains(t, committer.messages[0], id)
	}
	require.Contains(t, committer.messages[0], "Next steps")

	// The template landed in the working tree.
	_, err = os.Stat(filepath.Join(committer.dir, "main.tf"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(committer.dir, template.AccountsFile))
	require.NoError(t, err)

	require.Len(t, summary.Environments, 3)
	require.NotEmpty(t, summary.NextSteps)
}

func TestRunIsIdempotent(t *testing.T) {
	host := githost.NewFake()
	orch, _ := newOrchestrator(t, host)

	req := testRequest()

	_, err := orch.Run(context.Background(), req)
	require.NoError(t, err)

	branches := host.Branches("acme", "my-web-app-infrastructure")
	staging, _ := host.Environment("acme", "my-web-app-infrastructure", "staging")

	// Second run: branches already exist, environments are overwritten
	// with the same spec, no error.
	orch.Decide = func(*githost.Repository, githost.Existence) (Decision, error) {
		return Proceed, nil
	}

	_, err = orch.Run(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, branches, host.Branches("acme", "my-web-app-infrastructure"))

	stagingAfter, _ := host.Environment("acme", "my-web-app-infrastructure", "staging")
	require.Equal(t, staging, stagingAfter)
}

func TestRunAbortsOnExistingRepository(t *testing.T) {
	host := githost.NewFake()
	host.Seed("acme", "my-web-app-infrastructure")

	orch, committer := newOrchestrator(t, host)
	orch.Decide = func(repo *githost.Repository, existence githost.Existence) (Decision, error) {
		require.Equal(t, githost.ExistsPopulated, existence)
		require.Equal(t, "acme/my-web-app-infrastructure", repo.FullName())
		return Abort, nil
	}

	_, err := orch.Run(context.Background(), testRequest())
	require.ErrorIs(t, err, ErrAborted)

	// Nothing past the decision point ran.
	require.Empty(t, committer.messages)
	require.Equal(t, []string{"main"}, host.Branches("acme", "my-web-app-infrastructure"))
}

func TestRunRecreateClearsExistingContents(t *testing.T) {
	host := githost.NewFake()
	host.Seed("acme", "my-web-app-infrastructure")

	orch, committer := newOrchestrator(t, host)
	orch.Decide = func(*githost.Repository, githost.Existence) (Decision, error) {
		return Recreate, nil
	}

	// A prior working tree with files the template no longer carries.
	require.NoError(t, os.MkdirAll(filepath.Join(committer.dir, ".git"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(committer.dir, ".git", "config"), []byte("[core]\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(committer.dir, "legacy.tf"), []byte("resource \"old\" {}\n"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(committer.dir, "modules"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(committer.dir, "modules", "old.tf"), []byte("{}\n"), 0644))

	_, err := orch.Run(context.Background(), testRequest())
	require.NoError(t, err)

	// Stale files are gone, git metadata and the template survive.
	_, err = os.Stat(filepath.Join(committer.dir, "legacy.tf"))
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(committer.dir, "modules"))
	require.True(t, os.IsNotExist(err))

	_, err = os.Stat(filepath.Join(committer.dir, ".git", "config"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(committer.dir, "main.tf"))
	require.NoError(t, err)
}

func TestRunProceedKeepsExistingContents(t *testing.T) {
	host := githost.NewFake()
	host.Seed("acme", "my-web-app-infrastructure")

	orch, committer := newOrchestrator(t, host)
	orch.Decide = func(*githost.Repository, githost.Existence) (Decision, error) {
		return Proceed, nil
	}

	require.NoError(t, os.WriteFile(filepath.Join(committer.dir, "legacy.tf"), []byte("resource \"old\" {}\n"), 0644))

	_, err := orch.Run(context.Background(), testRequest())
	require.NoError(t, err)

	// Proceed overlays the template without touching other files.
	_, err = os.Stat(filepath.Join(committer.dir, "legacy.tf"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(committer.dir, "main.tf"))
	require.NoError(t, err)
}

func TestRunSurfacesFailingStage(t *testing.T) {
	host := githost.NewFake()
	host.FailOn = map[string]error{
		"UpsertEnvironment": fmt.Errorf("boom"),
	}

	orch, committer := newOrchestrator(t, host)

	_, err := orch.Run(context.Background(), testRequest())
	require.Error(t, err)
	require.Contains(t, err.Error(), "stage EnvironmentsConfigured")
	require.Contains(t, err.Error(), "boom")

	// Later stages never ran; earlier side effects are not rolled back.
	require.Empty(t, committer.messages)
	require.Equal(t, []string{"dev", "main", "production", "staging"},
		host.Branches("acme", "my-web-app-infrastructure"))
}

func TestCreateBranchAlreadyExistsIsSuccess(t *testing.T) {
	host := githost.NewFake()
	host.Seed("acme", "repo")

	require.NoError(t, host.CreateBranch(context.Background(), "acme", "repo", "dev", "main"))

	err := host.CreateBranch(context.Background(), "acme", "repo", "dev", "main")
	require.True(t, errors.Is(err, githost.ErrAlreadyExists))
}

func TestCommitMessage(t *testing.T) {
	msg := CommitMessage(testRequest())

	require.Contains(t, msg, "Provision infrastructure repository for my-web-app")
	require.Contains(t, msg, "- dev: 123456789012")
	require.Contains(t, msg, "- staging: 123456789013")
	require.Contains(t, msg, "- prod: 123456789014")
	require.Contains(t, msg, "AWS_DEPLOY_ROLE_DEV")
}
