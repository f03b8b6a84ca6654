package validate

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/platformeng/infrarepo/awsregistry"
	"github.com/platformeng/infrarepo/githost"
	"github.com/platformeng/infrarepo/provision"
	"github.com/stretchr/testify/require"
)

// writeProvisionedTree lays out a fully deployable working tree.
func writeProvisionedTree(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()

	files := map[string]string{
		"main.tf":      "module \"app\" {}\n",
		"variables.tf": "variable \"app_name\" {}\n",
		"README.md":    "# my-web-app-infrastructure\n",
		"docs/SETUP.md": "# setup\n",
		"config/aws-accounts.json": `{
  "dev":     {"account_id": "123456789012", "role_name": "my-web-app-deploy"},
  "staging": {"account_id": "123456789013", "role_name": "my-web-app-deploy"},
  "prod":    {"account_id": "123456789014", "role_name": "my-web-app-deploy"}
}`,
		"tfvars/dev-terraform.tfvars.example":     "app_name = \"my-web-app\"\n",
		"tfvars/staging-terraform.tfvars.example": "app_name = \"my-web-app\"\n",
		"tfvars/prod-terraform.tfvars.example":    "app_name = \"my-web-app\"\n",
		"tfvars/dev-terraform.tfvars":             "app_name = \"my-web-app\"\n",
		"tfvars/staging-terraform.tfvars":         "app_name = \"my-web-app\"\n",
		"tfvars/prod-terraform.tfvars":            "app_name = \"my-web-app\"\n",
		"userdata/dev-linux.sh.example":           "#!/bin/bash\n",
		"userdata/dev-linux.sh":                   "#!/bin/bash\n",
		"userdata/staging-linux.sh":               "#!/bin/bash\n",
		"userdata/prod-linux.sh":                  "#!/bin/bash\n",
		"scripts/plan.sh":                         "#!/bin/bash\nterraform plan\n",
	}

	for name, content := range files {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}

	require.NoError(t, os.Chmod(filepath.Join(dir, "scripts", "plan.sh"), 0755))

	return dir
}

func TestOverallVerdictRule(t *testing.T) {
	r := &Report{}
	r.record("a", Critical, true, "")
	require.Equal(t, Pass, r.Overall())

	r.record("b", Advisory, false, "fix b")
	require.Equal(t, Warn, r.Overall())

	r.record("c", Critical, false, "fix c")
	require.Equal(t, Fail, r.Overall())

	require.Equal(t, 1, r.Passed)
	require.Equal(t, 1, r.Warned)
	require.Equal(t, 1, r.Failed)
}

func TestRunLocalPass(t *testing.T) {
	dir := writeProvisionedTree(t)

	report := New().Run(context.Background(), &Target{Dir: dir})

	require.Equal(t, Pass, report.Overall(), "unexpected report: %+v", report.Results)
	require.Zero(t, report.Failed)
	require.Zero(t, report.Warned)
}

func TestRunMissingAccountsConfigFails(t *testing.T) {
	dir := writeProvisionedTree(t)
	require.NoError(t, os.Remove(filepath.Join(dir, "config", "aws-accounts.json")))

	report := New().Run(context.Background(), &Target{Dir: dir})

	require.Equal(t, Fail, report.Overall())

	var found bool
	for _, r := range report.Results {
		if r.Name == "accounts-config" {
			found = true
			require.Equal(t, Fail, r.Verdict)
			require.NotEmpty(t, r.Remediation)
		}
	}
	require.True(t, found)
}

func TestRunMalformedAccountIDFails(t *testing.T) {
	dir := writeProvisionedTree(t)
	p := filepath.Join(dir, "config", "aws-accounts.json")
	require.NoError(t, os.WriteFile(p, []byte(`{"dev": {"account_id": "123", "role_name": "x"}}`), 0644))

	report := New().Run(context.Background(), &Target{Dir: dir})
	require.Equal(t, Fail, report.Overall())
}

func TestRunSingleMissingTfvarsWarns(t *testing.T) {
	dir := writeProvisionedTree(t)
	require.NoError(t, os.Remove(filepath.Join(dir, "tfvars", "dev-terraform.tfvars")))

	report := New().Run(context.Background(), &Target{Dir: dir})

	// The example counterpart exists; deployment to the other
	// environments still works, so this is at worst a warning.
	require.Equal(t, Warn, report.Overall())
	require.Zero(t, report.Failed)
}

func TestRunAllTfvarsMissingFails(t *testing.T) {
	dir := writeProvisionedTree(t)
	for _, env := range []string{"dev", "staging", "prod"} {
		require.NoError(t, os.Remove(filepath.Join(dir, "tfvars", env+"-terraform.tfvars")))
	}

	report := New().Run(context.Background(), &Target{Dir: dir})

	require.Equal(t, Fail, report.Overall())
}

func TestRunNonExecutableScriptWarns(t *testing.T) {
	dir := writeProvisionedTree(t)
	require.NoError(t, os.Chmod(filepath.Join(dir, "scripts", "plan.sh"), 0644))

	report := New().Run(context.Background(), &Target{Dir: dir})

	require.Equal(t, Warn, report.Overall())
	require.Zero(t, report.Failed)
}

func TestRunIsDeterministic(t *testing.T) {
	dir := writeProvisionedTree(t)
	require.NoError(t, os.Remove(filepath.Join(dir, "tfvars", "dev-terraform.tfvars")))

	target := &Target{Dir: dir}

	first := New().Run(context.Background(), target)
	second := New().Run(context.Background(), target)

	require.Empty(t, cmp.Diff(first, second))
}

func TestRunRemoteChecks(t *testing.T) {
	dir := writeProvisionedTree(t)

	host := githost.NewFake()
	host.Seed("acme", "my-web-app-infrastructure")
	host.SetSecrets("acme", "my-web-app-infrastructure",
		"AWS_DEPLOY_ROLE_DEV", "AWS_DEPLOY_ROLE_STAGING")

	ctx := context.Background()
	for _, branch := range []string{"dev", "staging"} {
		require.NoError(t, host.CreateBranch(ctx, "acme", "my-web-app-infrastructure", branch, "main"))
	}

	require.NoError(t, host.UpsertEnvironment(ctx, "acme", "my-web-app-infrastructure", githost.EnvironmentSpec{
		Name: "staging", Reviewers: []string{"john"}, Branch: "staging",
	}))
	require.NoError(t, host.UpsertEnvironment(ctx, "acme", "my-web-app-infrastructure", githost.EnvironmentSpec{
		Name: "production", Branch: "production", WaitTimerSeconds: provision.ProdWaitTimerSeconds,
	}))

	report := New().Run(ctx, &Target{
		Dir:  dir,
		Org:  "acme",
		Repo: "my-web-app-infrastructure",
		Host: host,
	})

	verdicts := map[string]Verdict{}
	for _, r := range report.Results {
		verdicts[r.Name] = r.Verdict
	}

	// Missing branch and environment are self-healable: advisory.
	require.Equal(t, Pass, verdicts["branch:dev"])
	require.Equal(t, Warn, verdicts["branch:production"])
	require.Equal(t, Warn, verdicts["environment:dev"])
	require.Equal(t, Pass, verdicts["environment:staging"])

	// Empty reviewer list on a gated environment always warns.
	require.Equal(t, Pass, verdicts["approvers:staging"])
	require.Equal(t, Warn, verdicts["approvers:production"])

	// A missing deployment secret is critical.
	require.Equal(t, Pass, verdicts["secret:AWS_DEPLOY_ROLE_DEV"])
	require.Equal(t, Fail, verdicts["secret:AWS_DEPLOY_ROLE_PROD"])

	require.Equal(t, Fail, report.Overall())
}

func TestRunRegistryCheck(t *testing.T) {
	dir := writeProvisionedTree(t)

	t.Run("all active", func(t *testing.T) {
		report := New().Run(context.Background(), &Target{
			Dir: dir,
			Registry: awsregistry.Static{
				"123456789012": "ACTIVE",
				"123456789013": "ACTIVE",
				"123456789014": "ACTIVE",
			},
		})
		require.Equal(t, Pass, report.Overall())
	})

	t.Run("suspended account warns", func(t *testing.T) {
		report := New().Run(context.Background(), &Target{
			Dir: dir,
			Registry: awsregistry.Static{
				"123456789012": "ACTIVE",
				"123456789013": "SUSPENDED",
				"123456789014": "ACTIVE",
			},
		})
		require.Equal(t, Warn, report.Overall())
	})
}
