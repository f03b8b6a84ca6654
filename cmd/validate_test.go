package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeValidTree(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()

	files := map[string]string{
		"main.tf":                     "module \"app\" {}\n",
		"variables.tf":                "variable \"app_name\" {}\n",
		"README.md":                   "# infrastructure\n",
		"docs/SETUP.md":               "# setup\n",
		"config/aws-accounts.json":    `{"dev":{"account_id":"123456789012","role_name":"my-web-app-deploy"}}`,
		"tfvars/dev-terraform.tfvars": "app_name = \"my-web-app\"\n",
	}

	for name, content := range files {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}

	return dir
}

func TestValidateCommand(t *testing.T) {
	t.Run("directory argument, passing tree", func(t *testing.T) {
		cmd := NewCmdValidate()
		cmd.SetArgs([]string{writeValidTree(t)})
		cmd.SetOut(os.Stderr)

		require.NoError(t, cmd.ExecuteContext(context.Background()))
	})

	t.Run("failing tree exits non-zero", func(t *testing.T) {
		cmd := NewCmdValidate()
		cmd.SetArgs([]string{t.TempDir()})
		cmd.SetOut(os.Stderr)
		cmd.SetErr(os.Stderr)

		err := cmd.ExecuteContext(context.Background())
		require.Error(t, err)
		require.Contains(t, err.Error(), "critical check(s) failed")
	})

	t.Run("remote requires org and repo", func(t *testing.T) {
		cmd := NewCmdValidate()
		cmd.SetArgs([]string{"--remote", t.TempDir()})
		cmd.SetOut(os.Stderr)
		cmd.SetErr(os.Stderr)

		err := cmd.ExecuteContext(context.Background())
		require.Error(t, err)
		require.Contains(t, err.Error(), "--remote requires --org and --repo")
	})
}
