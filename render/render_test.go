package render

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExecute(t *testing.T) {
	f, err := Execute(Template{
		Name: "tfvars/dev-terraform.tfvars.example",
		Body: "environment = \"{{.Env}}\"\napprovers = \"{{join \",\" .Approvers}}\"\n",
		Data: map[string]interface{}{
			"Env":       "dev",
			"Approvers": []string{"john", "jane"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "tfvars/dev-terraform.tfvars.example", f.Path)
	require.Equal(t, "environment = \"dev\"\napprovers = \"john,jane\"\n", f.Content)
}

func TestExecuteRequiresNameAndBody(t *testing.T) {
	_, err := Execute(Template{Body: "x"})
	require.Error(t, err)

	_, err = Execute(Template{Name: "x"})
	require.Error(t, err)
}

func TestExecuteDoesNotEscape(t *testing.T) {
	// Rendered files are shell scripts and docs, not HTML.
	f, err := Execute(Template{
		Name: "userdata/dev-linux.sh.example",
		Body: "#!/bin/bash\necho \"a && b > c\"\n",
	})
	require.NoError(t, err)
	require.Equal(t, "#!/bin/bash\necho \"a && b > c\"\n", f.Content)
}

func TestToDir(t *testing.T) {
	dir := t.TempDir()

	wrote, err := ToDir(dir,
		Template{Name: "docs/SETUP.md", Body: "# {{.}}", Data: "Setup"},
		Template{Name: "tfvars/README.md", Body: "readme"},
	)
	require.NoError(t, err)
	require.Equal(t, []string{"docs/SETUP.md", "tfvars/README.md"}, wrote)

	b, err := os.ReadFile(filepath.Join(dir, "docs", "SETUP.md"))
	require.NoError(t, err)
	require.Equal(t, "# Setup", string(b))
}
