// Package template copies the repository template into a target working
// tree and parameterizes it for one application team.
package template

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/platformeng/infrarepo/config"
	"github.com/platformeng/infrarepo/render"
	"github.com/sirupsen/logrus"
)

// Manifest is the fixed set of template paths copied verbatim into every
// provisioned repository. A missing path aborts materialization: a
// half-populated repository is strictly worse than no repository.
var Manifest = []string{
	"main.tf",
	"variables.tf",
	"outputs.tf",
	"README.md",
	".workflows",
	"scripts",
	"docs",
	"config",
	"shared",
}

const (
	// AccountsFile is the generated environment-to-account mapping.
	AccountsFile = "config/aws-accounts.json"

	// EnvironmentsDoc is the generated environment overview, including
	// the approver lists.
	EnvironmentsDoc = "docs/ENVIRONMENTS.md"

	// accountTokenFormat is the placeholder replaced in the backend
	// configuration files, e.g. REPLACE_WITH_DEV_ACCOUNT_ID.
	accountTokenFormat = "REPLACE_WITH_%s_ACCOUNT_ID"

	appNameToken = "REPLACE_WITH_APP_NAME"
	regionToken  = "REPLACE_WITH_AWS_REGION"
)

// AccountEntry is one environment's record in config/aws-accounts.json.
type AccountEntry struct {
	AccountID string   `json:"account_id"`
	RoleName  string   `json:"role_name"`
	Approvers []string `json:"approvers,omitempty"`
}

// AccountsConfig is the shape of config/aws-accounts.json.
type AccountsConfig struct {
	Dev     AccountEntry `json:"dev"`
	Staging AccountEntry `json:"staging"`
	Prod    AccountEntry `json:"prod"`
}

// Materializer copies the template manifest into a working tree and
// substitutes the per-team parameters.
type Materializer struct {
	// TemplateRoot is the directory that contains the template paths
	// named by Manifest.
	TemplateRoot string
}

// Materialize populates dest from the template for the given request.
// It verifies the whole manifest up front so that no partial copy happens.
func (m *Materializer) Materialize(dest string, req config.Request) error {
	var missing []string
	for _, p := range Manifest {
		if _, err := os.Stat(filepath.Join(m.TemplateRoot, p)); err != nil {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("template at %s is missing required paths: %s", m.TemplateRoot, strings.Join(missing, ", "))
	}

	for _, p := range Manifest {
		if err := copyPath(filepath.Join(m.TemplateRoot, p), filepath.Join(dest, p)); err != nil {
			return fmt.Errorf("unable to copy template path %q: %w", p, err)
		}
	}

	if err := m.substituteBackendConfigs(dest, req); err != nil {
		return err
	}

	if err := m.writeAccountsFile(dest, req); err != nil {
		return err
	}

	if err := m.writeExampleDirs(dest, req); err != nil {
		return err
	}

	if err := m.writeEnvironmentsDoc(dest, req); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"dest": dest,
		"app":  req.AppName,
	}).Info("materialized template")

	return nil
}

// substituteBackendConfigs rewrites the placeholder tokens in the copied
// shared/backend-<env>.hcl files.
func (m *Materializer) substituteBackendConfigs(dest string, req config.Request) error {
	sharedDir := filepath.Join(dest, "shared")

	entries, err := os.ReadDir(sharedDir)
	if err != nil {
		return fmt.Errorf("unable to read %s: %w", sharedDir, err)
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".hcl") {
			continue
		}

		p := filepath.Join(sharedDir, e.Name())

		b, err := os.ReadFile(p)
		if err != nil {
			return err
		}

		content := string(b)
		for _, env := range config.EnvNames {
			token := fmt.Sprintf(accountTokenFormat, strings.ToUpper(env))
			content = strings.ReplaceAll(content, token, req.Accounts[env])
		}
		content = strings.ReplaceAll(content, appNameToken, req.AppName)
		content = strings.ReplaceAll(content, regionToken, req.Region)

		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			return err
		}
	}

	return nil
}

func (m *Materializer) writeAccountsFile(dest string, req config.Request) error {
	roleName := req.AppName + "-deploy"

	accounts := AccountsConfig{
		Dev: AccountEntry{
			AccountID: req.Accounts[config.EnvDev],
			RoleName:  roleName,
		},
		Staging: AccountEntry{
			AccountID: req.Accounts[config.EnvStaging],
			RoleName:  roleName,
			Approvers: req.StagingApprovers,
		},
		Prod: AccountEntry{
			AccountID: req.Accounts[config.EnvProd],
			RoleName:  roleName,
			Approvers: req.ProdApprovers,
		},
	}

	b, err := json.MarshalIndent(accounts, "", "  ")
	if err != nil {
		return err
	}

	p := filepath.Join(dest, AccountsFile)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return err
	}

	return os.WriteFile(p, append(b, '\n'), 0644)
}

// writeExampleDirs produces the tfvars/ and userdata/ directories.
// Each gets a README and per-environment example files, never a live
// configuration file. Populating them is the application team's job.
func (m *Materializer) writeExampleDirs(dest string, req config.Request) error {
	ts := []render.Template{
		{Name: "tfvars/README.md", Body: tfvarsReadmeBody, Data: req},
		{Name: "userdata/README.md", Body: userdataReadmeBody, Data: req},
	}

	for _, env := range config.EnvNames {
		data := exampleData{
			AppName:   req.AppName,
			Env:       env,
			AccountID: req.Accounts[env],
			Region:    req.Region,
		}

		ts = append(ts,
			render.Template{
				Name: fmt.Sprintf("tfvars/%s-terraform.tfvars.example", env),
				Body: tfvarsExampleBody,
				Data: data,
			},
			render.Template{
				Name: fmt.Sprintf("userdata/%s-linux.sh.example", env),
				Body: userdataLinuxExampleBody,
				Data: data,
			},
			render.Template{
				Name: fmt.Sprintf("userdata/%s-windows.ps1.example", env),
				Body: userdataWindowsExampleBody,
				Data: data,
			},
		)
	}

	if _, err := render.ToDir(dest, ts...); err != nil {
		return fmt.Errorf("unable to render example files: %w", err)
	}

	return nil
}

// writeEnvironmentsDoc records the environment configuration, including
// the approver lists, inside the repository itself so that teams do not
// have to consult the host settings to see who gates their deployments.
func (m *Materializer) writeEnvironmentsDoc(dest string, req config.Request) error {
	if _, err := render.ToDir(dest, render.Template{
		Name: EnvironmentsDoc,
		Body: environmentsDocBody,
		Data: req,
	}); err != nil {
		return fmt.Errorf("unable to render %s: %w", EnvironmentsDoc, err)
	}

	return nil
}

type exampleData struct {
	AppName   string
	Env       string
	AccountID string
	Region    string
}

func copyPath(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}

		target := dst
		if rel != "." {
			target = filepath.Join(dst, rel)
		}

		if info.IsDir() {
			return os.MkdirAll(target, 0755)
		}

		return copyFile(path, target, info.Mode().Perm())
	})
}

func copyFile(src, dst string, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}

	return out.Close()
}
