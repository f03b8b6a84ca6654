package validate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"github.com/platformeng/infrarepo/config"
	"github.com/platformeng/infrarepo/githost"
	"github.com/platformeng/infrarepo/provision"
	"github.com/platformeng/infrarepo/template"
)

var accountIDRegexp = regexp.MustCompile(`^[0-9]{12}$`)

// Registry returns the fixed, ordered default check registry.
func Registry() []Check {
	checks := []Check{}

	for _, f := range []string{"main.tf", "variables.tf", "README.md", "docs/SETUP.md"} {
		checks = append(checks, fileCheck(f))
	}

	checks = append(checks, Check{
		Name:     "accounts-config",
		Severity: Critical,
		Run:      checkAccountsConfig,
	})

	checks = append(checks, Check{
		Name:     "tfvars-populated",
		Severity: Critical,
		Run:      checkAnyTfvars,
	})

	for _, env := range config.EnvNames {
		checks = append(checks, tfvarsCheck(env), userdataCheck(env))
	}

	checks = append(checks, Check{
		Name:     "scripts-executable",
		Severity: Advisory,
		Run:      checkScriptsExecutable,
	})

	for _, env := range config.EnvNames {
		branch := provision.EnvBranches[env]
		checks = append(checks, branchCheck(branch), environmentCheck(branch))
	}

	for _, env := range []string{provision.BranchStaging, provision.BranchProd} {
		checks = append(checks, approversCheck(env))
	}

	for _, secret := range provision.SecretNames() {
		checks = append(checks, secretCheck(secret))
	}

	checks = append(checks, Check{
		Name:             "accounts-active",
		Severity:         Advisory,
		RequiresRegistry: true,
		Run:              checkAccountsActive,
	})

	return checks
}

// fileCheck requires the file to exist and be non-empty.
func fileCheck(rel string) Check {
	return Check{
		Name:     "file:" + rel,
		Severity: Critical,
		Run: func(ctx context.Context, t *Target) (bool, string, error) {
			info, err := os.Stat(filepath.Join(t.Dir, rel))
			if err != nil || info.IsDir() || info.Size() == 0 {
				return false, fmt.Sprintf("%s is missing or empty; re-run provisioning to restore it from the template", rel), nil
			}
			return true, "", nil
		},
	}
}

func checkAccountsConfig(ctx context.Context, t *Target) (bool, string, error) {
	b, err := os.ReadFile(filepath.Join(t.Dir, template.AccountsFile))
	if err != nil {
		return false, fmt.Sprintf("%s is missing; re-run provisioning", template.AccountsFile), nil
	}

	var accounts map[string]template.AccountEntry
	if err := json.Unmarshal(b, &accounts); err != nil {
		return false, fmt.Sprintf("%s is not valid JSON: %v", template.AccountsFile, err), nil
	}

	for env, entry := range accounts {
		if !accountIDRegexp.MatchString(entry.AccountID) {
			return false, fmt.Sprintf("%s: account_id %q of %s is not a 12-digit AWS account ID", template.AccountsFile, entry.AccountID, env), nil
		}
	}

	return true, "", nil
}

func tfvarsFile(env string) string {
	return filepath.Join("tfvars", env+"-terraform.tfvars")
}

// checkAnyTfvars is critical: with no tfvars file at all, nothing can
// deploy. A single missing environment is only advisory.
func checkAnyTfvars(ctx context.Context, t *Target) (bool, string, error) {
	for _, env := range config.EnvNames {
		if _, err := os.Stat(filepath.Join(t.Dir, tfvarsFile(env))); err == nil {
			return true, "", nil
		}
	}

	return false, "no environment has a tfvars file; copy at least one tfvars/*.example into place", nil
}

func tfvarsCheck(env string) Check {
	rel := tfvarsFile(env)
	return Check{
		Name:     "tfvars:" + env,
		Severity: Advisory,
		Run: func(ctx context.Context, t *Target) (bool, string, error) {
			if _, err := os.Stat(filepath.Join(t.Dir, rel)); err != nil {
				return false, fmt.Sprintf("%s does not exist; copy %s.example into place to enable %s deployments", rel, rel, env), nil
			}
			return true, "", nil
		},
	}
}

func userdataCheck(env string) Check {
	return Check{
		Name:     "userdata:" + env,
		Severity: Advisory,
		Run: func(ctx context.Context, t *Target) (bool, string, error) {
			matches, _ := filepath.Glob(filepath.Join(t.Dir, "userdata", env+"-*"))
			for _, m := range matches {
				if !strings.HasSuffix(m, ".example") {
					return true, "", nil
				}
			}
			return false, fmt.Sprintf("no userdata file for %s; copy a userdata/%s-*.example into place if the workload needs bootstrap", env, env), nil
		},
	}
}

func checkScriptsExecutable(ctx context.Context, t *Target) (bool, string, error) {
	matches, err := filepath.Glob(filepath.Join(t.Dir, "scripts", "*.sh"))
	if err != nil {
		return false, "", err
	}

	var broken []string
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		if info.Mode().Perm()&0111 == 0 {
			broken = append(broken, filepath.Base(m))
		}
	}

	if len(broken) > 0 {
		return false, fmt.Sprintf("scripts are not executable: %s; run chmod +x", strings.Join(broken, ", ")), nil
	}

	return true, "", nil
}

func branchCheck(branch string) Check {
	return Check{
		Name:     "branch:" + branch,
		Severity: Advisory,
		Remote:   true,
		Run: func(ctx context.Context, t *Target) (bool, string, error) {
			ok, err := t.Host.BranchExists(ctx, t.Org, t.Repo, branch)
			if err != nil {
				return false, "", err
			}
			if !ok {
				return false, fmt.Sprintf("branch %q does not exist; re-run provisioning to create it", branch), nil
			}
			return true, "", nil
		},
	}
}

func environmentCheck(envName string) Check {
	return Check{
		Name:     "environment:" + envName,
		Severity: Advisory,
		Remote:   true,
		Run: func(ctx context.Context, t *Target) (bool, string, error) {
			_, err := t.Host.GetEnvironment(ctx, t.Org, t.Repo, envName)
			if pkgerrors.Is(err, githost.ErrNotFound) {
				return false, fmt.Sprintf("environment %q is not configured; re-run provisioning", envName), nil
			}
			if err != nil {
				return false, "", err
			}
			return true, "", nil
		},
	}
}

// approversCheck warns when a gated environment has no reviewers.
func approversCheck(envName string) Check {
	return Check{
		Name:     "approvers:" + envName,
		Severity: Advisory,
		Remote:   true,
		Run: func(ctx context.Context, t *Target) (bool, string, error) {
			spec, err := t.Host.GetEnvironment(ctx, t.Org, t.Repo, envName)
			if pkgerrors.Is(err, githost.ErrNotFound) {
				return false, fmt.Sprintf("environment %q is not configured; re-run provisioning", envName), nil
			}
			if err != nil {
				return false, "", err
			}
			if len(spec.Reviewers) == 0 {
				return false, fmt.Sprintf("environment %q has no approvers; deployments are not gated", envName), nil
			}
			return true, "", nil
		},
	}
}

func secretCheck(name string) Check {
	return Check{
		Name:     "secret:" + name,
		Severity: Critical,
		Remote:   true,
		Run: func(ctx context.Context, t *Target) (bool, string, error) {
			secrets, err := t.Host.ListSecrets(ctx, t.Org, t.Repo)
			if err != nil {
				return false, "", err
			}
			for _, s := range secrets {
				if s == name {
					return true, "", nil
				}
			}
			return false, fmt.Sprintf("secret %s is not set on the repository", name), nil
		},
	}
}

func checkAccountsActive(ctx context.Context, t *Target) (bool, string, error) {
	b, err := os.ReadFile(filepath.Join(t.Dir, template.AccountsFile))
	if err != nil {
		return false, fmt.Sprintf("%s is missing; cannot verify account status", template.AccountsFile), nil
	}

	var accounts map[string]template.AccountEntry
	if err := json.Unmarshal(b, &accounts); err != nil {
		return false, fmt.Sprintf("%s is not valid JSON: %v", template.AccountsFile, err), nil
	}

	var inactive []string
	for _, env := range config.EnvNames {
		entry, ok := accounts[env]
		if !ok {
			continue
		}

		status, err := t.Registry.AccountStatus(ctx, entry.AccountID)
		if err != nil {
			return false, "", err
		}
		if status != awsStatusActive {
			inactive = append(inactive, fmt.Sprintf("%s (%s: %s)", env, entry.AccountID, status))
		}
	}

	if len(inactive) > 0 {
		return false, "accounts are not active in the organization: " + strings.Join(inactive, ", "), nil
	}

	return true, "", nil
}

const awsStatusActive = "ACTIVE"
