package config

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Environment keys used throughout infrarepo to identify the three
// AWS accounts an application team deploys to.
const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

// EnvNames is the fixed, ordered set of environments.
var EnvNames = []string{EnvDev, EnvStaging, EnvProd}

const (
	// DefaultRegion is used when the request does not name one.
	DefaultRegion = "us-east-1"

	// RepoNameSuffix is appended to the app name to derive the default
	// repository name.
	RepoNameSuffix = "-infrastructure"
)

var (
	appNameRegexp   = regexp.MustCompile(`^[a-z0-9-]+$`)
	accountIDRegexp = regexp.MustCompile(`^[0-9]{12}$`)
)

// Request is the validated set of provisioning inputs.
//
// It is built once by a trigger adapter, validated, and then passed by value
// through every provisioning stage. Stages never mutate it.
type Request struct {
	// AppName is the name of the application the infrastructure repository
	// is provisioned for. Lowercase alphanumeric and hyphens only.
	AppName string `yaml:"appName"`

	// Org is the GitHub organization the repository is created in.
	Org string `yaml:"org"`

	// RepoName is the name of the repository to create.
	// Defaults to "<appName>-infrastructure".
	RepoName string `yaml:"repoName,omitempty"`

	// Accounts maps the environment name (dev, staging, prod) to the
	// 12-digit AWS account identifier the environment deploys to.
	Accounts map[string]string `yaml:"accounts"`

	// StagingApprovers and ProdApprovers are the GitHub handles that gate
	// deployments to the staging and production environments.
	// An empty list is accepted but always produces a warning.
	StagingApprovers []string `yaml:"stagingApprovers,omitempty"`
	ProdApprovers    []string `yaml:"prodApprovers,omitempty"`

	// Region is the AWS region written into the generated configuration.
	Region string `yaml:"region,omitempty"`

	// Contacts is the application team's notification channelable handle,
	// recorded in the generated repository for humans. Optional.
	Contacts string `yaml:"contacts,omitempty"`
}

// WithDefaults returns a copy of the request with the derived repository
// name and the default region filled in.
func (r Request) WithDefaults() Request {
	if r.RepoName == "" && r.AppName != "" {
		r.RepoName = r.AppName + RepoNameSuffix
	}
	if r.Region == "" {
		r.Region = DefaultRegion
	}
	return r
}

// Validate checks every field and reports all violations at once.
// It performs no I/O. The returned error is a FieldErrors when non-nil.
func (r Request) Validate() error {
	var errs FieldErrors

	if r.AppName == "" {
		errs = errs.append("appName", "is required")
	} else if !appNameRegexp.MatchString(r.AppName) {
		errs = errs.append("appName", fmt.Sprintf("%q must match %s", r.AppName, appNameRegexp))
	}

	if r.Org == "" {
		errs = errs.append("org", "is required")
	}

	if r.RepoName == "" {
		errs = errs.append("repoName", "is required")
	}

	for _, env := range EnvNames {
		id := r.Accounts[env]
		field := "accounts." + env
		if id == "" {
			errs = errs.append(field, "is required")
		} else if !accountIDRegexp.MatchString(id) {
			errs = errs.append(field, fmt.Sprintf("%q must be a 12-digit AWS account ID", id))
		}
	}

	if r.Region == "" {
		errs = errs.append("region", "is required")
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

// EmptyApproverEnvs returns the environments whose approver list is empty.
// An empty list is not an error, but callers are expected to warn about it.
func (r Request) EmptyApproverEnvs() []string {
	var envs []string
	if len(r.StagingApprovers) == 0 {
		envs = append(envs, EnvStaging)
	}
	if len(r.ProdApprovers) == 0 {
		envs = append(envs, EnvProd)
	}
	return envs
}

// ParseApprovers splits a comma-separated list of GitHub handles,
// trimming whitespace and dropping duplicates while keeping order.
func ParseApprovers(s string) []string {
	var out []string
	seen := map[string]bool{}

	for _, h := range strings.Split(s, ",") {
		h = strings.TrimSpace(h)
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, h)
	}

	return out
}

// ParseAccounts parses the "dev:<id>,staging:<id>,prod:<id>" form used by
// the workflow_dispatch inputs into an environment-to-account map.
func ParseAccounts(s string) (map[string]string, error) {
	accounts := map[string]string{}

	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		env, id, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, fmt.Errorf("malformed accounts entry %q: want env:account-id", pair)
		}

		accounts[strings.TrimSpace(env)] = strings.TrimSpace(id)
	}

	return accounts, nil
}

// FormatAccounts is the inverse of ParseAccounts, in the fixed dev,
// staging, prod order.
func FormatAccounts(accounts map[string]string) string {
	pairs := make([]string, 0, len(EnvNames))
	for _, env := range EnvNames {
		pairs = append(pairs, env+":"+accounts[env])
	}
	return strings.Join(pairs, ",")
}

// FieldError is a single field-level validation failure.
type FieldError struct {
	Field   string
	Message string
}

// FieldErrors collects every validation failure of a request so that the
// caller sees all malformed fields at once, not just the first.
type FieldErrors []FieldError

func (e FieldErrors) append(field, message string) FieldErrors {
	return append(e, FieldError{Field: field, Message: message})
}

func (e FieldErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, fe := range e {
		msgs = append(msgs, fe.Field+": "+fe.Message)
	}
	return "invalid provisioning request: " + strings.Join(msgs, "; ")
}

// Fields returns the sorted names of all failing fields.
func (e FieldErrors) Fields() []string {
	fields := make([]string, 0, len(e))
	for _, fe := range e {
		fields = append(fields, fe.Field)
	}
	sort.Strings(fields)
	return fields
}
