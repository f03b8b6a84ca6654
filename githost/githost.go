// Package githost is a thin capability interface over the repository host.
//
// Every operation is a blocking remote call against an eventually-consistent
// platform. The one contract callers rely on is idempotency of the write
// operations: CreateBranch reports ErrAlreadyExists instead of failing, and
// UpsertEnvironment overwrites the whole environment rather than patching it,
// so a partially-failed provisioning run can always be re-run.
package githost

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a repository, branch, or environment
	// does not exist on the host.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned by CreateBranch when the branch is
	// already present. Callers must treat it as success.
	ErrAlreadyExists = errors.New("already exists")
)

// Existence is the tri-state answer to "does the target repository exist".
// It is re-queried on every run, never cached, because the remote is the
// source of truth.
type Existence int

const (
	Absent Existence = iota
	ExistsEmpty
	ExistsPopulated
)

func (e Existence) String() string {
	switch e {
	case Absent:
		return "absent"
	case ExistsEmpty:
		return "exists-empty"
	case ExistsPopulated:
		return "exists-populated"
	}
	return "unknown"
}

// Repository is the resolved handle of a repository on the host.
type Repository struct {
	Org           string
	Name          string
	DefaultBranch string
	CloneURL      string
	HTMLURL       string
}

func (r *Repository) FullName() string {
	return r.Org + "/" + r.Name
}

// EnvironmentSpec describes one protected deployment environment.
// It is applied as a whole via UpsertEnvironment; there is no partial patch.
type EnvironmentSpec struct {
	// Name is the environment name on the host. It matches the GitOps
	// branch that deploys to it (dev, staging, production).
	Name string

	// AccountID is the 12-digit AWS account the environment deploys to.
	// Informational; the host does not interpret it.
	AccountID string

	// Reviewers are the GitHub handles that must approve a deployment.
	Reviewers []string

	// WaitTimerSeconds delays deployments after approval. Fixed policy:
	// dev=0, staging=0, prod=300.
	WaitTimerSeconds int

	// Branch restricts deployments to the named branch via a custom
	// deployment branch policy.
	Branch string
}

// Host is the capability surface the provisioning orchestrator and the
// validation engine consume. Implementations perform no internal retries;
// a transient failure surfaces to the enclosing stage.
type Host interface {
	// Exists reports whether org/name exists and whether it has any branch.
	Exists(ctx context.Context, org, name string) (Existence, error)

	// Get resolves the repository handle. ErrNotFound if absent.
	Get(ctx context.Context, org, name string) (*Repository, error)

	// Create creates a private repository, initialized so that the default
	// branch exists.
	Create(ctx context.Context, org, name, description string) (*Repository, error)

	// CreateBranch creates branch from the head of from.
	// Returns ErrAlreadyExists when the branch is already present.
	CreateBranch(ctx context.Context, org, name, branch, from string) error

	// BranchExists reports whether the branch exists.
	BranchExists(ctx context.Context, org, name, branch string) (bool, error)

	// UpsertEnvironment creates or overwrites a protected environment,
	// including its reviewers, wait timer, and deployment branch policy.
	UpsertEnvironment(ctx context.Context, org, name string, spec EnvironmentSpec) error

	// GetEnvironment returns the configured environment.
	// ErrNotFound if the environment is not configured.
	GetEnvironment(ctx context.Context, org, name, envName string) (*EnvironmentSpec, error)

	// ListSecrets returns the names of the repository's Actions secrets.
	// Secret values are never read.
	ListSecrets(ctx context.Context, org, name string) ([]string, error)
}
