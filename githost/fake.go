package githost

import (
	"context"
	"fmt"
	"sort"
)

// Fake is an in-memory Host for tests. It counts every call so that tests
// can assert that invalid inputs never reach the host, and it can be told
// to fail a named operation to simulate partial provisioning failures.
type Fake struct {
	// Calls counts every Host method invocation.
	Calls int

	// FailOn maps an operation name (e.g. "CreateBranch") to the error
	// the fake returns for it.
	FailOn map[string]error

	repos map[string]*fakeRepo
}

var _ Host = &Fake{}

type fakeRepo struct {
	repo         Repository
	branches     map[string]bool
	environments map[string]EnvironmentSpec
	secrets      []string
}

func NewFake() *Fake {
	return &Fake{repos: map[string]*fakeRepo{}}
}

// Seed registers a repository as pre-existing, with its default branch.
func (f *Fake) Seed(org, name string) *Repository {
	r := &fakeRepo{
		repo: Repository{
			Org:           org,
			Name:          name,
			DefaultBranch: "main",
			CloneURL:      fmt.Sprintf("https://github.test/%s/%s.git", org, name),
			HTMLURL:       fmt.Sprintf("https://github.test/%s/%s", org, name),
		},
		branches:     map[string]bool{"main": true},
		environments: map[string]EnvironmentSpec{},
	}
	f.repos[org+"/"+name] = r

	repo := r.repo
	return &repo
}

// SetSecrets sets the secret names reported by ListSecrets.
func (f *Fake) SetSecrets(org, name string, secrets ...string) {
	f.repos[org+"/"+name].secrets = secrets
}

// Branches returns the sorted branch names of a repository.
func (f *Fake) Branches(org, name string) []string {
	r, ok := f.repos[org+"/"+name]
	if !ok {
		return nil
	}

	var branches []string
	for b := range r.branches {
		branches = append(branches, b)
	}
	sort.Strings(branches)
	return branches
}

// Environment returns the upserted spec, if any.
func (f *Fake) Environment(org, name, envName string) (EnvironmentSpec, bool) {
	r, ok := f.repos[org+"/"+name]
	if !ok {
		return EnvironmentSpec{}, false
	}
	spec, ok := r.environments[envName]
	return spec, ok
}

func (f *Fake) call(op string) error {
	f.Calls++
	if err, ok := f.FailOn[op]; ok {
		return err
	}
	return nil
}

func (f *Fake) Exists(ctx context.Context, org, name string) (Existence, error) {
	if err := f.call("Exists"); err != nil {
		return Absent, err
	}

	r, ok := f.repos[org+"/"+name]
	if !ok {
		return Absent, nil
	}
	if len(r.branches) == 0 {
		return ExistsEmpty, nil
	}
	return ExistsPopulated, nil
}

func (f *Fake) Get(ctx context.Context, org, name string) (*Repository, error) {
	if err := f.call("Get"); err != nil {
		return nil, err
	}

	r, ok := f.repos[org+"/"+name]
	if !ok {
		return nil, ErrNotFound
	}

	repo := r.repo
	return &repo, nil
}

func (f *Fake) Create(ctx context.Context, org, name, description string) (*Repository, error) {
	if err := f.call("Create"); err != nil {
		return nil, err
	}

	if _, ok := f.repos[org+"/"+name]; ok {
		return nil, fmt.Errorf("repository %s/%s %w", org, name, ErrAlreadyExists)
	}

	return f.Seed(org, name), nil
}

func (f *Fake) CreateBranch(ctx context.Context, org, name, branch, from string) error {
	if err := f.call("CreateBranch"); err != nil {
		return err
	}

	r, ok := f.repos[org+"/"+name]
	if !ok {
		return ErrNotFound
	}
	if !r.branches[from] {
		return fmt.Errorf("base branch %q %w", from, ErrNotFound)
	}
	if r.branches[branch] {
		return ErrAlreadyExists
	}

	r.branches[branch] = true
	return nil
}

func (f *Fake) BranchExists(ctx context.Context, org, name, branch string) (bool, error) {
	if err := f.call("BranchExists"); err != nil {
		return false, err
	}

	r, ok := f.repos[org+"/"+name]
	if !ok {
		return false, ErrNotFound
	}
	return r.branches[branch], nil
}

func (f *Fake) UpsertEnvironment(ctx context.Context, org, name string, spec EnvironmentSpec) error {
	if err := f.call("UpsertEnvironment"); err != nil {
		return err
	}

	r, ok := f.repos[org+"/"+name]
	if !ok {
		return ErrNotFound
	}

	r.environments[spec.Name] = spec
	return nil
}

func (f *Fake) GetEnvironment(ctx context.Context, org, name, envName string) (*EnvironmentSpec, error) {
	if err := f.call("GetEnvironment"); err != nil {
		return nil, err
	}

	r, ok := f.repos[org+"/"+name]
	if !ok {
		return nil, ErrNotFound
	}

	spec, ok := r.environments[envName]
	if !ok {
		return nil, fmt.Errorf("environment %q %w", envName, ErrNotFound)
	}
	return &spec, nil
}

func (f *Fake) ListSecrets(ctx context.Context, org, name string) ([]string, error) {
	if err := f.call("ListSecrets"); err != nil {
		return nil, err
	}

	r, ok := f.repos[org+"/"+name]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]string{}, r.secrets...), nil
}
