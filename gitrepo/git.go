// Package gitrepo wraps the git plumbing used to commit and push the
// materialized working tree to the provisioned repository.
package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5/osfs"
	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/storage/filesystem"
)

// Repo is a clone of the provisioned repository that the materializer
// writes into and the orchestrator commits from.
type Repo struct {
	Auth transport.AuthMethod

	// URL is the clone URL of the provisioned repository.
	URL string

	// Branch is the default branch the single provisioning commit is
	// pushed to.
	Branch string

	// AuthorName and AuthorEmail sign the provisioning commit.
	AuthorName  string
	AuthorEmail string

	// GitRoot is the directory the repository is cloned under.
	// If empty, a temporary directory is used.
	GitRoot string

	repository *git.Repository
	worktree   *git.Worktree
	cloned     bool
}

func New(auth transport.AuthMethod, url, branch, authorName, authorEmail, gitRoot string) *Repo {
	if branch == "" {
		branch = "main"
	}

	return &Repo{
		Auth:        auth,
		URL:         url,
		Branch:      branch,
		AuthorName:  authorName,
		AuthorEmail: authorEmail,
		GitRoot:     gitRoot,
	}
}

// Checkout clones the repository (or opens a prior clone) and checks out
// the default branch. It returns the path of the working tree.
func (r *Repo) Checkout(ctx context.Context) (string, error) {
	if err := r.ensureCloned(); err != nil {
		return "", err
	}

	w, err := r.getWorktree()
	if err != nil {
		return "", fmt.Errorf("unable to get worktree: %w", err)
	}

	refName := plumbing.NewBranchReferenceName(r.Branch)

	head, err := r.repository.Head()
	if err == nil && head.Name() != refName {
		if err := w.Checkout(&git.CheckoutOptions{Branch: refName}); err != nil {
			return "", fmt.Errorf("unable to checkout branch %q: %w", r.Branch, err)
		}
	}

	return r.localPath(), nil
}

// CommitAll stages every change in the working tree, commits it with the
// given message, and pushes the default branch.
func (r *Repo) CommitAll(ctx context.Context, message string) error {
	w, err := r.getWorktree()
	if err != nil {
		return fmt.Errorf("unable to get worktree: %w", err)
	}

	if err := w.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return fmt.Errorf("unable to run git-add: %w", err)
	}

	if _, err := w.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  r.AuthorName,
			Email: r.AuthorEmail,
			When:  time.Now(),
		},
	}); err != nil {
		return fmt.Errorf("unable to commit: %w", err)
	}

	remote, err := r.repository.Remote("origin")
	if err != nil {
		return fmt.Errorf("unable to get remote origin: %w", err)
	}

	refName := plumbing.NewBranchReferenceName(r.Branch)
	if err := remote.PushContext(ctx, &git.PushOptions{
		RefSpecs: []config.RefSpec{
			config.RefSpec(refName + ":" + refName),
		},
		Auth: r.Auth,
	}); err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("unable to push %s to remote origin: %w", refName, err)
	}

	return nil
}

func (r *Repo) localPath() string {
	dir := r.URL
	dir = strings.TrimPrefix(dir, "https://")
	dir = strings.TrimPrefix(dir, "http://")
	dir = strings.TrimPrefix(dir, "git@")
	dir = strings.TrimSuffix(dir, ".git")

	return filepath.Join(r.GitRoot, dir)
}

func (r *Repo) ensureCloned() error {
	if r.cloned {
		return nil
	}

	if r.GitRoot == "" {
		gitRoot, err := os.MkdirTemp("", "infrarepo")
		if err != nil {
			return err
		}
		r.GitRoot = gitRoot
	}

	path := r.localPath()
	fs := osfs.New(path)
	storage := filesystem.NewStorage(
		osfs.New(filepath.Join(path, ".git")),
		cache.NewObjectLRUDefault(),
	)

	repo, err := git.Clone(storage, fs, &git.CloneOptions{
		URL:           r.URL,
		Auth:          r.Auth,
		ReferenceName: plumbing.NewBranchReferenceName(r.Branch),
		SingleBranch:  true,
	})

	switch {
	case errors.Is(err, git.ErrRepositoryAlreadyExists):
		repo, err = git.PlainOpen(path)
		if err != nil {
			return fmt.Errorf("unable to open local git repository: %w", err)
		}
	case errors.Is(err, transport.ErrEmptyRemoteRepository):
		repo, err = r.initEmpty(path)
		if err != nil {
			return err
		}
	case err != nil:
		return fmt.Errorf("unable to clone git repository %s: %w", r.URL, err)
	}

	r.repository = repo
	r.cloned = true

	return nil
}

// initEmpty initializes a fresh repository for a remote that has no
// branches yet, so that the first provisioning commit can be pushed.
func (r *Repo) initEmpty(path string) (*git.Repository, error) {
	fs := osfs.New(path)
	storage := filesystem.NewStorage(
		osfs.New(filepath.Join(path, ".git")),
		cache.NewObjectLRUDefault(),
	)

	repo, err := git.Init(storage, fs)
	if err != nil {
		return nil, fmt.Errorf("unable to init git repository: %w", err)
	}

	if _, err := repo.CreateRemote(&config.RemoteConfig{
		Name: "origin",
		URLs: []string{r.URL},
	}); err != nil {
		return nil, fmt.Errorf("unable to create remote origin: %w", err)
	}

	refName := plumbing.NewBranchReferenceName(r.Branch)
	head := plumbing.NewSymbolicReference(plumbing.HEAD, refName)
	if err := repo.Storer.SetReference(head); err != nil {
		return nil, fmt.Errorf("unable to set HEAD to %s: %w", refName, err)
	}

	return repo, nil
}

func (r *Repo) getWorktree() (*git.Worktree, error) {
	if r.worktree != nil {
		return r.worktree, nil
	}

	if err := r.ensureCloned(); err != nil {
		return nil, err
	}

	w, err := r.repository.Worktree()
	if err != nil {
		return nil, err
	}

	r.worktree = w

	return w, nil
}
