package repository

import (
	"fmt"

	"github.com/harpreetsinghsandhu021/tide-version-control/pkg/object"
)

// CreateBranch creates a new branch at target, delegating to the
// Reference Store's CAS-guarded CreateBranch.
func (r *Repo) CreateBranch(name string, target object.Hash) error {
	return r.Refs.CreateBranch(name, target)
}

// DeleteBranch removes a branch, refusing to delete the currently checked
// out one (matching the teacher's pkg/repo/branch.go DeleteBranch).
func (r *Repo) DeleteBranch(name string) error {
	current, err := r.Refs.CurrentBranch()
	if err != nil {
		return err
	}
	if current == name {
		return fmt.Errorf("delete branch: cannot delete current branch %q", name)
	}
	_, err = r.Refs.DeleteBranch(name)
	return err
}

// ListBranches returns every local branch name, sorted.
func (r *Repo) ListBranches() ([]string, error) {
	return r.Refs.ListBranches()
}

// CurrentBranch returns the checked-out branch name, or "" when HEAD is
// detached.
func (r *Repo) CurrentBranch() (string, error) {
	return r.Refs.CurrentBranch()
}

