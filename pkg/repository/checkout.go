package repository

import (
	"fmt"
	"strings"

	"github.com/harpreetsinghsandhu021/tide-version-control/pkg/index"
	"github.com/harpreetsinghsandhu021/tide-version-control/pkg/object"
	"github.com/harpreetsinghsandhu021/tide-version-control/pkg/workspace"
)

// Checkout switches the working tree and index to target (a branch name
// or a raw commit hash), refusing if a path the switch deletes or updates
// differs in the working tree from its version in the current HEAD
// commit. Built on CheckoutDiff + Migration (spec
// §4.7) rather than the teacher's single remove-then-write loop.
func (r *Repo) Checkout(target string) error {
	isBranch := true
	targetHash, err := r.ResolveRef("refs/heads/" + target)
	if err != nil {
		isBranch = false
		targetHash = object.Hash(target)
	}

	var fromTree object.Hash
	headHash, err := r.ResolveRef("HEAD")
	if err == nil && headHash != "" {
		headCommit, err := r.Store.ReadCommit(headHash)
		if err != nil {
			return fmt.Errorf("checkout: read HEAD commit: %w", err)
		}
		fromTree = headCommit.TreeHash
	}

	targetCommit, err := r.Store.ReadCommit(targetHash)
	if err != nil {
		return fmt.Errorf("checkout: read target commit %s: %w", targetHash, err)
	}

	diff, err := workspace.CheckoutDiff(r.Store, fromTree, targetCommit.TreeHash)
	if err != nil {
		return fmt.Errorf("checkout: %w", err)
	}

	idx, err := index.LoadForUpdate(r.indexPath())
	if err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	defer idx.ReleaseLock()

	mig := workspace.New(r.RootDir, r.Store, idx)
	if err := mig.Apply(diff); err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	if err := idx.WriteUpdates(); err != nil {
		return fmt.Errorf("checkout: %w", err)
	}

	if isBranch {
		return r.Refs.SetHeadSymbolic("refs/heads/" + strings.TrimPrefix(target, "refs/heads/"))
	}
	return r.Refs.SetHeadDetached(targetHash)
}
