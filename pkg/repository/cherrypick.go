package repository

import (
	"fmt"
	"time"

	"github.com/harpreetsinghsandhu021/tide-version-control/pkg/index"
	"github.com/harpreetsinghsandhu021/tide-version-control/pkg/merge"
	"github.com/harpreetsinghsandhu021/tide-version-control/pkg/object"
	"github.com/harpreetsinghsandhu021/tide-version-control/pkg/workspace"
)

// CherryPick applies the change introduced by targetHash (relative to its
// first parent) onto HEAD via a tree-level three-way merge: the target's
// parent is the merge base, HEAD is "ours", the target commit is "theirs".
// Grounded on the teacher's pkg/repo/cherrypick_entity.go's overall
// base/ours/theirs shape, generalized from its single-entity selector to
// the whole commit tree now that entity extraction is out of scope.
func (r *Repo) CherryPick(targetHash object.Hash, author, email string) (*MergeReport, error) {
	target, err := r.Store.ReadCommit(targetHash)
	if err != nil {
		return nil, fmt.Errorf("cherry-pick: read target commit %s: %w", targetHash, err)
	}
	if len(target.Parents) == 0 {
		return nil, fmt.Errorf("cherry-pick: commit %s has no parent; cannot derive a delta", targetHash)
	}
	parentHash := target.Parents[0]

	headHash, err := r.ResolveRef("HEAD")
	if err != nil {
		return nil, fmt.Errorf("cherry-pick: resolve HEAD: %w", err)
	}
	return r.mergeTreesAndCommit(headHash, targetHash, []object.Hash{parentHash}, "cherry-pick", target.Message, author, email, []object.Hash{headHash, targetHash})
}

// Revert backs out the change introduced by targetHash: the target commit
// is the merge base, HEAD is "ours", and the target's first parent is
// "theirs" — the inverse direction of CherryPick over the same tree-level
// three-way merge.
func (r *Repo) Revert(targetHash object.Hash, author, email string) (*MergeReport, error) {
	target, err := r.Store.ReadCommit(targetHash)
	if err != nil {
		return nil, fmt.Errorf("revert: read target commit %s: %w", targetHash, err)
	}
	if len(target.Parents) == 0 {
		return nil, fmt.Errorf("revert: commit %s has no parent; cannot derive a delta", targetHash)
	}
	parentHash := target.Parents[0]

	headHash, err := r.ResolveRef("HEAD")
	if err != nil {
		return nil, fmt.Errorf("revert: resolve HEAD: %w", err)
	}
	message := fmt.Sprintf("Revert %q", target.Message)
	return r.mergeTreesAndCommit(headHash, parentHash, []object.Hash{targetHash}, "revert", message, author, email, []object.Hash{headHash})
}

// mergeTreesAndCommit runs pkg/merge.ThreeWayMerge between headHash and
// incomingHash over baseOIDs, applies the clean result to the working
// tree and index, stages conflicts if any, and — when clean — commits
// with the given parents and message.
func (r *Repo) mergeTreesAndCommit(headHash, incomingHash object.Hash, baseOIDs []object.Hash, op, message, author, email string, parents []object.Hash) (*MergeReport, error) {
	result, err := merge.ThreeWayMerge(r.Store, headHash, incomingHash, baseOIDs, "HEAD", op)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	report := &MergeReport{
		AlreadyMerged:  result.AlreadyMerged,
		FastForward:    result.FastForward,
		CollisionPaths: result.Collisions,
	}
	if result.AlreadyMerged {
		return report, nil
	}

	clean := result.Clean
	if result.FastForward {
		headCommit, err := r.Store.ReadCommit(headHash)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		incoming, err := r.Store.ReadCommit(incomingHash)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if clean, err = workspace.CheckoutDiff(r.Store, headCommit.TreeHash, incoming.TreeHash); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	idx, err := index.LoadForUpdate(r.indexPath())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer idx.ReleaseLock()

	mig := workspace.New(r.RootDir, r.Store, idx)
	if err := mig.Apply(clean); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for path := range clean {
		report.CleanPaths = append(report.CleanPaths, path)
	}
	for path, sides := range result.Conflicts {
		report.ConflictPaths = append(report.ConflictPaths, path)
		idx.AddConflictSet(path, sides)
	}

	if err := idx.WriteUpdates(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if len(result.Conflicts) > 0 {
		return report, nil
	}

	now := time.Now()
	treeHash, err := r.BuildTree(idx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	commitObj := &object.CommitObj{
		TreeHash:           treeHash,
		Parents:            parents,
		Author:             author,
		AuthorEmail:        email,
		Timestamp:          now.Unix(),
		AuthorTimezone:     now.Format("-0700"),
		Committer:          author,
		CommitterEmail:     email,
		CommitterTimestamp: now.Unix(),
		CommitterTimezone:  now.Format("-0700"),
		Message:            message,
	}
	commitHash, err := r.Store.WriteCommit(commitObj)
	if err != nil {
		return nil, fmt.Errorf("%s: write commit: %w", op, err)
	}
	head, err := r.Head()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := r.Refs.CompareAndSwap(head, &headHash, &commitHash); err != nil {
		return nil, fmt.Errorf("%s: update ref %q: %w", op, head, err)
	}
	report.MergeCommit = commitHash
	return report, nil
}
