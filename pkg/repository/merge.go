package repository

import (
	"fmt"
	"strings"
	"time"

	"github.com/harpreetsinghsandhu021/tide-version-control/pkg/index"
	"github.com/harpreetsinghsandhu021/tide-version-control/pkg/merge"
	"github.com/harpreetsinghsandhu021/tide-version-control/pkg/object"
	"github.com/harpreetsinghsandhu021/tide-version-control/pkg/workspace"
)

// MergeReport summarizes the outcome of a Merge call, the orchestration
// equivalent of the teacher's pkg/repo/merge.go MergeReport (trimmed to
// what pkg/merge.TreeMergeResult already gives us per-path).
type MergeReport struct {
	CleanPaths     []string
	ConflictPaths  []string
	CollisionPaths []string
	AlreadyMerged  bool
	FastForward    bool
	MergeCommit    object.Hash
}

// Merge merges branchName into the current branch: finds the merge base
// via pkg/merge.MergeBase, resolves the tree-level three-way merge via
// pkg/merge.ThreeWayMerge, applies the result to the working tree and
// index via pkg/workspace.Migration, and — when the result is clean —
// auto-commits. A conflicted merge leaves stage 1/2/3 index entries and
// conflict-marker files for the caller to resolve, same contract as the
// teacher's Repo.Merge.
//
// Name collisions (a path that is a file on one side and a directory on
// the other) are reported in MergeReport.CollisionPaths as "<path>~left"/
// "<path>~right" but are not written to the working tree; there is no
// safe location to place them without risking an overwrite of an
// unrelated path, and neither the teacher nor the rest of the pack
// resolves this case by writing files, so the caller is left to inspect
// CollisionPaths and resolve it manually.
func (r *Repo) Merge(branchName, author, email string) (*MergeReport, error) {
	headHash, err := r.ResolveRef("HEAD")
	if err != nil {
		return nil, fmt.Errorf("merge: resolve HEAD: %w", err)
	}
	branchHash, err := r.ResolveRef("refs/heads/" + branchName)
	if err != nil {
		return nil, fmt.Errorf("merge: resolve branch %q: %w", branchName, err)
	}

	var baseOIDs []object.Hash
	base, err := merge.MergeBase(r.Store, headHash, branchHash)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	if base != "" {
		baseOIDs = []object.Hash{base}
	}

	result, err := merge.ThreeWayMerge(r.Store, headHash, branchHash, baseOIDs, "ours", branchName)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	report := &MergeReport{
		AlreadyMerged:  result.AlreadyMerged,
		FastForward:    result.FastForward,
		CollisionPaths: result.Collisions,
	}
	if result.AlreadyMerged {
		return report, nil
	}
	if result.FastForward {
		head, err := r.Head()
		if err != nil {
			return nil, fmt.Errorf("merge: %w", err)
		}
		if err := r.Checkout(string(branchHash)); err != nil {
			return nil, fmt.Errorf("merge: fast-forward checkout: %w", err)
		}
		if strings.HasPrefix(head, "refs/") {
			if err := r.Refs.CompareAndSwap(head, &headHash, &branchHash); err != nil {
				return nil, fmt.Errorf("merge: update ref %q: %w", head, err)
			}
			if err := r.Refs.SetHeadSymbolic(head); err != nil {
				return nil, fmt.Errorf("merge: %w", err)
			}
		}
		return report, nil
	}

	idx, err := index.LoadForUpdate(r.indexPath())
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	defer idx.ReleaseLock()

	mig := workspace.New(r.RootDir, r.Store, idx)
	if err := mig.Apply(result.Clean); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	for path := range result.Clean {
		report.CleanPaths = append(report.CleanPaths, path)
	}
	for path, sides := range result.Conflicts {
		report.ConflictPaths = append(report.ConflictPaths, path)
		idx.AddConflictSet(path, sides)
	}

	if err := idx.WriteUpdates(); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	if len(result.Conflicts) > 0 {
		return report, nil
	}

	now := time.Now()
	treeHash, err := r.BuildTree(idx)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	commitObj := &object.CommitObj{
		TreeHash:           treeHash,
		Parents:            []object.Hash{headHash, branchHash},
		Author:             author,
		AuthorEmail:        email,
		Timestamp:          now.Unix(),
		AuthorTimezone:     now.Format("-0700"),
		Committer:          author,
		CommitterEmail:     email,
		CommitterTimestamp: now.Unix(),
		CommitterTimezone:  now.Format("-0700"),
		Message:            fmt.Sprintf("Merge branch '%s'", branchName),
	}
	commitHash, err := r.Store.WriteCommit(commitObj)
	if err != nil {
		return nil, fmt.Errorf("merge: write commit: %w", err)
	}
	head, err := r.Head()
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	if err := r.Refs.CompareAndSwap(head, &headHash, &commitHash); err != nil {
		return nil, fmt.Errorf("merge: update ref %q: %w", head, err)
	}
	report.MergeCommit = commitHash
	return report, nil
}
