package merge

import (
	"fmt"
	"path"
	"strings"

	"github.com/harpreetsinghsandhu021/tide-version-control/pkg/index"
	"github.com/harpreetsinghsandhu021/tide-version-control/pkg/object"
)

// TreeMergeResult is the outcome of a tree-level three-way merge (spec
// §4.6 "Three-way merge"). Clean holds every path that resolved, keyed by
// the final workspace/index state to apply via a Migration (New == nil
// means delete). Conflicts holds the subset of paths that need stage
// 1/2/3 index entries instead of a clean stage-0 Add. Collisions lists,
// as "<path>~left" or "<path>~right", each file that clashes with a
// directory on the other side; such a path is removed from Clean, is not
// recorded in Conflicts, and no file is written for it.
type TreeMergeResult struct {
	Clean         map[string]object.DiffRecord
	Conflicts     map[string]index.ConflictEntries
	Collisions    []string
	FastForward   bool
	AlreadyMerged bool
}

// ThreeWayMerge merges right into left given a set of merge-base OIDs
// (typically the single result of MergeBase, but spec allows the caller to
// pass a recursive-merge virtual base list). leftLabel/rightLabel name the
// two sides in any conflict markers written into merged blobs.
func ThreeWayMerge(store *object.Store, left, right object.Hash, baseOIDs []object.Hash, leftLabel, rightLabel string) (*TreeMergeResult, error) {
	if len(baseOIDs) == 1 && baseOIDs[0] == right {
		return &TreeMergeResult{AlreadyMerged: true}, nil
	}
	if len(baseOIDs) == 1 && baseOIDs[0] == left {
		return &TreeMergeResult{FastForward: true}, nil
	}

	var base object.Hash
	if len(baseOIDs) > 0 {
		base = baseOIDs[0]
	}

	leftCommit, err := store.ReadCommit(left)
	if err != nil {
		return nil, fmt.Errorf("three-way merge: read left %s: %w", left, err)
	}
	rightCommit, err := store.ReadCommit(right)
	if err != nil {
		return nil, fmt.Errorf("three-way merge: read right %s: %w", right, err)
	}
	var baseTree object.Hash
	if base != "" {
		baseCommit, err := store.ReadCommit(base)
		if err != nil {
			return nil, fmt.Errorf("three-way merge: read base %s: %w", base, err)
		}
		baseTree = baseCommit.TreeHash
	}

	leftDiff, err := store.TreeDiff(baseTree, leftCommit.TreeHash, nil)
	if err != nil {
		return nil, fmt.Errorf("three-way merge: left diff: %w", err)
	}
	rightDiff, err := store.TreeDiff(baseTree, rightCommit.TreeHash, nil)
	if err != nil {
		return nil, fmt.Errorf("three-way merge: right diff: %w", err)
	}

	result := &TreeMergeResult{
		Clean:     make(map[string]object.DiffRecord),
		Conflicts: make(map[string]index.ConflictEntries),
	}

	for p, rrec := range rightDiff {
		lrec, inLeft := leftDiff[p]
		if !inLeft {
			result.Clean[p] = rrec
			continue
		}
		if sameEntry(lrec.New, rrec.New) {
			continue // both sides already agree; left's worktree already has it
		}

		merged, conflict, err := resolveEntry(store, p, lrec.Old, lrec.New, rrec.New, leftLabel, rightLabel)
		if err != nil {
			return nil, err
		}
		result.Clean[p] = object.DiffRecord{Old: lrec.New, New: merged}
		if conflict {
			result.Conflicts[p] = index.ConflictEntries{
				Base:   sideFromEntry(baseEntry(p, leftDiff)),
				Ours:   sideFromEntry(lrec.New),
				Theirs: sideFromEntry(rrec.New),
			}
		}
	}

	if err := detectCollisions(leftCommit.TreeHash, rightCommit.TreeHash, result, store); err != nil {
		return nil, err
	}

	return result, nil
}

// baseEntry recovers a path's base-side entry from its diff record (Old
// side of either left_diff or right_diff — both are diffs against the same
// base tree, so either carries the same Old value for a shared path).
func baseEntry(p string, leftDiff map[string]object.DiffRecord) *object.DiffEntry {
	if rec, ok := leftDiff[p]; ok {
		return rec.Old
	}
	return nil
}

func sameEntry(a, b *object.DiffEntry) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Mode == b.Mode && a.OID == b.OID
}

func sideFromEntry(e *object.DiffEntry) *index.ConflictSide {
	if e == nil {
		return nil
	}
	return &index.ConflictSide{OID: e.OID, Mode: modeToUint(e.Mode)}
}

func modeToUint(mode string) uint32 {
	var n uint32
	for _, c := range mode {
		n = n*8 + uint32(c-'0')
	}
	return n
}

// resolveEntry merges a single path's left/right DiffEntry using the blob
// and mode merge engines. Returns the final entry to write to the
// workspace (conflict-marker content when conflict=true) and whether the
// path needs a 3-stage conflict record instead of a clean stage-0 entry.
func resolveEntry(store *object.Store, p string, base, left, right *object.DiffEntry, leftLabel, rightLabel string) (*object.DiffEntry, bool, error) {
	if left == nil && right == nil {
		return nil, false, nil
	}

	var baseData, leftData, rightData []byte
	var baseMode, leftMode, rightMode string
	if base != nil {
		b, err := store.ReadBlob(base.OID)
		if err != nil {
			return nil, false, fmt.Errorf("resolve %q: read base blob: %w", p, err)
		}
		baseData = b.Data
		baseMode = base.Mode
	}
	if left != nil {
		b, err := store.ReadBlob(left.OID)
		if err != nil {
			return nil, false, fmt.Errorf("resolve %q: read left blob: %w", p, err)
		}
		leftData = b.Data
		leftMode = left.Mode
	}
	if right != nil {
		b, err := store.ReadBlob(right.OID)
		if err != nil {
			return nil, false, fmt.Errorf("resolve %q: read right blob: %w", p, err)
		}
		rightData = b.Data
		rightMode = right.Mode
	}

	blobResult := Merge3(baseData, leftData, rightData, leftLabel, rightLabel)
	mode := leftMode
	modeOK := true
	if left != nil && right != nil {
		mode, modeOK = MergeMode(baseMode, leftMode, rightMode)
	}

	conflict := !blobResult.OK || !modeOK
	oid, err := store.WriteBlob(&object.Blob{Data: blobResult.Merged})
	if err != nil {
		return nil, false, fmt.Errorf("resolve %q: write merged blob: %w", p, err)
	}
	if mode == "" {
		mode = object.TreeModeFile
	}
	return &object.DiffEntry{Mode: mode, OID: oid}, conflict, nil
}

// detectCollisions scans both final trees for a path that is a file on one
// side while an ancestor directory of that path exists on the other side
// (spec step 3). Colliding paths are pulled out of the clean diff and
// listed in result.Collisions with a "~left" or "~right" suffix naming the
// side that holds the file; nothing is written to the workspace for them.
func detectCollisions(leftTree, rightTree object.Hash, result *TreeMergeResult, store *object.Store) error {
	leftFiles, err := store.FlattenTree(leftTree)
	if err != nil {
		return fmt.Errorf("detect collisions: flatten left: %w", err)
	}
	rightFiles, err := store.FlattenTree(rightTree)
	if err != nil {
		return fmt.Errorf("detect collisions: flatten right: %w", err)
	}

	leftDirs := directoriesOf(leftFiles)
	rightDirs := directoriesOf(rightFiles)

	for p := range result.Clean {
		if _, isDir := rightDirs[p]; isDir {
			if _, isFile := leftFiles[p]; isFile {
				delete(result.Clean, p)
				result.Collisions = append(result.Collisions, p+"~left")
			}
		}
		if _, isDir := leftDirs[p]; isDir {
			if _, isFile := rightFiles[p]; isFile {
				delete(result.Clean, p)
				result.Collisions = append(result.Collisions, p+"~right")
			}
		}
	}
	return nil
}

func directoriesOf(files map[string]object.DiffEntry) map[string]struct{} {
	dirs := make(map[string]struct{})
	for p := range files {
		for d := path.Dir(p); d != "." && d != "/" && d != ""; d = path.Dir(d) {
			dirs[d] = struct{}{}
			if !strings.Contains(d, "/") {
				break
			}
		}
	}
	return dirs
}
