// Package workspace implements Workspace Migration (spec §4.7): applying a
// {path -> (old?, new?)} diff — produced by merge or a checkout — to both
// the on-disk working tree and the index in lockstep. Grounded on the
// teacher's pkg/repo/checkout.go (remove-then-write file application,
// removeEmptyParents, filePermFromMode) and pkg/repo/merge.go's merged/
// deleted file application loop, generalized from the teacher's ad hoc
// per-command file loops into one diff-driven Migration.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/harpreetsinghsandhu021/tide-version-control/pkg/index"
	"github.com/harpreetsinghsandhu021/tide-version-control/pkg/object"
)

// ErrWorkingTreeConflict is returned when a delete or update would discard
// modifications the working copy has relative to the old entry's OID.
var ErrWorkingTreeConflict = errors.New("workspace: working tree conflict")

// ErrPathCollision is returned when a create's ancestor directory is
// already a tracked non-directory file, or vice versa.
var ErrPathCollision = errors.New("workspace: file/directory collision")

// Migration applies a clean diff to a working tree rooted at Root, staging
// the index identically so the two never diverge mid-operation.
type Migration struct {
	Root  string
	Store *object.Store
	Index *index.Index

	// Force skips the WorkingTreeConflict pre-flight check for deletes and
	// updates (checkout --force semantics); merge callers leave it false.
	Force bool
}

// New returns a Migration rooted at root, applying trees via store and
// staging idx.
func New(root string, store *object.Store, idx *index.Index) *Migration {
	return &Migration{Root: root, Store: store, Index: idx}
}

// Apply executes diff (as produced by object.Store.TreeDiff or
// pkg/merge.ThreeWayMerge's Clean map) against the working tree and index.
// It separates diff into delete/update/create sets, pre-flight-checks each,
// then executes in the spec's mandated order: deletes, directory removals
// (reverse depth), directory creations (forward depth), updates, creates.
func (m *Migration) Apply(diff map[string]object.DiffRecord) error {
	deletes, updates, creates := partition(diff)

	if err := m.preflightDeletes(deletes); err != nil {
		return err
	}
	if err := m.preflightUpdates(updates); err != nil {
		return err
	}
	if err := m.preflightCreates(creates); err != nil {
		return err
	}

	for _, p := range sortedKeys(deletes) {
		if err := m.applyDelete(p); err != nil {
			return err
		}
	}

	m.removeEmptyDirs(deletes)

	m.createParentDirs(updates, creates)

	for _, p := range sortedKeys(updates) {
		if err := m.writeFile(p, diff[p].New); err != nil {
			return err
		}
	}
	for _, p := range sortedKeys(creates) {
		if err := m.writeFile(p, diff[p].New); err != nil {
			return err
		}
	}

	return nil
}

func partition(diff map[string]object.DiffRecord) (deletes, updates, creates map[string]object.DiffRecord) {
	deletes = make(map[string]object.DiffRecord)
	updates = make(map[string]object.DiffRecord)
	creates = make(map[string]object.DiffRecord)
	for p, rec := range diff {
		switch {
		case rec.New == nil:
			deletes[p] = rec
		case rec.Old == nil:
			creates[p] = rec
		default:
			updates[p] = rec
		}
	}
	return deletes, updates, creates
}

func sortedKeys(m map[string]object.DiffRecord) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// preflightDeletes flags WorkingTreeConflict for any delete whose working
// copy no longer matches the old entry's OID, unless Force is set.
func (m *Migration) preflightDeletes(deletes map[string]object.DiffRecord) error {
	if m.Force {
		return nil
	}
	for p, rec := range deletes {
		dirty, err := m.workingCopyDiffers(p, rec.Old)
		if err != nil {
			return err
		}
		if dirty {
			return fmt.Errorf("%w: %s has uncommitted changes", ErrWorkingTreeConflict, p)
		}
	}
	return nil
}

func (m *Migration) preflightUpdates(updates map[string]object.DiffRecord) error {
	if m.Force {
		return nil
	}
	for p, rec := range updates {
		dirty, err := m.workingCopyDiffers(p, rec.Old)
		if err != nil {
			return err
		}
		if dirty {
			return fmt.Errorf("%w: %s has uncommitted changes", ErrWorkingTreeConflict, p)
		}
	}
	return nil
}

// workingCopyDiffers reports whether the on-disk file at p no longer
// matches old's recorded OID (absence counts as no conflict — the file was
// already removed by other means).
func (m *Migration) workingCopyDiffers(p string, old *object.DiffEntry) (bool, error) {
	if old == nil {
		return false, nil
	}
	data, err := os.ReadFile(filepath.Join(m.Root, filepath.FromSlash(p)))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("workspace: read %q: %w", p, err)
	}
	return object.HashObject(object.TypeBlob, data) != old.OID, nil
}

// preflightCreates rejects any create whose ancestor directory is a
// tracked non-directory file in the index, or that would itself collide
// with a tracked directory.
func (m *Migration) preflightCreates(creates map[string]object.DiffRecord) error {
	for p := range creates {
		for _, ancestor := range ancestorDirs(p) {
			if m.Index.TrackedFile(ancestor) {
				return fmt.Errorf("%w: %s is a file, cannot create %s beneath it", ErrPathCollision, ancestor, p)
			}
		}
		if m.Index.TrackedDirectory(p) {
			return fmt.Errorf("%w: %s is a tracked directory", ErrPathCollision, p)
		}
	}
	return nil
}

func ancestorDirs(p string) []string {
	var out []string
	dir := filepath.Dir(filepath.ToSlash(p))
	for dir != "." && dir != "/" && dir != "" {
		out = append(out, dir)
		dir = filepath.Dir(dir)
	}
	return out
}

func (m *Migration) applyDelete(p string) error {
	abs := filepath.Join(m.Root, filepath.FromSlash(p))
	if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("workspace: remove %q: %w", p, err)
	}
	m.Index.Remove(p)
	return nil
}

// removeEmptyDirs walks every deleted path's parent chain, deepest first,
// removing directories left empty by the deletes. Best-effort: a non-empty
// directory (ENOTEMPTY) is left alone, matching spec's "ignore NotEmpty".
func (m *Migration) removeEmptyDirs(deletes map[string]object.DiffRecord) {
	seen := make(map[string]bool)
	var dirs []string
	for p := range deletes {
		dir := filepath.Dir(p)
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	sort.Slice(dirs, func(i, j int) bool { return strings.Count(dirs[i], "/") > strings.Count(dirs[j], "/") })

	for _, dir := range dirs {
		m.removeEmptyParents(filepath.Join(m.Root, filepath.FromSlash(dir)))
	}
}

func (m *Migration) removeEmptyParents(dir string) {
	for {
		if dir == m.Root || !strings.HasPrefix(dir, m.Root) {
			return
		}
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// createParentDirs mkdir -p's every directory ancestor needed by updates
// and creates, shallowest first, before any file write happens.
func (m *Migration) createParentDirs(sets ...map[string]object.DiffRecord) {
	seen := make(map[string]bool)
	var dirs []string
	for _, set := range sets {
		for p := range set {
			dir := filepath.Dir(p)
			if dir != "." && !seen[dir] {
				seen[dir] = true
				dirs = append(dirs, dir)
			}
		}
	}
	sort.Slice(dirs, func(i, j int) bool { return strings.Count(dirs[i], "/") < strings.Count(dirs[j], "/") })
	for _, dir := range dirs {
		os.MkdirAll(filepath.Join(m.Root, filepath.FromSlash(dir)), 0o755)
	}
}

// writeFile removes any existing path, opens with create+exclusive, writes
// the blob's bytes, and sets the mode, then stages the result at index
// stage 0 (spec §4.7's per-file write contract).
func (m *Migration) writeFile(p string, entry *object.DiffEntry) error {
	abs := filepath.Join(m.Root, filepath.FromSlash(p))

	if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("workspace: remove existing %q: %w", p, err)
	}

	blob, err := m.Store.ReadBlob(entry.OID)
	if err != nil {
		return fmt.Errorf("workspace: read blob for %q: %w", p, err)
	}

	f, err := os.OpenFile(abs, os.O_CREATE|os.O_EXCL|os.O_WRONLY, filePermFromMode(entry.Mode))
	if err != nil {
		return fmt.Errorf("workspace: create %q: %w", p, err)
	}
	if _, err := f.Write(blob.Data); err != nil {
		f.Close()
		return fmt.Errorf("workspace: write %q: %w", p, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("workspace: close %q: %w", p, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("workspace: stat %q: %w", p, err)
	}
	st := index.StatFromFileInfo(info, modeToUint32(entry.Mode))
	m.Index.Add(p, entry.OID, st)
	return nil
}

func filePermFromMode(mode string) os.FileMode {
	if mode == object.TreeModeExecutable {
		return 0o755
	}
	return 0o644
}

func modeToUint32(mode string) uint32 {
	var n uint32
	for _, c := range mode {
		n = n*8 + uint32(c-'0')
	}
	return n
}
