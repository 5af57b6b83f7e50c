package repository

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/harpreetsinghsandhu021/tide-version-control/pkg/ignore"
	"github.com/harpreetsinghsandhu021/tide-version-control/pkg/index"
	"github.com/harpreetsinghsandhu021/tide-version-control/pkg/object"
)

// FileStatus is the comparison outcome for one half of a status entry
// (working tree vs index, or index vs HEAD).
type FileStatus int

const (
	StatusClean FileStatus = iota
	StatusNew
	StatusModified
	StatusConflict
	StatusDeleted
	StatusUntracked
)

// StatusEntry records a single path's position relative to the index and
// HEAD, the same two-axis model as the teacher's pkg/repo/status.go
// StatusEntry (IndexStatus/WorkStatus), minus rename detection (spec's
// object model never emits renames; it only ever diffs path sets).
type StatusEntry struct {
	Path        string
	IndexStatus FileStatus
	WorkStatus  FileStatus
}

// Status computes the working tree and index status relative to HEAD,
// matching the shape (not the rename-detection internals) of the
// teacher's pkg/repo/status.go Status.
func (r *Repo) Status() ([]StatusEntry, error) {
	idx, err := r.ReadIndex()
	if err != nil {
		return nil, err
	}

	ic := ignore.New(r.RootDir, MetaDirName)
	workFiles := make(map[string]bool)
	err = filepath.WalkDir(r.RootDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(r.RootDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}
		if ic.IsIgnored(rel) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			workFiles[rel] = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	headFiles, err := r.headFileSet()
	if err != nil {
		return nil, err
	}

	result := make(map[string]*StatusEntry)
	entryFor := func(path string) *StatusEntry {
		se, ok := result[path]
		if !ok {
			se = &StatusEntry{Path: path}
			result[path] = se
		}
		return se
	}

	for path := range workFiles {
		se := entryFor(path)
		ie, tracked := idx.EntryFor(path, 0)
		if !tracked {
			if idx.Conflict() && hasConflictStage(idx, path) {
				se.WorkStatus = StatusConflict
				continue
			}
			se.WorkStatus = StatusUntracked
			continue
		}
		info, err := os.Stat(filepath.Join(r.RootDir, path))
		if err != nil {
			return nil, err
		}
		mode := index.ModeForFileInfo(info.Mode())
		st := index.StatFromFileInfo(info, mode)
		if ie.StatMatch(st) && ie.TimesMatch(st) {
			se.WorkStatus = StatusClean
			continue
		}
		data, err := os.ReadFile(filepath.Join(r.RootDir, path))
		if err != nil {
			return nil, err
		}
		if object.HashObject(object.TypeBlob, data) == ie.OID {
			se.WorkStatus = StatusClean
		} else {
			se.WorkStatus = StatusModified
		}
	}

	idx.EachEntry(func(e *index.Entry) error {
		if e.Stage != 0 {
			entryFor(e.Path).IndexStatus = StatusConflict
			return nil
		}
		se := entryFor(e.Path)
		if !workFiles[e.Path] {
			se.WorkStatus = StatusDeleted
		}
		head, inHead := headFiles[e.Path]
		switch {
		case !inHead:
			se.IndexStatus = StatusNew
		case head.OID != e.OID || head.Mode != treeModeFor(e.Mode):
			se.IndexStatus = StatusModified
		default:
			se.IndexStatus = StatusClean
		}
		return nil
	})

	for path := range headFiles {
		if _, staged := idx.EntryFor(path, 0); !staged {
			entryFor(path).IndexStatus = StatusDeleted
		}
	}

	out := make([]StatusEntry, 0, len(result))
	for _, se := range result {
		out = append(out, *se)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func hasConflictStage(idx *index.Index, path string) bool {
	for _, stage := range []int{1, 2, 3} {
		if _, ok := idx.EntryFor(path, stage); ok {
			return true
		}
	}
	return false
}

func (r *Repo) headFileSet() (map[string]object.DiffEntry, error) {
	headHash, err := r.ResolveRef("HEAD")
	if err != nil || headHash == "" {
		return map[string]object.DiffEntry{}, nil
	}
	commit, err := r.Store.ReadCommit(headHash)
	if err != nil {
		if errors.Is(err, object.ErrNotFound) {
			return map[string]object.DiffEntry{}, nil
		}
		return nil, err
	}
	return r.Store.FlattenTree(commit.TreeHash)
}
