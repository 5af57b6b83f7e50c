package repository

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/harpreetsinghsandhu021/tide-version-control/pkg/index"
	"github.com/harpreetsinghsandhu021/tide-version-control/pkg/object"
)

// Add stages the given working-tree paths: each file's content is written
// as a blob, and an index entry is recorded with the blob's OID and the
// file's current stat metadata, matching the teacher's pkg/repo/staging.go
// Add minus entity extraction (spec's object model has no entity layer).
func (r *Repo) Add(paths []string) error {
	idx, err := index.LoadForUpdate(r.indexPath())
	if err != nil {
		return fmt.Errorf("add: %w", err)
	}
	defer idx.ReleaseLock()

	for _, p := range paths {
		relPath, err := r.repoRelPath(p)
		if err != nil {
			return fmt.Errorf("add: resolve path %q: %w", p, err)
		}
		absPath := filepath.Join(r.RootDir, relPath)

		content, err := os.ReadFile(absPath)
		if err != nil {
			return fmt.Errorf("add: read %q: %w", relPath, err)
		}
		info, err := os.Stat(absPath)
		if err != nil {
			return fmt.Errorf("add: stat %q: %w", relPath, err)
		}

		oid, err := r.Store.WriteBlob(&object.Blob{Data: content})
		if err != nil {
			return fmt.Errorf("add: write blob %q: %w", relPath, err)
		}

		mode := index.ModeForFileInfo(info.Mode())
		idx.Add(relPath, oid, index.StatFromFileInfo(info, mode))
	}

	return idx.WriteUpdates()
}

// Remove unstages the given paths and, unless cached is true, deletes
// them from the working tree too. Paths not present in the index are an
// error, matching the teacher's staging.go guard on unknown paths.
func (r *Repo) Remove(paths []string, cached bool) error {
	idx, err := index.LoadForUpdate(r.indexPath())
	if err != nil {
		return fmt.Errorf("rm: %w", err)
	}
	defer idx.ReleaseLock()

	for _, p := range paths {
		relPath, err := r.repoRelPath(p)
		if err != nil {
			return fmt.Errorf("rm: resolve path %q: %w", p, err)
		}
		if !idx.Tracked(relPath) {
			return fmt.Errorf("rm: %q is not tracked", relPath)
		}
		idx.Remove(relPath)

		if !cached {
			absPath := filepath.Join(r.RootDir, relPath)
			if err := os.Remove(absPath); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("rm: remove %q: %w", relPath, err)
			}
		}
	}

	return idx.WriteUpdates()
}

// treeFileEntry is a flat (OID, mode) pair keyed by repo-relative path
// while BuildTree groups the index into a directory hierarchy.
type treeFileEntry struct {
	oid  object.Hash
	mode string
}

// BuildTree converts every stage-0 entry in idx into a hierarchy of
// TreeObj objects, writes them to the store, and returns the root tree
// hash, following the teacher's pkg/repo/tree.go buildTreeDir grouping.
func (r *Repo) BuildTree(idx *index.Index) (object.Hash, error) {
	files := make(map[string]treeFileEntry)
	idx.EachEntry(func(e *index.Entry) error {
		if e.Stage != 0 {
			return nil
		}
		files[e.Path] = treeFileEntry{oid: e.OID, mode: treeModeFor(e.Mode)}
		return nil
	})
	return r.buildTreeDir(files, "")
}

func treeModeFor(mode uint32) string {
	switch mode & 0o170000 {
	case 0o120000:
		return object.TreeModeSymlink
	}
	if mode&0o100 != 0 {
		return object.TreeModeExecutable
	}
	return object.TreeModeFile
}

func (r *Repo) buildTreeDir(files map[string]treeFileEntry, prefix string) (object.Hash, error) {
	direct := make(map[string]treeFileEntry)
	subdirs := make(map[string]struct{})

	for p, e := range files {
		var rel string
		if prefix == "" {
			rel = p
		} else {
			if !strings.HasPrefix(p, prefix+"/") {
				continue
			}
			rel = p[len(prefix)+1:]
		}
		if slash := strings.IndexByte(rel, '/'); slash < 0 {
			direct[rel] = e
		} else {
			subdirs[rel[:slash]] = struct{}{}
		}
	}

	names := make([]string, 0, len(direct)+len(subdirs))
	for name := range direct {
		names = append(names, name)
	}
	for name := range subdirs {
		if _, isFile := direct[name]; !isFile {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var entries []object.TreeEntry
	for _, name := range names {
		if e, isFile := direct[name]; isFile {
			entries = append(entries, object.TreeEntry{Name: name, Mode: e.mode, OID: e.oid})
			continue
		}
		childPrefix := name
		if prefix != "" {
			childPrefix = prefix + "/" + name
		}
		subHash, err := r.buildTreeDir(files, childPrefix)
		if err != nil {
			return "", fmt.Errorf("build tree %q: %w", childPrefix, err)
		}
		entries = append(entries, object.TreeEntry{Name: name, Mode: object.TreeModeDir, OID: subHash})
	}

	return r.Store.WriteTree(&object.TreeObj{Entries: entries})
}
