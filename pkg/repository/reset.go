package repository

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/harpreetsinghsandhu021/tide-version-control/pkg/index"
	"github.com/harpreetsinghsandhu021/tide-version-control/pkg/object"
)

// Reset unstages paths by restoring index entries to their HEAD versions.
// If a path exists in HEAD, its index entry is reset to HEAD's blob/mode.
// If a path does not exist in HEAD, its index entry is removed. If no
// paths are given, the entire index is reset to HEAD. Reset never touches
// the working tree, same contract as the teacher's Repo.Reset.
func (r *Repo) Reset(paths []string) error {
	idx, err := index.LoadForUpdate(r.indexPath())
	if err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	defer idx.ReleaseLock()

	head, err := r.headFileSet()
	if err != nil {
		return fmt.Errorf("reset: %w", err)
	}

	targets, err := r.resolveResetTargets(paths, idx, head)
	if err != nil {
		return fmt.Errorf("reset: %w", err)
	}

	for _, p := range targets {
		if entry, ok := head[p]; ok {
			idx.Add(p, entry.OID, index.Stat{Mode: modeFromTreeEntry(entry.Mode)})
			continue
		}
		idx.Remove(p)
	}

	if err := idx.WriteUpdates(); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	return nil
}

func modeFromTreeEntry(mode string) uint32 {
	switch mode {
	case object.TreeModeExecutable:
		return 0o100755
	case object.TreeModeSymlink:
		return 0o120000
	default:
		return 0o100644
	}
}

func (r *Repo) resolveResetTargets(paths []string, idx *index.Index, head map[string]object.DiffEntry) ([]string, error) {
	all := make(map[string]struct{})
	_ = idx.EachEntry(func(e *index.Entry) error {
		all[e.Path] = struct{}{}
		return nil
	})
	for p := range head {
		all[p] = struct{}{}
	}

	if len(paths) == 0 {
		return sortedPathSet(all), nil
	}

	targets := make(map[string]struct{})
	for _, raw := range paths {
		rel, err := r.repoRelPath(raw)
		if err != nil {
			return nil, err
		}
		rel = filepath.ToSlash(filepath.Clean(strings.TrimSpace(rel)))
		if rel == "" || rel == "." {
			for p := range all {
				targets[p] = struct{}{}
			}
			continue
		}

		matched := false
		if _, ok := all[rel]; ok {
			targets[rel] = struct{}{}
			matched = true
		}

		prefix := rel + "/"
		for p := range all {
			if strings.HasPrefix(p, prefix) {
				targets[p] = struct{}{}
				matched = true
			}
		}

		if !matched {
			return nil, fmt.Errorf("path %q did not match indexed or HEAD entries", raw)
		}
	}

	return sortedPathSet(targets), nil
}

func sortedPathSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
