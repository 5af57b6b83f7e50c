package object

import (
	"fmt"
	"path"
	"sort"
	"strings"
)

// DiffEntry is one tree entry as seen in a tree_diff side.
type DiffEntry struct {
	Mode string
	OID  Hash
}

// DiffRecord is one path's old/new entry pair from TreeDiff. Either side
// may be nil (present on only one side).
type DiffRecord struct {
	Old *DiffEntry
	New *DiffEntry
}

// PathFilter is a trie of allowlisted paths. A node is matched=true once a
// full allowlist path has been consumed walking down from the root, at
// which point every deeper name also passes (an allowlisted directory
// admits everything beneath it).
type PathFilter struct {
	matched  bool
	children map[string]*PathFilter
}

// NewPathFilter builds a PathFilter from a set of workspace paths. An
// empty filter passes everything.
func NewPathFilter(paths []string) *PathFilter {
	root := &PathFilter{children: make(map[string]*PathFilter)}
	for _, p := range paths {
		p = path.Clean(strings.TrimPrefix(p, "/"))
		if p == "." || p == "" {
			root.matched = true
			continue
		}
		node := root
		for _, seg := range strings.Split(p, "/") {
			if node.matched {
				break
			}
			next, ok := node.children[seg]
			if !ok {
				next = &PathFilter{children: make(map[string]*PathFilter)}
				node.children[seg] = next
			}
			node = next
		}
		node.matched = true
	}
	return root
}

// Empty reports whether the filter has no constraints (passes everything).
func (f *PathFilter) Empty() bool {
	return f == nil || (!f.matched && len(f.children) == 0)
}

// descend returns the sub-filter for walking into child name, and whether
// that subtree should be visited at all.
func (f *PathFilter) descend(name string) (*PathFilter, bool) {
	if f == nil || f.Empty() {
		return nil, true
	}
	if f.matched {
		return f, true
	}
	child, ok := f.children[name]
	if !ok {
		return nil, false
	}
	return child, true
}

// allows reports whether a leaf name itself passes the filter (used when a
// path ends at this node without a deeper matched ancestor).
func (f *PathFilter) allows(name string) bool {
	if f.Empty() {
		return true
	}
	if f.matched {
		return true
	}
	child, ok := f.children[name]
	return ok && (child.matched || len(child.children) > 0)
}

// TreeDiff recursively compares two tree OIDs (either may be the empty
// Hash, meaning an absent tree), producing a path -> (old, new) map.
// Equal (mode, oid) pairs short-circuit entire matching subtrees. filter
// may be nil for no restriction.
func (s *Store) TreeDiff(aOID, bOID Hash, filter *PathFilter) (map[string]DiffRecord, error) {
	out := make(map[string]DiffRecord)
	if err := s.treeDiffWalk("", aOID, bOID, filter, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) treeDiffWalk(prefix string, aOID, bOID Hash, filter *PathFilter, out map[string]DiffRecord) error {
	if aOID == bOID {
		return nil
	}

	aEntries, err := s.loadTreeEntries(aOID)
	if err != nil {
		return fmt.Errorf("tree_diff: left %s: %w", aOID, err)
	}
	bEntries, err := s.loadTreeEntries(bOID)
	if err != nil {
		return fmt.Errorf("tree_diff: right %s: %w", bOID, err)
	}

	names := make(map[string]struct{})
	for n := range aEntries {
		names[n] = struct{}{}
	}
	for n := range bEntries {
		names[n] = struct{}{}
	}
	sorted := make([]string, 0, len(names))
	for n := range names {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)

	for _, name := range sorted {
		sub, visit := filter.descend(name)
		if !visit {
			continue
		}
		fullPath := name
		if prefix != "" {
			fullPath = prefix + "/" + name
		}

		ae, aok := aEntries[name]
		be, bok := bEntries[name]

		if aok && bok && ae.Mode == be.Mode && ae.OID == be.OID {
			continue
		}

		aIsDir := aok && ae.Mode == TreeModeDir
		bIsDir := bok && be.Mode == TreeModeDir

		if aIsDir && bIsDir {
			if err := s.treeDiffWalk(fullPath, ae.OID, be.OID, sub, out); err != nil {
				return err
			}
			continue
		}

		if aIsDir {
			if err := s.treeDiffWalk(fullPath, ae.OID, "", sub, out); err != nil {
				return err
			}
			if bok {
				out[fullPath] = DiffRecord{New: &DiffEntry{Mode: be.Mode, OID: be.OID}}
			}
			continue
		}
		if bIsDir {
			if err := s.treeDiffWalk(fullPath, "", be.OID, sub, out); err != nil {
				return err
			}
			if aok {
				out[fullPath] = DiffRecord{Old: &DiffEntry{Mode: ae.Mode, OID: ae.OID}}
			}
			continue
		}

		if sub != nil && !sub.allows(name) {
			continue
		}

		rec := DiffRecord{}
		if aok {
			rec.Old = &DiffEntry{Mode: ae.Mode, OID: ae.OID}
		}
		if bok {
			rec.New = &DiffEntry{Mode: be.Mode, OID: be.OID}
		}
		out[fullPath] = rec
	}
	return nil
}

// FlattenTree recursively expands a tree into a path -> (mode, oid) map of
// every file (non-directory) entry reachable from it, keyed by full
// slash-joined path. h may be the empty Hash, meaning an empty tree.
func (s *Store) FlattenTree(h Hash) (map[string]DiffEntry, error) {
	out := make(map[string]DiffEntry)
	if err := s.flattenTreeWalk("", h, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) flattenTreeWalk(prefix string, h Hash, out map[string]DiffEntry) error {
	entries, err := s.loadTreeEntries(h)
	if err != nil {
		return fmt.Errorf("flatten_tree: %s: %w", h, err)
	}
	for name, e := range entries {
		fullPath := name
		if prefix != "" {
			fullPath = prefix + "/" + name
		}
		if e.Mode == TreeModeDir {
			if err := s.flattenTreeWalk(fullPath, e.OID, out); err != nil {
				return err
			}
			continue
		}
		out[fullPath] = DiffEntry{Mode: e.Mode, OID: e.OID}
	}
	return nil
}

func (s *Store) loadTreeEntries(h Hash) (map[string]TreeEntry, error) {
	out := make(map[string]TreeEntry)
	if h == "" {
		return out, nil
	}
	tr, err := s.ReadTree(h)
	if err != nil {
		return nil, err
	}
	for _, e := range tr.Entries {
		out[e.Name] = e
	}
	return out, nil
}
