// Package merge implements the Merge Core: common-ancestor discovery,
// tree-level three-way merge, and the line-based blob/mode merge engine.
// Grounded on the teacher's pkg/repo/merge.go (FindMergeBase's BFS-with-
// flags idiom, generalized from its generation-number shortcut to the
// parent1/parent2/stale/result flag vocabulary) and pkg/diff3 (the Myers
// diff and chunk-based three-way text merge, kept algorithmically intact).
package merge

import (
	"errors"
	"fmt"
	"sort"

	"github.com/harpreetsinghsandhu021/tide-version-control/pkg/object"
)

// ErrNoCommonAncestor is returned when two histories share no ancestor.
var ErrNoCommonAncestor = errors.New("merge: no common ancestor")

type ancestorFlag uint8

const (
	flagParent1 ancestorFlag = 1 << iota
	flagParent2
	flagStale
	flagResult
)

// CommonAncestors finds the minimal set of common ancestors of a and every
// commit in bs. It runs a BFS over the commit graph tagging each discovered
// commit with parent1 (reachable from a) and/or parent2 (reachable from any
// b); a commit carrying both becomes a result candidate and has `stale`
// propagated to its parents to stop it being rediscovered. The walk stops
// once every frontier element carries stale. A second pass discards any
// candidate reachable from another candidate, leaving the minimal set.
func CommonAncestors(store *object.Store, a object.Hash, bs []object.Hash) ([]object.Hash, error) {
	if a == "" || len(bs) == 0 {
		return nil, nil
	}

	flags := make(map[object.Hash]ancestorFlag)
	var queue []object.Hash

	enqueue := func(h object.Hash, f ancestorFlag) {
		if h == "" || f == 0 {
			return
		}
		before := flags[h]
		flags[h] = before | f
		if flags[h] != before {
			queue = append(queue, h)
		}
	}

	enqueue(a, flagParent1)
	for _, b := range bs {
		enqueue(b, flagParent2)
	}

	var candidates []object.Hash

	for len(queue) > 0 && !frontierAllStale(queue, flags) {
		h := queue[0]
		queue = queue[1:]
		f := flags[h]

		if f&flagStale != 0 {
			continue
		}

		if f&flagParent1 != 0 && f&flagParent2 != 0 {
			flags[h] = f | flagResult | flagStale
			candidates = append(candidates, h)
			if err := propagateStale(store, h, flags); err != nil {
				return nil, err
			}
			continue
		}

		c, err := store.ReadCommit(h)
		if err != nil {
			return nil, fmt.Errorf("common ancestors: read %s: %w", h, err)
		}
		inherit := f &^ flagResult &^ flagStale
		for _, p := range c.Parents {
			enqueue(p, inherit)
		}
	}

	return minimalAncestors(store, candidates)
}

func frontierAllStale(queue []object.Hash, flags map[object.Hash]ancestorFlag) bool {
	for _, h := range queue {
		if flags[h]&flagStale == 0 {
			return false
		}
	}
	return true
}

// propagateStale marks start and every ancestor of start as stale, so the
// walk's frontier check stops rediscovering them as candidates.
func propagateStale(store *object.Store, start object.Hash, flags map[object.Hash]ancestorFlag) error {
	frontier := []object.Hash{start}
	for len(frontier) > 0 {
		h := frontier[0]
		frontier = frontier[1:]
		c, err := store.ReadCommit(h)
		if err != nil {
			return fmt.Errorf("common ancestors: propagate stale: read %s: %w", h, err)
		}
		for _, p := range c.Parents {
			if p == "" || flags[p]&flagStale != 0 {
				continue
			}
			flags[p] |= flagStale
			frontier = append(frontier, p)
		}
	}
	return nil
}

// minimalAncestors discards any candidate reachable from another candidate,
// leaving only the "tip" common ancestors (spec's minimal-set second pass).
func minimalAncestors(store *object.Store, candidates []object.Hash) ([]object.Hash, error) {
	if len(candidates) <= 1 {
		return candidates, nil
	}
	var minimal []object.Hash
	for i, c := range candidates {
		redundant := false
		for j, d := range candidates {
			if i == j {
				continue
			}
			reachable, err := isAncestor(store, c, d)
			if err != nil {
				return nil, err
			}
			if reachable {
				redundant = true
				break
			}
		}
		if !redundant {
			minimal = append(minimal, c)
		}
	}
	sort.Slice(minimal, func(i, j int) bool { return minimal[i] < minimal[j] })
	return minimal, nil
}

// isAncestor reports whether ancestor is reachable by walking descendant's
// parent chain.
func isAncestor(store *object.Store, ancestor, descendant object.Hash) (bool, error) {
	if ancestor == descendant {
		return true, nil
	}
	visited := map[object.Hash]struct{}{descendant: {}}
	queue := []object.Hash{descendant}
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		c, err := store.ReadCommit(h)
		if err != nil {
			return false, fmt.Errorf("is ancestor: read %s: %w", h, err)
		}
		for _, p := range c.Parents {
			if p == "" {
				continue
			}
			if p == ancestor {
				return true, nil
			}
			if _, seen := visited[p]; seen {
				continue
			}
			visited[p] = struct{}{}
			queue = append(queue, p)
		}
	}
	return false, nil
}

// MergeBase picks a single merge base for a and b per spec's "one candidate
// is the merge base; ≥2 candidates: pick any, record as base" rule (full
// recursive virtual-ancestor merging is left to higher-quality producers).
func MergeBase(store *object.Store, a, b object.Hash) (object.Hash, error) {
	candidates, err := CommonAncestors(store, a, []object.Hash{b})
	if err != nil {
		return "", err
	}
	if len(candidates) == 0 {
		return "", ErrNoCommonAncestor
	}
	return candidates[0], nil
}
