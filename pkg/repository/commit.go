package repository

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harpreetsinghsandhu021/tide-version-control/pkg/object"
)

// Commit builds a tree from the current index, links it to HEAD's commit
// as a parent (if any), and writes the new commit, advancing the current
// branch (or detached HEAD) to it under CAS. Mirrors the teacher's
// pkg/repo/commit.go Commit/CommitWithSigner, minus signing (no signer
// concept survives in this module's Configuration).
func (r *Repo) Commit(message, author, email string) (object.Hash, error) {
	idx, err := r.ReadIndex()
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	if idx.Conflict() {
		return "", fmt.Errorf("commit: unresolved merge conflicts in index")
	}

	treeHash, err := r.BuildTree(idx)
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	var parents []object.Hash
	parentHash, err := r.ResolveRef("HEAD")
	if err == nil && parentHash != "" {
		parents = append(parents, parentHash)
	}

	now := time.Now()
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
		return "", fmt.Errorf("commit: write commit: %w", err)
	}

	head, err := r.Head()
	if err != nil {
		return "", fmt.Errorf("commit: read HEAD: %w", err)
	}
	if strings.HasPrefix(head, "refs/") {
		if err := r.Refs.CompareAndSwap(head, optionalHash(parentHash), &commitHash); err != nil {
			return "", fmt.Errorf("commit: update ref %q: %w", head, err)
		}
	} else {
		old := object.Hash(head)
		if err := r.Refs.CompareAndSwap("HEAD", &old, &commitHash); err != nil {
			return "", fmt.Errorf("commit: update detached HEAD: %w", err)
		}
	}

	return commitHash, nil
}

func optionalHash(h object.Hash) *object.Hash {
	if h == "" {
		return nil
	}
	return &h
}

// Log walks first-parent history from start, returning up to limit
// commits newest-first.
func (r *Repo) Log(start object.Hash, limit int) ([]*object.CommitObj, error) {
	var commits []*object.CommitObj
	current := start
	for len(commits) < limit && current != "" {
		c, err := r.Store.ReadCommit(current)
		if err != nil {
			if errors.Is(err, object.ErrNotFound) {
				break
			}
			return nil, fmt.Errorf("log: read commit %s: %w", current, err)
		}
		commits = append(commits, c)
		if len(c.Parents) == 0 {
			break
		}
		current = c.Parents[0]
	}
	return commits, nil
}
