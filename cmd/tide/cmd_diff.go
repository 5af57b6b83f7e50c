package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/harpreetsinghsandhu021/tide-version-control/pkg/diff3"
	"github.com/harpreetsinghsandhu021/tide-version-control/pkg/index"
	"github.com/harpreetsinghsandhu021/tide-version-control/pkg/object"
	"github.com/harpreetsinghsandhu021/tide-version-control/pkg/repository"
	"github.com/spf13/cobra"
)

const lineDiffContextLines = 3

func newDiffCmd() *cobra.Command {
	var staged bool

	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Show changes between working tree, staging, and HEAD",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repository.Open(".")
			if err != nil {
				return err
			}
			if staged {
				return diffStaged(cmd, r)
			}
			return diffUnstaged(cmd, r)
		},
	}

	cmd.Flags().BoolVar(&staged, "staged", false, "show staged changes (staging vs HEAD)")

	return cmd
}

// diffUnstaged compares the working tree against the index.
func diffUnstaged(cmd *cobra.Command, r *repository.Repo) error {
	idx, err := r.ReadIndex()
	if err != nil {
		return err
	}

	type indexed struct {
		oid object.Hash
	}
	entries := make(map[string]indexed)
	if err := idx.EachEntry(func(e *index.Entry) error {
		if e.Stage == 0 {
			entries[e.Path] = indexed{oid: e.OID}
		}
		return nil
	}); err != nil {
		return err
	}

	paths := make([]string, 0, len(entries))
	for p := range entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	out := cmd.OutOrStdout()

	for _, p := range paths {
		se := entries[p]

		absPath := filepath.Join(r.RootDir, filepath.FromSlash(p))
		workData, err := os.ReadFile(absPath)
		if err != nil {
			if os.IsNotExist(err) {
				stagedBlob, blobErr := r.Store.ReadBlob(se.oid)
				if blobErr != nil {
					return fmt.Errorf("diff: read staged blob %s: %w", p, blobErr)
				}
				if err := printLineDiff(out, p, stagedBlob.Data, nil); err != nil {
					return err
				}
				continue
			}
			return fmt.Errorf("diff: read %s: %w", p, err)
		}

		workHash := object.HashObject(object.TypeBlob, workData)
		if workHash == se.oid {
			continue // unchanged
		}

		stagedBlob, err := r.Store.ReadBlob(se.oid)
		if err != nil {
			return fmt.Errorf("diff: read staged blob %s: %w", p, err)
		}

		if err := printLineDiff(out, p, stagedBlob.Data, workData); err != nil {
			return err
		}
	}

	return nil
}

// diffStaged compares the index against the HEAD commit tree.
func diffStaged(cmd *cobra.Command, r *repository.Repo) error {
	idx, err := r.ReadIndex()
	if err != nil {
		return err
	}

	entries := make(map[string]object.Hash)
	if err := idx.EachEntry(func(e *index.Entry) error {
		if e.Stage == 0 {
			entries[e.Path] = e.OID
		}
		return nil
	}); err != nil {
		return err
	}

	headMap := make(map[string]object.DiffEntry)
	headHash, err := r.ResolveRef("HEAD")
	if err == nil {
		commit, err := r.Store.ReadCommit(headHash)
		if err == nil {
			flat, err := r.Store.FlattenTree(commit.TreeHash)
			if err == nil {
				headMap = flat
			}
		}
	}

	paths := make([]string, 0, len(entries))
	for p := range entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	out := cmd.OutOrStdout()

	for _, p := range paths {
		oid := entries[p]

		headEntry, inHead := headMap[p]
		if inHead && headEntry.OID == oid {
			continue // unchanged
		}

		var before []byte
		if inHead {
			blob, err := r.Store.ReadBlob(headEntry.OID)
			if err != nil {
				return fmt.Errorf("diff: read HEAD blob %s: %w", p, err)
			}
			before = blob.Data
		}

		stagedBlob, err := r.Store.ReadBlob(oid)
		if err != nil {
			return fmt.Errorf("diff: read staged blob %s: %w", p, err)
		}

		if err := printLineDiff(out, p, before, stagedBlob.Data); err != nil {
			return err
		}
	}

	// Files deleted from the index that exist in HEAD.
	deletedPaths := make([]string, 0)
	for p := range headMap {
		if _, inIndex := entries[p]; !inIndex {
			deletedPaths = append(deletedPaths, p)
		}
	}
	sort.Strings(deletedPaths)

	for _, p := range deletedPaths {
		headEntry := headMap[p]
		blob, err := r.Store.ReadBlob(headEntry.OID)
		if err != nil {
			return fmt.Errorf("diff: read HEAD blob %s: %w", p, err)
		}
		if err := printLineDiff(out, p, blob.Data, nil); err != nil {
			return err
		}
	}

	return nil
}

// printLineDiff prints a unified-style line diff for a single file. before
// or after may be nil for additions and deletions respectively.
func printLineDiff(out io.Writer, path string, before, after []byte) error {
	if before == nil {
		before = []byte{}
	}
	if after == nil {
		after = []byte{}
	}

	if bytes.Equal(before, after) {
		return nil
	}

	fmt.Fprintf(out, "diff --tide a/%s b/%s\n", path, path)
	fmt.Fprintf(out, "--- a/%s\n", path)
	fmt.Fprintf(out, "+++ b/%s\n", path)

	lines := diff3.LineDiff(before, after)
	for _, h := range buildLineDiffHunks(lines, lineDiffContextLines) {
		oldStart, oldCount, newStart, newCount := h.lineRange(lines)
		fmt.Fprintf(out, "@@ -%d,%d +%d,%d @@\n", oldStart, oldCount, newStart, newCount)

		for _, dl := range lines[h.start:h.end] {
			switch dl.Type {
			case diff3.Equal:
				fmt.Fprintf(out, " %s\n", dl.Content)
			case diff3.Insert:
				fmt.Fprintf(out, "+%s\n", dl.Content)
			case diff3.Delete:
				fmt.Fprintf(out, "-%s\n", dl.Content)
			}
		}
	}

	return nil
}

type lineDiffHunk struct {
	start int
	end   int
}

func buildLineDiffHunks(lines []diff3.DiffLine, contextLines int) []lineDiffHunk {
	if contextLines < 0 {
		contextLines = 0
	}

	var hunks []lineDiffHunk
	for i, dl := range lines {
		if dl.Type == diff3.Equal {
			continue
		}

		start := i - contextLines
		if start < 0 {
			start = 0
		}
		end := i + contextLines + 1
		if end > len(lines) {
			end = len(lines)
		}

		if len(hunks) == 0 || start > hunks[len(hunks)-1].end {
			hunks = append(hunks, lineDiffHunk{start: start, end: end})
			continue
		}
		if end > hunks[len(hunks)-1].end {
			hunks[len(hunks)-1].end = end
		}
	}

	return hunks
}

func (h lineDiffHunk) lineRange(lines []diff3.DiffLine) (oldStart, oldCount, newStart, newCount int) {
	oldLine, newLine := 1, 1
	for i := 0; i < h.start; i++ {
		switch lines[i].Type {
		case diff3.Equal:
			oldLine++
			newLine++
		case diff3.Delete:
			oldLine++
		case diff3.Insert:
			newLine++
		}
	}

	oldStart, newStart = oldLine, newLine

	for i := h.start; i < h.end; i++ {
		switch lines[i].Type {
		case diff3.Equal:
			oldCount++
			newCount++
			oldLine++
			newLine++
		case diff3.Delete:
			oldCount++
			oldLine++
		case diff3.Insert:
			newCount++
			newLine++
		}
	}

	if oldCount == 0 {
		oldStart--
	}
	if newCount == 0 {
		newStart--
	}

	return oldStart, oldCount, newStart, newCount
}
