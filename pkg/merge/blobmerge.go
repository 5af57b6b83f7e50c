package merge

import (
	"bytes"
	"strings"
)

// Merge3Result is the outcome of a line-level three-way blob merge.
type Merge3Result struct {
	OK            bool
	Merged        []byte
	ConflictCount int
}

// Merge3 performs a line-level three-way merge of a blob's base, left, and
// right revisions (spec §4.6 "Blob merge"). A nil slice denotes the file is
// absent on that side (a modify/delete case relative to base). leftLabel
// and rightLabel name the two sides in conflict markers.
func Merge3(base, left, right []byte, leftLabel, rightLabel string) Merge3Result {
	if left == nil {
		return Merge3Result{OK: false, Merged: right}
	}
	if right == nil {
		return Merge3Result{OK: false, Merged: left}
	}
	if bytes.Equal(left, base) || bytes.Equal(left, right) {
		return Merge3Result{OK: true, Merged: right}
	}
	if bytes.Equal(right, base) {
		return Merge3Result{OK: true, Merged: left}
	}

	baseLines := splitLines(string(base))
	leftLines := splitLines(string(left))
	rightLines := splitLines(string(right))

	leftChunks := buildChunks(baseLines, leftLines)
	rightChunks := buildChunks(baseLines, rightLines)

	return mergeChunks(leftChunks, rightChunks, leftLabel, rightLabel)
}

// MergeMode applies the same three-way contract to a file mode, without
// any textual fallback for the conflicting case: the caller must treat
// ok=false as a recorded conflict, not a usable mode.
func MergeMode(base, left, right string) (mode string, ok bool) {
	if left == "" {
		return right, false
	}
	if right == "" {
		return left, false
	}
	if left == base || left == right {
		return right, true
	}
	if right == base {
		return left, true
	}
	return left, false
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// chunk is a contiguous region relative to the base, produced by diffing
// base against one side.
type chunk struct {
	baseStart, baseEnd int
	lines              []string
	changed            bool
}

// buildChunks converts a two-way diff (base -> side) into chunks, each
// covering a contiguous base-line range with that side's replacement lines.
func buildChunks(base, side []string) []chunk {
	ops := myersDiff(base, side)

	var chunks []chunk
	baseIdx := 0
	i := 0
	for i < len(ops) {
		op := ops[i]
		if op.Type == lineEqual {
			chunks = append(chunks, chunk{baseStart: baseIdx, baseEnd: baseIdx + 1, lines: []string{op.Line}})
			baseIdx++
			i++
			continue
		}

		chunkStart := baseIdx
		var sideLines []string
		for i < len(ops) && ops[i].Type != lineEqual {
			if ops[i].Type == lineDelete {
				baseIdx++
			} else {
				sideLines = append(sideLines, ops[i].Line)
			}
			i++
		}
		chunks = append(chunks, chunk{baseStart: chunkStart, baseEnd: baseIdx, lines: sideLines, changed: true})
	}
	return chunks
}

// mergeChunks walks the left and right chunk sequences in parallel, aligned
// by base-line position, producing the merged content and marking conflicts
// where both sides changed the same region differently.
func mergeChunks(leftChunks, rightChunks []chunk, leftLabel, rightLabel string) Merge3Result {
	var merged bytes.Buffer
	conflicts := 0

	li, ri := 0, 0
	for li < len(leftChunks) || ri < len(rightChunks) {
		var lc, rc *chunk
		if li < len(leftChunks) {
			lc = &leftChunks[li]
		}
		if ri < len(rightChunks) {
			rc = &rightChunks[ri]
		}

		if lc == nil {
			writeChunkLines(&merged, rc.lines)
			ri++
			continue
		}
		if rc == nil {
			writeChunkLines(&merged, lc.lines)
			li++
			continue
		}

		if lc.baseStart == rc.baseStart && lc.baseEnd == rc.baseEnd {
			switch {
			case !lc.changed && !rc.changed:
				writeChunkLines(&merged, lc.lines)
			case lc.changed && !rc.changed:
				writeChunkLines(&merged, lc.lines)
			case !lc.changed && rc.changed:
				writeChunkLines(&merged, rc.lines)
			case linesEqual(lc.lines, rc.lines):
				writeChunkLines(&merged, lc.lines)
			default:
				conflicts++
				writeConflictMarkers(&merged, lc.lines, rc.lines, leftLabel, rightLabel)
			}
			li++
			ri++
			continue
		}

		// Misaligned: one side's change spans a region the other side split
		// differently. Gather every overlapping chunk from both sides and
		// resolve the whole region at once.
		regionEnd := max(lc.baseEnd, rc.baseEnd)

		var leftRegion, rightRegion []chunk
		for li < len(leftChunks) && leftChunks[li].baseStart < regionEnd {
			leftRegion = append(leftRegion, leftChunks[li])
			if leftChunks[li].baseEnd > regionEnd {
				regionEnd = leftChunks[li].baseEnd
			}
			li++
		}
		for ri < len(rightChunks) && rightChunks[ri].baseStart < regionEnd {
			rightRegion = append(rightRegion, rightChunks[ri])
			if rightChunks[ri].baseEnd > regionEnd {
				regionEnd = rightChunks[ri].baseEnd
			}
			ri++
		}

		leftOut := assembleRegion(leftRegion)
		rightOut := assembleRegion(rightRegion)

		if linesEqual(leftOut, rightOut) {
			writeChunkLines(&merged, leftOut)
		} else if !anyChanged(rightRegion) {
			writeChunkLines(&merged, leftOut)
		} else if !anyChanged(leftRegion) {
			writeChunkLines(&merged, rightOut)
		} else {
			conflicts++
			writeConflictMarkers(&merged, leftOut, rightOut, leftLabel, rightLabel)
		}
	}

	return Merge3Result{OK: conflicts == 0, Merged: merged.Bytes(), ConflictCount: conflicts}
}

func writeChunkLines(buf *bytes.Buffer, lines []string) {
	for _, l := range lines {
		buf.WriteString(l)
		buf.WriteByte('\n')
	}
}

func writeConflictMarkers(buf *bytes.Buffer, leftLines, rightLines []string, leftLabel, rightLabel string) {
	buf.WriteString("<<<<<<< ")
	buf.WriteString(leftLabel)
	buf.WriteByte('\n')
	writeChunkLines(buf, leftLines)
	buf.WriteString("=======\n")
	writeChunkLines(buf, rightLines)
	buf.WriteString(">>>>>>> ")
	buf.WriteString(rightLabel)
	buf.WriteByte('\n')
}

func linesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func assembleRegion(chunks []chunk) []string {
	var lines []string
	for _, c := range chunks {
		lines = append(lines, c.lines...)
	}
	return lines
}

func anyChanged(chunks []chunk) bool {
	for _, c := range chunks {
		if c.changed {
			return true
		}
	}
	return false
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
