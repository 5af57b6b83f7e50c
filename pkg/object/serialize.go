package object

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Blob
// ---------------------------------------------------------------------------

// MarshalBlob serializes a Blob to raw bytes (identity). The returned
// slice is b.Data itself, not a copy.
func MarshalBlob(b *Blob) []byte {
	return b.Data
}

// UnmarshalBlob deserializes raw bytes into a Blob.
func UnmarshalBlob(data []byte) (*Blob, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return &Blob{Data: out}, nil
}

// ---------------------------------------------------------------------------
// TreeObj
// ---------------------------------------------------------------------------

// treeSortKey returns the byte string used to order tree entries: a
// directory entry sorts as if its name carried a trailing "/", so that
// "foo" < "foo.c" < "foo/bar".
func treeSortKey(e TreeEntry) string {
	if e.IsDir() {
		return e.Name + "/"
	}
	return e.Name
}

// MarshalTree serializes a TreeObj into Git's canonical binary tree
// format: a sequence of "<mode> <name>\0<20-byte raw oid>" records, sorted
// by treeSortKey regardless of insertion order.
func MarshalTree(tr *TreeObj) []byte {
	sorted := make([]TreeEntry, len(tr.Entries))
	copy(sorted, tr.Entries)
	sort.Slice(sorted, func(i, j int) bool {
		return treeSortKey(sorted[i]) < treeSortKey(sorted[j])
	})

	var buf bytes.Buffer
	for _, e := range sorted {
		mode := e.Mode
		if mode == "" {
			mode = TreeModeFile
		}
		fmt.Fprintf(&buf, "%s %s\x00", mode, e.Name)
		raw, err := RawBytes(e.OID)
		if err != nil {
			// Entries are constructed from valid hashes elsewhere; a bad
			// OID here means the caller built a TreeEntry by hand with
			// garbage. Write an all-zero OID rather than panic, so the
			// tree records that entry as pointing at no stored object.
			raw = make([]byte, HashSize)
		}
		buf.Write(raw)
	}
	return buf.Bytes()
}

// UnmarshalTree parses a TreeObj from its canonical binary form.
func UnmarshalTree(data []byte) (*TreeObj, error) {
	tr := &TreeObj{}
	for len(data) > 0 {
		sp := bytes.IndexByte(data, ' ')
		if sp < 0 {
			return nil, fmt.Errorf("unmarshal tree: missing mode separator")
		}
		mode := string(data[:sp])
		rest := data[sp+1:]
		nul := bytes.IndexByte(rest, 0)
		if nul < 0 {
			return nil, fmt.Errorf("unmarshal tree: missing name terminator")
		}
		name := string(rest[:nul])
		rest = rest[nul+1:]
		if len(rest) < HashSize {
			return nil, fmt.Errorf("unmarshal tree: truncated oid for %q", name)
		}
		tr.Entries = append(tr.Entries, TreeEntry{
			Name: name,
			Mode: normalizeTreeMode(mode),
			OID:  HashFromRaw(rest[:HashSize]),
		})
		data = rest[HashSize:]
	}
	return tr, nil
}

func normalizeTreeMode(mode string) string {
	switch mode {
	case "40000", "040000":
		return TreeModeDir
	case "100644", "0100644":
		return TreeModeFile
	case "100755", "0100755":
		return TreeModeExecutable
	case "120000", "0120000":
		return TreeModeSymlink
	default:
		return mode
	}
}

// ---------------------------------------------------------------------------
// CommitObj
// ---------------------------------------------------------------------------

func formatPersonLine(name, email string, ts int64, tz string) string {
	if tz == "" {
		tz = "+0000"
	}
	return fmt.Sprintf("%s <%s> %d %s", name, email, ts, tz)
}

// MarshalCommit serializes a CommitObj into Git's canonical commit text
// format: a sequence of header lines, a blank line, then the message.
func MarshalCommit(c *CommitObj) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "tree %s\n", string(c.TreeHash))
	for _, p := range c.Parents {
		fmt.Fprintf(&buf, "parent %s\n", string(p))
	}
	fmt.Fprintf(&buf, "author %s\n", formatPersonLine(c.Author, c.AuthorEmail, c.Timestamp, c.AuthorTimezone))
	committer, committerEmail, committerTS, committerTZ := c.Committer, c.CommitterEmail, c.CommitterTimestamp, c.CommitterTimezone
	if committer == "" {
		committer, committerEmail, committerTS, committerTZ = c.Author, c.AuthorEmail, c.Timestamp, c.AuthorTimezone
	}
	fmt.Fprintf(&buf, "committer %s\n", formatPersonLine(committer, committerEmail, committerTS, committerTZ))
	if strings.TrimSpace(c.Signature) != "" {
		fmt.Fprintf(&buf, "gpgsig %s\n", strings.ReplaceAll(c.Signature, "\n", "\n "))
	}
	buf.WriteByte('\n')
	buf.WriteString(c.Message)
	return buf.Bytes()
}

// UnmarshalCommit parses a CommitObj from its serialized form.
func UnmarshalCommit(data []byte) (*CommitObj, error) {
	idx := bytes.Index(data, []byte("\n\n"))
	if idx < 0 {
		return nil, fmt.Errorf("unmarshal commit: missing header/message separator")
	}
	header := string(data[:idx])
	message := string(data[idx+2:])

	c := &CommitObj{Message: message}
	for _, line := range strings.Split(header, "\n") {
		if strings.HasPrefix(line, " ") {
			// Continuation of a multi-line gpgsig header.
			c.Signature += "\n" + strings.TrimPrefix(line, " ")
			continue
		}
		key, val, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("unmarshal commit: malformed header line %q", line)
		}
		switch key {
		case "tree":
			c.TreeHash = Hash(val)
		case "parent":
			c.Parents = append(c.Parents, Hash(val))
		case "author":
			name, email, ts, tz, err := parsePersonLine(val)
			if err != nil {
				return nil, fmt.Errorf("unmarshal commit: author: %w", err)
			}
			c.Author, c.AuthorEmail, c.Timestamp, c.AuthorTimezone = name, email, ts, tz
		case "committer":
			name, email, ts, tz, err := parsePersonLine(val)
			if err != nil {
				return nil, fmt.Errorf("unmarshal commit: committer: %w", err)
			}
			c.Committer, c.CommitterEmail, c.CommitterTimestamp, c.CommitterTimezone = name, email, ts, tz
		case "gpgsig":
			c.Signature = val
		default:
			// Unknown header keys (e.g. mergetag) are tolerated, not fatal.
		}
	}
	return c, nil
}

func parsePersonLine(val string) (name, email string, ts int64, tz string, err error) {
	open := strings.LastIndex(val, "<")
	close := strings.LastIndex(val, ">")
	if open < 0 || close < open {
		return "", "", 0, "", fmt.Errorf("malformed person line %q", val)
	}
	name = strings.TrimSpace(val[:open])
	email = val[open+1 : close]
	rest := strings.TrimSpace(val[close+1:])
	fields := strings.Fields(rest)
	if len(fields) < 1 {
		return "", "", 0, "", fmt.Errorf("malformed person line %q: missing timestamp", val)
	}
	ts, err = strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return "", "", 0, "", fmt.Errorf("malformed timestamp %q: %w", fields[0], err)
	}
	if len(fields) >= 2 {
		tz = fields[1]
	}
	return name, email, ts, tz, nil
}
