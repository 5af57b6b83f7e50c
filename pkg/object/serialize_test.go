package object

import (
	"bytes"
	"testing"
)

func TestMarshalUnmarshalBlob(t *testing.T) {
	orig := &Blob{Data: []byte("hello world\nline two")}
	data := MarshalBlob(orig)
	got, err := UnmarshalBlob(data)
	if err != nil {
		t.Fatalf("UnmarshalBlob: %v", err)
	}
	if !bytes.Equal(got.Data, orig.Data) {
		t.Errorf("Blob round-trip mismatch: got %q, want %q", got.Data, orig.Data)
	}
}

func TestMarshalBlobDeterminism(t *testing.T) {
	b := &Blob{Data: []byte("deterministic")}
	d1 := MarshalBlob(b)
	d2 := MarshalBlob(b)
	if !bytes.Equal(d1, d2) {
		t.Error("Blob marshal not deterministic")
	}
}

func TestMarshalUnmarshalTree(t *testing.T) {
	orig := &TreeObj{
		Entries: []TreeEntry{
			{Name: "README.md", Mode: TreeModeExecutable, OID: Hash("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")},
			{Name: "src", Mode: TreeModeDir, OID: Hash("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")},
		},
	}
	data := MarshalTree(orig)
	got, err := UnmarshalTree(data)
	if err != nil {
		t.Fatalf("UnmarshalTree: %v", err)
	}
	if len(got.Entries) != len(orig.Entries) {
		t.Fatalf("Entries length: got %d, want %d", len(got.Entries), len(orig.Entries))
	}
	byName := make(map[string]TreeEntry)
	for _, e := range got.Entries {
		byName[e.Name] = e
	}
	for _, o := range orig.Entries {
		e, ok := byName[o.Name]
		if !ok {
			t.Fatalf("missing entry %q", o.Name)
		}
		if e.Mode != o.Mode {
			t.Errorf("%s.Mode: got %q, want %q", o.Name, e.Mode, o.Mode)
		}
		if e.OID != o.OID {
			t.Errorf("%s.OID: got %q, want %q", o.Name, e.OID, o.OID)
		}
	}
}

func TestMarshalTreeSortsDirectoriesAfterDottedNames(t *testing.T) {
	orig := &TreeObj{
		Entries: []TreeEntry{
			{Name: "foo.c", Mode: TreeModeFile, OID: Hash("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")},
			{Name: "foo", Mode: TreeModeDir, OID: Hash("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")},
		},
	}
	data := MarshalTree(orig)
	got, err := UnmarshalTree(data)
	if err != nil {
		t.Fatalf("UnmarshalTree: %v", err)
	}
	if got.Entries[0].Name != "foo.c" || got.Entries[1].Name != "foo" {
		t.Fatalf("expected foo.c before foo (directory-trailing-slash rule), got %v", got.Entries)
	}
}

func TestMarshalTreeDeterminism(t *testing.T) {
	tr := &TreeObj{
		Entries: []TreeEntry{
			{Name: "b", Mode: TreeModeFile, OID: Hash("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")},
			{Name: "a", Mode: TreeModeDir, OID: Hash("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")},
		},
	}
	d1 := MarshalTree(tr)
	d2 := MarshalTree(tr)
	if !bytes.Equal(d1, d2) {
		t.Error("Tree marshal not deterministic")
	}
}

func TestUnmarshalTreeLegacyModeTokens(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("0100644 README.md\x00")
	raw, _ := RawBytes(Hash("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"))
	buf.Write(raw)
	buf.WriteString("040000 src\x00")
	raw2, _ := RawBytes(Hash("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"))
	buf.Write(raw2)

	got, err := UnmarshalTree(buf.Bytes())
	if err != nil {
		t.Fatalf("UnmarshalTree: %v", err)
	}
	if len(got.Entries) != 2 {
		t.Fatalf("entries length = %d, want 2", len(got.Entries))
	}
	if got.Entries[0].Mode != TreeModeFile || got.Entries[0].IsDir() {
		t.Fatalf("first entry mode/isDir mismatch: %+v", got.Entries[0])
	}
	if got.Entries[1].Mode != TreeModeDir || !got.Entries[1].IsDir() {
		t.Fatalf("second entry mode/isDir mismatch: %+v", got.Entries[1])
	}
}

func TestMarshalUnmarshalCommit(t *testing.T) {
	orig := &CommitObj{
		TreeHash: Hash("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		Parents:  []Hash{Hash("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")},
		Author:   "Alice", AuthorEmail: "alice@example.com",
		Timestamp: 1700000000, AuthorTimezone: "+0000",
		Message: "initial commit\n\nWith a multi-line body.",
	}
	data := MarshalCommit(orig)
	got, err := UnmarshalCommit(data)
	if err != nil {
		t.Fatalf("UnmarshalCommit: %v", err)
	}
	if got.TreeHash != orig.TreeHash {
		t.Errorf("TreeHash: got %q, want %q", got.TreeHash, orig.TreeHash)
	}
	if len(got.Parents) != len(orig.Parents) || got.Parents[0] != orig.Parents[0] {
		t.Fatalf("Parents mismatch: got %v, want %v", got.Parents, orig.Parents)
	}
	if got.Author != orig.Author || got.AuthorEmail != orig.AuthorEmail {
		t.Errorf("Author: got %q <%q>, want %q <%q>", got.Author, got.AuthorEmail, orig.Author, orig.AuthorEmail)
	}
	if got.Timestamp != orig.Timestamp {
		t.Errorf("Timestamp: got %d, want %d", got.Timestamp, orig.Timestamp)
	}
	if got.Message != orig.Message {
		t.Errorf("Message: got %q, want %q", got.Message, orig.Message)
	}
}

func TestMarshalCommitNoParents(t *testing.T) {
	orig := &CommitObj{
		TreeHash: Hash("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		Author:   "Bob", AuthorEmail: "bob@example.com",
		Timestamp: 1700000001,
		Message:   "root commit",
	}
	data := MarshalCommit(orig)
	got, err := UnmarshalCommit(data)
	if err != nil {
		t.Fatalf("UnmarshalCommit: %v", err)
	}
	if len(got.Parents) != 0 {
		t.Errorf("Parents should be empty, got %d", len(got.Parents))
	}
}

func TestMarshalCommitMultipleParents(t *testing.T) {
	orig := &CommitObj{
		TreeHash: Hash("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		Parents: []Hash{
			Hash("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"),
			Hash("cccccccccccccccccccccccccccccccccccccccc"),
		},
		Author: "Carol", AuthorEmail: "carol@example.com",
		Timestamp: 1700000002,
		Message:   "merge commit",
	}
	data := MarshalCommit(orig)
	got, err := UnmarshalCommit(data)
	if err != nil {
		t.Fatalf("UnmarshalCommit: %v", err)
	}
	if len(got.Parents) != 2 {
		t.Fatalf("Parents length: got %d, want 2", len(got.Parents))
	}
}

func TestMarshalCommitDeterminism(t *testing.T) {
	c := &CommitObj{
		TreeHash: Hash("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		Parents:  []Hash{Hash("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")},
		Author:   "Test", AuthorEmail: "t@t.com",
		Timestamp: 100,
		Message:   "msg",
	}
	d1 := MarshalCommit(c)
	d2 := MarshalCommit(c)
	if !bytes.Equal(d1, d2) {
		t.Error("Commit marshal not deterministic")
	}
}

func TestMarshalUnmarshalCommitWithSignature(t *testing.T) {
	orig := &CommitObj{
		TreeHash: Hash("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		Parents:  []Hash{Hash("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")},
		Author:   "Signed", AuthorEmail: "signed@example.com",
		Timestamp: 1700000003,
		Signature: "-----BEGIN SSH SIGNATURE-----\nexamplebase64\n-----END SSH SIGNATURE-----",
		Message:   "signed commit",
	}
	data := MarshalCommit(orig)
	got, err := UnmarshalCommit(data)
	if err != nil {
		t.Fatalf("UnmarshalCommit: %v", err)
	}
	if got.Signature != orig.Signature {
		t.Fatalf("Signature: got %q, want %q", got.Signature, orig.Signature)
	}
}

func TestMarshalCommitOmitsEmptySignatureHeader(t *testing.T) {
	c := &CommitObj{
		TreeHash: Hash("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		Author:   "Unsigned", AuthorEmail: "u@example.com",
		Timestamp: 1700000004,
		Message:   "unsigned commit",
	}
	data := MarshalCommit(c)
	if bytes.Contains(data, []byte("\ngpgsig ")) {
		t.Fatalf("did not expect gpgsig header in unsigned commit: %q", string(data))
	}
}

func TestMarshalUnmarshalCommitWithCommitterMetadata(t *testing.T) {
	orig := &CommitObj{
		TreeHash: Hash("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		Author:   "Alice", AuthorEmail: "alice@example.com",
		Timestamp: 1700001234, AuthorTimezone: "+0200",
		Committer: "Bob", CommitterEmail: "bob@example.com",
		CommitterTimestamp: 1700005678, CommitterTimezone: "-0700",
		Message: "preserve committer metadata",
	}
	data := MarshalCommit(orig)
	got, err := UnmarshalCommit(data)
	if err != nil {
		t.Fatalf("UnmarshalCommit: %v", err)
	}
	if got.AuthorTimezone != orig.AuthorTimezone {
		t.Fatalf("AuthorTimezone: got %q, want %q", got.AuthorTimezone, orig.AuthorTimezone)
	}
	if got.Committer != orig.Committer || got.CommitterEmail != orig.CommitterEmail {
		t.Fatalf("Committer: got %q <%q>, want %q <%q>", got.Committer, got.CommitterEmail, orig.Committer, orig.CommitterEmail)
	}
	if got.CommitterTimestamp != orig.CommitterTimestamp {
		t.Fatalf("CommitterTimestamp: got %d, want %d", got.CommitterTimestamp, orig.CommitterTimestamp)
	}
	if got.CommitterTimezone != orig.CommitterTimezone {
		t.Fatalf("CommitterTimezone: got %q, want %q", got.CommitterTimezone, orig.CommitterTimezone)
	}
}
