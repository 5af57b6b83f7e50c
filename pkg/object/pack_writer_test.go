package object

import (
	"bytes"
	"testing"
)

func TestPackWriterSingleBlob(t *testing.T) {
	var buf bytes.Buffer
	pw, err := NewPackWriter(&buf, 1)
	if err != nil {
		t.Fatalf("NewPackWriter: %v", err)
	}

	blobData := []byte("hello world")
	if err := pw.WriteEntry("", PackBlob, blobData); err != nil {
		t.Fatalf("WriteEntry: %v", err)
	}

	checksum, err := pw.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if checksum == "" {
		t.Fatal("expected non-empty checksum")
	}

	data := buf.Bytes()
	if len(data) <= packHeaderSize+HashSize {
		t.Fatalf("pack output too short: %d", len(data))
	}

	header, err := UnmarshalPackHeader(data[:packHeaderSize])
	if err != nil {
		t.Fatalf("UnmarshalPackHeader: %v", err)
	}
	if header.NumObjects != 1 {
		t.Fatalf("NumObjects = %d, want 1", header.NumObjects)
	}
}

func TestPackWriterMultipleObjects(t *testing.T) {
	var buf bytes.Buffer
	pw, err := NewPackWriter(&buf, 3)
	if err != nil {
		t.Fatalf("NewPackWriter: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := pw.WriteEntry("", PackBlob, []byte("data")); err != nil {
			t.Fatalf("WriteEntry[%d]: %v", i, err)
		}
	}

	if _, err := pw.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
}

func TestPackWriterCountMismatch(t *testing.T) {
	var buf bytes.Buffer
	pw, err := NewPackWriter(&buf, 2)
	if err != nil {
		t.Fatalf("NewPackWriter: %v", err)
	}
	if err := pw.WriteEntry("", PackBlob, []byte("one")); err != nil {
		t.Fatalf("WriteEntry: %v", err)
	}

	if _, err := pw.Finish(); err == nil {
		t.Fatal("expected count mismatch error")
	}
}

func TestPackWriterRejectsWriteAfterFinish(t *testing.T) {
	var buf bytes.Buffer
	pw, err := NewPackWriter(&buf, 1)
	if err != nil {
		t.Fatalf("NewPackWriter: %v", err)
	}
	if err := pw.WriteEntry("", PackBlob, []byte("one")); err != nil {
		t.Fatalf("WriteEntry: %v", err)
	}
	if _, err := pw.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	if err := pw.WriteEntry("", PackBlob, []byte("two")); err == nil {
		t.Fatal("expected write-after-finish error")
	}
}

func TestPackWriterRecordsOffsetsForOfsDeltaBases(t *testing.T) {
	var buf bytes.Buffer
	pw, err := NewPackWriter(&buf, 2)
	if err != nil {
		t.Fatalf("NewPackWriter: %v", err)
	}

	blob := []byte("hello world")
	blobHash := HashObject(TypeBlob, blob)
	if err := pw.WriteEntry(blobHash, PackBlob, blob); err != nil {
		t.Fatalf("WriteEntry: %v", err)
	}
	off, ok := pw.OffsetOf(blobHash)
	if !ok || off != packHeaderSize {
		t.Fatalf("OffsetOf = (%d, %v), want (%d, true)", off, ok, packHeaderSize)
	}

	target := []byte("hello world, extended")
	if err := pw.WriteOfsDelta("", off, blob, target); err != nil {
		t.Fatalf("WriteOfsDelta: %v", err)
	}
	if _, err := pw.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
}

func TestPackWriterWriteRefDeltaRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	pw, err := NewPackWriter(&buf, 2)
	if err != nil {
		t.Fatalf("NewPackWriter: %v", err)
	}

	base := []byte("package main\n\nfunc main() {}\n")
	baseHash := HashObject(TypeBlob, base)
	if err := pw.WriteEntry(baseHash, PackBlob, base); err != nil {
		t.Fatalf("WriteEntry base: %v", err)
	}

	target := []byte("package main\n\nfunc main() { println(\"hi\") }\n")
	if err := pw.WriteRefDelta("", baseHash, base, target); err != nil {
		t.Fatalf("WriteRefDelta: %v", err)
	}
	if _, err := pw.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	pf, err := ReadPack(buf.Bytes())
	if err != nil {
		t.Fatalf("ReadPack: %v", err)
	}
	if len(pf.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(pf.Entries))
	}
	if pf.Entries[1].Type != PackRefDelta {
		t.Fatalf("entry[1] type = %d, want %d", pf.Entries[1].Type, PackRefDelta)
	}
	if pf.Entries[1].BaseRef != baseHash {
		t.Fatalf("entry[1] BaseRef = %s, want %s", pf.Entries[1].BaseRef, baseHash)
	}

	got, err := applyDelta(base, pf.Entries[1].Data)
	if err != nil {
		t.Fatalf("applyDelta: %v", err)
	}
	if !bytes.Equal(got, target) {
		t.Fatalf("reconstructed target mismatch: got %q want %q", got, target)
	}
}
