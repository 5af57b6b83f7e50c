package merge

import "testing"

func TestMerge3LeftUnchanged(t *testing.T) {
	r := Merge3([]byte("a\nb\nc\n"), []byte("a\nb\nc\n"), []byte("a\nX\nc\n"), "ours", "theirs")
	if !r.OK {
		t.Fatalf("expected clean merge, got conflicts=%d merged=%q", r.ConflictCount, r.Merged)
	}
	if string(r.Merged) != "a\nX\nc\n" {
		t.Fatalf("Merged = %q, want right's content", r.Merged)
	}
}

func TestMerge3RightUnchanged(t *testing.T) {
	r := Merge3([]byte("a\nb\nc\n"), []byte("a\nX\nc\n"), []byte("a\nb\nc\n"), "ours", "theirs")
	if !r.OK {
		t.Fatalf("expected clean merge, got conflicts=%d", r.ConflictCount)
	}
	if string(r.Merged) != "a\nX\nc\n" {
		t.Fatalf("Merged = %q, want left's content", r.Merged)
	}
}

func TestMerge3IdenticalEdits(t *testing.T) {
	r := Merge3([]byte("a\nb\nc\n"), []byte("a\nX\nc\n"), []byte("a\nX\nc\n"), "ours", "theirs")
	if !r.OK || string(r.Merged) != "a\nX\nc\n" {
		t.Fatalf("identical edits should merge cleanly, got ok=%v merged=%q", r.OK, r.Merged)
	}
}

func TestMerge3NonOverlappingEditsMergeClean(t *testing.T) {
	base := []byte("a\nb\nc\nd\ne\n")
	left := []byte("A\nb\nc\nd\ne\n")
	right := []byte("a\nb\nc\nd\nE\n")
	r := Merge3(base, left, right, "ours", "theirs")
	if !r.OK {
		t.Fatalf("expected clean merge of non-overlapping edits, got conflicts=%d merged=%q", r.ConflictCount, r.Merged)
	}
	want := "A\nb\nc\nd\nE\n"
	if string(r.Merged) != want {
		t.Fatalf("Merged = %q, want %q", r.Merged, want)
	}
}

func TestMerge3OverlappingEditsConflict(t *testing.T) {
	base := []byte("a\nb\nc\n")
	left := []byte("a\nLEFT\nc\n")
	right := []byte("a\nRIGHT\nc\n")
	r := Merge3(base, left, right, "mine", "theirs")
	if r.OK {
		t.Fatalf("expected conflict, got clean merge %q", r.Merged)
	}
	if r.ConflictCount != 1 {
		t.Fatalf("ConflictCount = %d, want 1", r.ConflictCount)
	}
	want := "a\n<<<<<<< mine\nLEFT\n=======\nRIGHT\n>>>>>>> theirs\nc\n"
	if string(r.Merged) != want {
		t.Fatalf("Merged = %q, want %q", r.Merged, want)
	}
}

func TestMerge3LeftAbsentIsModifyDeleteConflict(t *testing.T) {
	r := Merge3([]byte("a\n"), nil, []byte("b\n"), "ours", "theirs")
	if r.OK {
		t.Fatal("modify/delete must never report ok")
	}
	if string(r.Merged) != "b\n" {
		t.Fatalf("Merged = %q, want right's content", r.Merged)
	}
}

func TestMerge3RightAbsentIsModifyDeleteConflict(t *testing.T) {
	r := Merge3([]byte("a\n"), []byte("b\n"), nil, "ours", "theirs")
	if r.OK {
		t.Fatal("modify/delete must never report ok")
	}
	if string(r.Merged) != "b\n" {
		t.Fatalf("Merged = %q, want left's content", r.Merged)
	}
}

func TestMergeModeBothUnchangedOrEqual(t *testing.T) {
	if mode, ok := MergeMode("100644", "100644", "100644"); !ok || mode != "100644" {
		t.Fatalf("MergeMode = (%q, %v), want (100644, true)", mode, ok)
	}
}

func TestMergeModeOneSideChanged(t *testing.T) {
	if mode, ok := MergeMode("100644", "100755", "100644"); !ok || mode != "100755" {
		t.Fatalf("MergeMode = (%q, %v), want (100755, true)", mode, ok)
	}
	if mode, ok := MergeMode("100644", "100644", "100755"); !ok || mode != "100755" {
		t.Fatalf("MergeMode = (%q, %v), want (100755, true)", mode, ok)
	}
}

func TestMergeModeBothChangedDifferentlyConflicts(t *testing.T) {
	mode, ok := MergeMode("100644", "100755", "100750")
	if ok {
		t.Fatalf("expected mode conflict, got ok with mode %q", mode)
	}
}
