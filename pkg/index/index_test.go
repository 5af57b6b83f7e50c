package index

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/harpreetsinghsandhu021/tide-version-control/pkg/object"
)

const hashA = object.Hash("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
const hashB = object.Hash("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
const hashC = object.Hash("cccccccccccccccccccccccccccccccccccccccc")

func tempIndexPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "index")
}

func TestAddAndSaveRoundTrip(t *testing.T) {
	path := tempIndexPath(t)
	idx := New(path)
	idx.Add("main.go", hashA, Stat{Mode: 0o100644, Size: 10})
	idx.Add("pkg/foo.go", hashB, Stat{Mode: 0o100644, Size: 20})

	if err := idx.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	e, ok := loaded.EntryFor("main.go", 0)
	if !ok || e.OID != hashA {
		t.Fatalf("EntryFor(main.go) = %+v, %v", e, ok)
	}
	e2, ok := loaded.EntryFor("pkg/foo.go", 0)
	if !ok || e2.OID != hashB {
		t.Fatalf("EntryFor(pkg/foo.go) = %+v, %v", e2, ok)
	}
}

func TestLoadMissingFileReturnsEmptyIndex(t *testing.T) {
	idx, err := Load(filepath.Join(t.TempDir(), "index"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if idx.Tracked("anything") {
		t.Error("empty index should track nothing")
	}
}

func TestSaveRejectsCorruptTrailerOnLoad(t *testing.T) {
	path := tempIndexPath(t)
	idx := New(path)
	idx.Add("a.txt", hashA, Stat{Mode: 0o100644})
	if err := idx.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	data[len(data)-1] ^= 0xff
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected checksum mismatch error")
	}
}

func TestAddEvictsAncestorDirectoryEntry(t *testing.T) {
	idx := New(tempIndexPath(t))
	idx.Add("foo", hashA, Stat{}) // "foo" is first a file
	idx.Add("foo/bar", hashB, Stat{})
	if idx.TrackedFile("foo") {
		t.Error("file entry 'foo' should have been evicted when 'foo/bar' was added")
	}
	if !idx.TrackedFile("foo/bar") {
		t.Error("'foo/bar' should be tracked")
	}
}

func TestAddEvictsChildEntriesWhenFileReplacesDirectory(t *testing.T) {
	idx := New(tempIndexPath(t))
	idx.Add("foo/bar", hashA, Stat{})
	idx.Add("foo/baz", hashB, Stat{})
	idx.Add("foo", hashC, Stat{})

	if idx.TrackedFile("foo/bar") || idx.TrackedFile("foo/baz") {
		t.Error("children of 'foo' should be evicted when 'foo' becomes a file")
	}
	if !idx.TrackedFile("foo") {
		t.Error("'foo' should now be tracked as a file")
	}
}

func TestAddClearsConflictStages(t *testing.T) {
	idx := New(tempIndexPath(t))
	idx.AddConflictSet("c.txt", ConflictEntries{
		Base:   &ConflictSide{OID: hashA, Mode: 0o100644},
		Ours:   &ConflictSide{OID: hashB, Mode: 0o100644},
		Theirs: &ConflictSide{OID: hashC, Mode: 0o100644},
	})
	if !idx.Conflict() {
		t.Fatal("expected conflict after AddConflictSet")
	}
	idx.Add("c.txt", hashA, Stat{Mode: 0o100644})
	if idx.Conflict() {
		t.Error("Add should clear conflict stages 1-3")
	}
	if _, ok := idx.EntryFor("c.txt", 0); !ok {
		t.Error("expected stage-0 entry after resolving conflict")
	}
}

func TestRemoveDeletesAllStages(t *testing.T) {
	idx := New(tempIndexPath(t))
	idx.AddConflictSet("c.txt", ConflictEntries{
		Ours:   &ConflictSide{OID: hashA, Mode: 0o100644},
		Theirs: &ConflictSide{OID: hashB, Mode: 0o100644},
	})
	idx.Remove("c.txt")
	if idx.Tracked("c.txt") {
		t.Error("Remove should delete all stages")
	}
}

func TestTrackedDirectory(t *testing.T) {
	idx := New(tempIndexPath(t))
	idx.Add("pkg/object/store.go", hashA, Stat{})
	if !idx.TrackedDirectory("pkg/object") {
		t.Error("expected pkg/object to be a tracked directory")
	}
	if idx.TrackedFile("pkg/object") {
		t.Error("pkg/object should not be tracked as a file")
	}
	if !idx.Tracked("pkg/object") {
		t.Error("Tracked should be true via TrackedDirectory")
	}
}

func TestEachEntryOrdersByPathThenStage(t *testing.T) {
	idx := New(tempIndexPath(t))
	idx.Add("b.txt", hashA, Stat{})
	idx.Add("a.txt", hashB, Stat{})
	idx.AddConflictSet("a.txt", ConflictEntries{
		Ours:   &ConflictSide{OID: hashA, Mode: 0o100644},
		Theirs: &ConflictSide{OID: hashC, Mode: 0o100644},
	})

	var order []string
	_ = idx.EachEntry(func(e *Entry) error {
		order = append(order, e.Path)
		return nil
	})
	want := []string{"a.txt", "a.txt", "b.txt"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestTimesMatchAndStatMatch(t *testing.T) {
	e := &Entry{Stat: Stat{
		CtimeSec: 100, CtimeNano: 5, MtimeSec: 200, MtimeNano: 6,
		Mode: 0o100644, Size: 42,
	}}

	same := Stat{CtimeSec: 100, CtimeNano: 5, MtimeSec: 200, MtimeNano: 6, Mode: 0o100644, Size: 42}
	if !e.TimesMatch(same) {
		t.Error("expected TimesMatch true for identical stat")
	}
	if !e.StatMatch(same) {
		t.Error("expected StatMatch true for identical stat")
	}

	changedTime := same
	changedTime.MtimeNano = 7
	if e.TimesMatch(changedTime) {
		t.Error("expected TimesMatch false when mtime nanos differ")
	}
	if !e.StatMatch(changedTime) {
		t.Error("StatMatch should still hold when only timestamps differ")
	}

	changedSize := same
	changedSize.Size = 99
	if e.StatMatch(changedSize) {
		t.Error("expected StatMatch false when size differs")
	}

	zeroSize := &Entry{Stat: Stat{Mode: 0o100644, Size: 0}}
	if !zeroSize.StatMatch(Stat{Mode: 0o100644, Size: 999}) {
		t.Error("size==0 placeholder should match any worktree size")
	}
}

func TestLoadForUpdateWriteUpdatesRoundTrip(t *testing.T) {
	path := tempIndexPath(t)
	idx, err := LoadForUpdate(path)
	if err != nil {
		t.Fatalf("LoadForUpdate: %v", err)
	}
	idx.Add("new.txt", hashA, Stat{Mode: 0o100644})
	if err := idx.WriteUpdates(); err != nil {
		t.Fatalf("WriteUpdates: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reloaded.TrackedFile("new.txt") {
		t.Error("expected new.txt tracked after WriteUpdates")
	}
}

func TestLoadForUpdateReleaseLockDiscardsChanges(t *testing.T) {
	path := tempIndexPath(t)
	idx := New(path)
	idx.Add("existing.txt", hashA, Stat{Mode: 0o100644})
	if err := idx.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	update, err := LoadForUpdate(path)
	if err != nil {
		t.Fatalf("LoadForUpdate: %v", err)
	}
	update.Add("scratch.txt", hashB, Stat{Mode: 0o100644})
	if err := update.ReleaseLock(); err != nil {
		t.Fatalf("ReleaseLock: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if reloaded.TrackedFile("scratch.txt") {
		t.Error("abandoned update should not persist")
	}
	if !reloaded.TrackedFile("existing.txt") {
		t.Error("existing entry should be unaffected")
	}
}
