package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/harpreetsinghsandhu021/tide-version-control/pkg/index"
	"github.com/harpreetsinghsandhu021/tide-version-control/pkg/object"
)

func tempStore(t *testing.T) *object.Store {
	t.Helper()
	return object.NewStore(t.TempDir())
}

func writeBlob(t *testing.T, s *object.Store, content string) object.Hash {
	t.Helper()
	h, err := s.WriteBlob(&object.Blob{Data: []byte(content)})
	if err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}
	return h
}

func newMigration(t *testing.T, s *object.Store) (*Migration, string) {
	t.Helper()
	root := t.TempDir()
	idx := index.New(filepath.Join(root, ".tide-index"))
	return New(root, s, idx), root
}

func TestMigrationApplyCreate(t *testing.T) {
	s := tempStore(t)
	m, root := newMigration(t, s)

	bh := writeBlob(t, s, "hello")
	diff := map[string]object.DiffRecord{
		"a.txt": {New: &object.DiffEntry{Mode: object.TreeModeFile, OID: bh}},
	}
	if err := m.Apply(diff); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(root, "a.txt"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("content = %q, want %q", data, "hello")
	}
	if !m.Index.TrackedFile("a.txt") {
		t.Fatal("expected a.txt to be tracked in the index after create")
	}
}

func TestMigrationApplyCreateNestedDir(t *testing.T) {
	s := tempStore(t)
	m, root := newMigration(t, s)

	bh := writeBlob(t, s, "nested")
	diff := map[string]object.DiffRecord{
		"dir/sub/file.txt": {New: &object.DiffEntry{Mode: object.TreeModeFile, OID: bh}},
	}
	if err := m.Apply(diff); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "dir", "sub", "file.txt")); err != nil {
		t.Fatalf("expected nested file to exist: %v", err)
	}
}

func TestMigrationApplyDeleteRemovesEmptyParents(t *testing.T) {
	s := tempStore(t)
	m, root := newMigration(t, s)

	bh := writeBlob(t, s, "x")
	create := map[string]object.DiffRecord{
		"dir/file.txt": {New: &object.DiffEntry{Mode: object.TreeModeFile, OID: bh}},
	}
	if err := m.Apply(create); err != nil {
		t.Fatalf("Apply create: %v", err)
	}

	del := map[string]object.DiffRecord{
		"dir/file.txt": {Old: &object.DiffEntry{Mode: object.TreeModeFile, OID: bh}},
	}
	if err := m.Apply(del); err != nil {
		t.Fatalf("Apply delete: %v", err)
	}

	if _, err := os.Stat(filepath.Join(root, "dir", "file.txt")); !os.IsNotExist(err) {
		t.Fatalf("expected file.txt to be removed, stat err = %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "dir")); !os.IsNotExist(err) {
		t.Fatalf("expected empty dir to be removed, stat err = %v", err)
	}
	if m.Index.TrackedFile("dir/file.txt") {
		t.Fatal("expected dir/file.txt to be untracked after delete")
	}
}

func TestMigrationApplyDeleteConflictsOnDirtyWorkingCopy(t *testing.T) {
	s := tempStore(t)
	m, root := newMigration(t, s)

	bh := writeBlob(t, s, "original")
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("modified locally"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	del := map[string]object.DiffRecord{
		"a.txt": {Old: &object.DiffEntry{Mode: object.TreeModeFile, OID: bh}},
	}
	if err := m.Apply(del); err == nil {
		t.Fatal("expected WorkingTreeConflict for a dirty delete")
	}
}

func TestMigrationApplyCreateCollidesWithTrackedFile(t *testing.T) {
	s := tempStore(t)
	m, _ := newMigration(t, s)

	bh := writeBlob(t, s, "x")
	st := index.StatFromFileInfo(statOf(t, s, m, bh), uint32(0o100644))
	m.Index.Add("dir", bh, st)

	diff := map[string]object.DiffRecord{
		"dir/nested.txt": {New: &object.DiffEntry{Mode: object.TreeModeFile, OID: bh}},
	}
	if err := m.Apply(diff); err == nil {
		t.Fatal("expected collision error when dir is a tracked file")
	}
}

// statOf writes a one-byte scratch file so os.Stat can produce a real
// os.FileInfo for the Add fixture above; s, m and h are not used.
func statOf(t *testing.T, s *object.Store, m *Migration, h object.Hash) os.FileInfo {
	t.Helper()
	p := filepath.Join(t.TempDir(), "scratch")
	if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	info, err := os.Stat(p)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	return info
}

func TestMigrationForceSkipsConflictCheck(t *testing.T) {
	s := tempStore(t)
	m, root := newMigration(t, s)
	m.Force = true

	bh := writeBlob(t, s, "original")
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("modified locally"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	del := map[string]object.DiffRecord{
		"a.txt": {Old: &object.DiffEntry{Mode: object.TreeModeFile, OID: bh}},
	}
	if err := m.Apply(del); err != nil {
		t.Fatalf("Apply with Force should skip the conflict check: %v", err)
	}
}
