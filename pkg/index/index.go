// Package index implements the Index: the staging area between the
// Workspace and the Object Store, persisted in Git's binary DIRC format
// (header/entry/trailer, SHA-1 integrity trailer, bit-packed flags).
package index

import (
	"bytes"
	"crypto/sha1"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/harpreetsinghsandhu021/tide-version-control/pkg/lock"
	"github.com/harpreetsinghsandhu021/tide-version-control/pkg/object"
)

var dircMagic = [4]byte{'D', 'I', 'R', 'C'}

const dircVersion = 2

// Stat is the subset of filesystem metadata an Entry tracks, split out so
// callers can build one from os.FileInfo without pulling in the whole
// syscall-specific stat_t.
type Stat struct {
	CtimeSec  uint32
	CtimeNano uint32
	MtimeSec  uint32
	MtimeNano uint32
	Dev       uint32
	Ino       uint32
	Mode      uint32
	UID       uint32
	GID       uint32
	Size      uint32
}

// StatFromFileInfo builds a Stat from an os.FileInfo, filling the
// platform-specific dev/ino/uid/gid fields with zero when unavailable
// (the stat_match heuristic below only actually needs mode and size).
func StatFromFileInfo(info os.FileInfo, mode uint32) Stat {
	mt := info.ModTime()
	return Stat{
		MtimeSec:  uint32(mt.Unix()),
		MtimeNano: uint32(mt.Nanosecond()),
		CtimeSec:  uint32(mt.Unix()),
		CtimeNano: uint32(mt.Nanosecond()),
		Mode:      mode,
		Size:      uint32(info.Size()),
	}
}

// Entry is one row of the index: a path at a given conflict stage, with
// its OID and cached stat metadata.
type Entry struct {
	Stat
	OID   object.Hash
	Stage int // 0 = normal, 1-3 = conflict (base/ours/theirs)
	Path  string
}

func (e *Entry) flags() uint16 {
	pathLen := len(e.Path)
	if pathLen > 0xFFF {
		pathLen = 0xFFF
	}
	return uint16(e.Stage&0x3)<<12 | uint16(pathLen)
}

// TimesMatch reports whether all four timestamps agree with st — the
// fast path that avoids re-hashing file content.
func (e *Entry) TimesMatch(st Stat) bool {
	return e.CtimeSec == st.CtimeSec && e.CtimeNano == st.CtimeNano &&
		e.MtimeSec == st.MtimeSec && e.MtimeNano == st.MtimeNano
}

// StatMatch reports whether mode matches and size agrees (or the entry's
// recorded size is zero, the "size unknown" placeholder).
func (e *Entry) StatMatch(st Stat) bool {
	return e.Mode == st.Mode && (e.Size == 0 || e.Size == st.Size)
}

// Index is the full on-disk staging area for a repository.
type Index struct {
	path    string
	entries map[string]*Entry // key: "<stage>\x00<path>"
	locked  *lock.Lock
}

func entryKey(path string, stage int) string {
	return fmt.Sprintf("%d\x00%s", stage, path)
}

// New returns an empty Index backed by path (typically "<gitdir>/index").
func New(path string) *Index {
	return &Index{path: path, entries: make(map[string]*Entry)}
}

// Load reads the index from disk. A missing file yields an empty Index,
// not an error.
func Load(path string) (*Index, error) {
	idx := New(path)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return idx, nil
		}
		return nil, fmt.Errorf("load index: %w", err)
	}
	if err := idx.unmarshal(data); err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}
	return idx, nil
}

func (idx *Index) unmarshal(data []byte) error {
	if len(data) < 12+object.HashSize {
		return fmt.Errorf("%w: index truncated", object.ErrCorrupt)
	}
	trailerStart := len(data) - object.HashSize
	sum := sha1.Sum(data[:trailerStart])
	if !bytes.Equal(sum[:], data[trailerStart:]) {
		return fmt.Errorf("%w: index checksum mismatch", object.ErrCorrupt)
	}

	if !bytes.Equal(data[:4], dircMagic[:]) {
		return fmt.Errorf("%w: bad index magic", object.ErrCorrupt)
	}
	version := binary.BigEndian.Uint32(data[4:8])
	if version != dircVersion {
		return fmt.Errorf("%w: unsupported index version %d", object.ErrCorrupt, version)
	}
	count := binary.BigEndian.Uint32(data[8:12])

	pos := 12
	for i := uint32(0); i < count; i++ {
		e, next, err := decodeEntry(data, pos, trailerStart)
		if err != nil {
			return err
		}
		idx.entries[entryKey(e.Path, e.Stage)] = e
		pos = next
	}
	return nil
}

func decodeEntry(data []byte, pos, limit int) (*Entry, int, error) {
	const fixedSize = 4*10 + object.HashSize + 2
	if pos+fixedSize > limit {
		return nil, 0, fmt.Errorf("%w: index entry truncated", object.ErrCorrupt)
	}
	u32 := func(off int) uint32 { return binary.BigEndian.Uint32(data[pos+off : pos+off+4]) }

	e := &Entry{}
	e.CtimeSec = u32(0)
	e.CtimeNano = u32(4)
	e.MtimeSec = u32(8)
	e.MtimeNano = u32(12)
	e.Dev = u32(16)
	e.Ino = u32(20)
	e.Mode = u32(24)
	e.UID = u32(28)
	e.GID = u32(32)
	e.Size = u32(36)
	oidStart := pos + 40
	e.OID = object.HashFromRaw(data[oidStart : oidStart+object.HashSize])
	flagsStart := oidStart + object.HashSize
	flags := binary.BigEndian.Uint16(data[flagsStart : flagsStart+2])
	e.Stage = int(flags>>12) & 0x3

	nameStart := flagsStart + 2
	nulIdx := bytes.IndexByte(data[nameStart:limit], 0)
	if nulIdx < 0 {
		return nil, 0, fmt.Errorf("%w: index entry path not NUL-terminated", object.ErrCorrupt)
	}
	e.Path = string(data[nameStart : nameStart+nulIdx])

	entryLen := (nameStart + nulIdx + 1) - pos
	padded := ((entryLen + 7) / 8) * 8
	next := pos + padded
	if next > limit {
		return nil, 0, fmt.Errorf("%w: index entry padding overruns trailer", object.ErrCorrupt)
	}
	return e, next, nil
}

// Save writes the index to disk atomically through the Lock Discipline,
// emitting the SHA-1 trailer last.
func (idx *Index) Save() error {
	data := idx.marshal()
	l := lock.New(idx.path)
	if err := l.Acquire(); err != nil {
		return fmt.Errorf("save index: %w", err)
	}
	if err := l.Write(data); err != nil {
		return fmt.Errorf("save index: %w", err)
	}
	return l.Commit()
}

func (idx *Index) marshal() []byte {
	entries := idx.sortedEntries()

	var buf bytes.Buffer
	buf.Write(dircMagic[:])
	writeU32(&buf, dircVersion)
	writeU32(&buf, uint32(len(entries)))

	for _, e := range entries {
		writeU32(&buf, e.CtimeSec)
		writeU32(&buf, e.CtimeNano)
		writeU32(&buf, e.MtimeSec)
		writeU32(&buf, e.MtimeNano)
		writeU32(&buf, e.Dev)
		writeU32(&buf, e.Ino)
		writeU32(&buf, e.Mode)
		writeU32(&buf, e.UID)
		writeU32(&buf, e.GID)
		writeU32(&buf, e.Size)
		raw, _ := object.RawBytes(e.OID)
		if raw == nil {
			raw = make([]byte, object.HashSize)
		}
		buf.Write(raw)
		var flagBuf [2]byte
		binary.BigEndian.PutUint16(flagBuf[:], e.flags())
		buf.Write(flagBuf[:])
		buf.WriteString(e.Path)
		buf.WriteByte(0)

		entryLen := 40 + object.HashSize + 2 + len(e.Path) + 1
		padded := ((entryLen + 7) / 8) * 8
		for i := entryLen; i < padded; i++ {
			buf.WriteByte(0)
		}
	}

	sum := sha1.Sum(buf.Bytes())
	buf.Write(sum[:])
	return buf.Bytes()
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

// sortedEntries returns every entry ordered by (path, stage) as spec's
// each_entry requires.
func (idx *Index) sortedEntries() []*Entry {
	out := make([]*Entry, 0, len(idx.entries))
	for _, e := range idx.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Stage < out[j].Stage
	})
	return out
}

// Add stages path at stage 0 with oid and st, applying the file/directory
// collision eviction rule: it removes any entry exactly equal to an
// ancestor directory of path, and every entry whose path begins with
// "path/" — then clears conflict stages 1-3 for path.
func (idx *Index) Add(path string, oid object.Hash, st Stat) {
	path = filepath.ToSlash(path)
	idx.evictCollisions(path)
	idx.clearConflicts(path)
	idx.entries[entryKey(path, 0)] = &Entry{Stat: st, OID: oid, Stage: 0, Path: path}
}

func (idx *Index) evictCollisions(path string) {
	for _, ancestor := range ancestorDirs(path) {
		for stage := 0; stage <= 3; stage++ {
			delete(idx.entries, entryKey(ancestor, stage))
		}
	}
	childPrefix := path + "/"
	for key, e := range idx.entries {
		if strings.HasPrefix(e.Path, childPrefix) {
			delete(idx.entries, key)
		}
	}
}

func ancestorDirs(path string) []string {
	var out []string
	dir := filepath.Dir(filepath.ToSlash(path))
	for dir != "." && dir != "/" && dir != "" {
		out = append(out, dir)
		dir = filepath.Dir(dir)
	}
	return out
}

func (idx *Index) clearConflicts(path string) {
	for stage := 1; stage <= 3; stage++ {
		delete(idx.entries, entryKey(path, stage))
	}
}

// Remove deletes path (all stages) from the index.
func (idx *Index) Remove(path string) {
	path = filepath.ToSlash(path)
	for stage := 0; stage <= 3; stage++ {
		delete(idx.entries, entryKey(path, stage))
	}
}

// ConflictEntries is the (base, ours, theirs) triple for AddConflictSet;
// any of the three may be nil when that side has no entry (e.g. added-
// by-them).
type ConflictEntries struct {
	Base   *ConflictSide
	Ours   *ConflictSide
	Theirs *ConflictSide
}

// ConflictSide is one stage of a conflicted path.
type ConflictSide struct {
	OID  object.Hash
	Mode uint32
}

// AddConflictSet records a merge conflict for path across stages 1-3,
// removing any existing stage-0 entry for that path.
func (idx *Index) AddConflictSet(path string, sides ConflictEntries) {
	path = filepath.ToSlash(path)
	delete(idx.entries, entryKey(path, 0))
	set := func(stage int, side *ConflictSide) {
		key := entryKey(path, stage)
		if side == nil {
			delete(idx.entries, key)
			return
		}
		idx.entries[key] = &Entry{
			Stat:  Stat{Mode: side.Mode},
			OID:   side.OID,
			Stage: stage,
			Path:  path,
		}
	}
	set(1, sides.Base)
	set(2, sides.Ours)
	set(3, sides.Theirs)
}

// EntryFor returns the entry at path/stage, if any.
func (idx *Index) EntryFor(path string, stage int) (*Entry, bool) {
	e, ok := idx.entries[entryKey(filepath.ToSlash(path), stage)]
	return e, ok
}

// TrackedFile reports whether path has a stage-0 (or conflicted) file
// entry exactly.
func (idx *Index) TrackedFile(path string) bool {
	path = filepath.ToSlash(path)
	for stage := 0; stage <= 3; stage++ {
		if _, ok := idx.entries[entryKey(path, stage)]; ok {
			return true
		}
	}
	return false
}

// TrackedDirectory reports whether any entry's path begins with
// "path/" — i.e. path names a directory with tracked content beneath it.
func (idx *Index) TrackedDirectory(path string) bool {
	prefix := filepath.ToSlash(path) + "/"
	for _, e := range idx.entries {
		if strings.HasPrefix(e.Path, prefix) {
			return true
		}
	}
	return false
}

// Tracked reports TrackedFile(path) || TrackedDirectory(path).
func (idx *Index) Tracked(path string) bool {
	return idx.TrackedFile(path) || idx.TrackedDirectory(path)
}

// EachEntry calls fn for every entry in (path, stage) order, stopping at
// the first error fn returns.
func (idx *Index) EachEntry(fn func(*Entry) error) error {
	for _, e := range idx.sortedEntries() {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

// Clear empties the index in memory (callers must Save to persist).
func (idx *Index) Clear() {
	idx.entries = make(map[string]*Entry)
}

// Conflict reports whether any path has an entry at stage 1, 2, or 3.
func (idx *Index) Conflict() bool {
	for _, e := range idx.entries {
		if e.Stage != 0 {
			return true
		}
	}
	return false
}

var errIndexLocked = errors.New("index: already locked for update")

// LoadForUpdate acquires the write lock and loads the current on-disk
// index, so a caller can mutate it and either WriteUpdates or
// ReleaseLock.
func LoadForUpdate(path string) (*Index, error) {
	idx, err := Load(path)
	if err != nil {
		return nil, err
	}
	l := lock.New(path)
	if err := l.Acquire(); err != nil {
		return nil, fmt.Errorf("load index for update: %w", err)
	}
	idx.locked = l
	return idx, nil
}

// WriteUpdates writes the current in-memory state and releases the lock
// by committing it.
func (idx *Index) WriteUpdates() error {
	if idx.locked == nil {
		return fmt.Errorf("write updates: %w", errIndexLocked)
	}
	data := idx.marshal()
	if err := idx.locked.Write(data); err != nil {
		return fmt.Errorf("write updates: %w", err)
	}
	if err := idx.locked.Commit(); err != nil {
		return fmt.Errorf("write updates: %w", err)
	}
	idx.locked = nil
	return nil
}

// ReleaseLock abandons an in-progress update without writing.
func (idx *Index) ReleaseLock() error {
	if idx.locked == nil {
		return nil
	}
	err := idx.locked.Rollback()
	idx.locked = nil
	return err
}

// ModeForFileInfo maps a regular-file/symlink/executable os.FileMode onto
// the three tree modes spec's object model recognizes.
func ModeForFileInfo(mode os.FileMode) uint32 {
	switch {
	case mode&os.ModeSymlink != 0:
		return 0o120000
	case mode&0o111 != 0:
		return 0o100755
	default:
		return 0o100644
	}
}
