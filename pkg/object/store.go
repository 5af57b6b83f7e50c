package object

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zlib"
)

// Store is a content-addressed object store fronted by an ordered list of
// backends: the loose backend (one zlib-deflated file per object under a
// 2-character fan-out directory) is consulted first, then the pack backend
// (§4.5). Writes always go to the loose backend; packs are produced en
// masse by GC, never one object at a time.
type Store struct {
	root string
}

// NewStore creates a Store rooted at the given directory (the repository's
// metadata directory, e.g. ".tide"). The objects/ subdirectory is created
// lazily on first write.
func NewStore(root string) *Store {
	return &Store{root: root}
}

// objectPath returns the filesystem path for a given hash in the loose
// backend.
func (s *Store) objectPath(h Hash) string {
	return filepath.Join(s.root, "objects", string(h[:2]), string(h[2:]))
}

// Has reports whether the store contains an object with the given hash, in
// either backend.
func (s *Store) Has(h Hash) bool {
	if _, err := os.Stat(s.objectPath(h)); err == nil {
		return true
	}
	_, _, err := s.readFromPacks(h)
	return err == nil
}

// Write stores an object and returns its content hash (`store` in §4.1).
// The on-disk format is zlib-deflate of "type len\0content". Writes are
// atomic: data is written to a uniquely-named temp file and then renamed
// into place. A write is a no-op if the OID is already present.
func (s *Store) Write(objType ObjectType, data []byte) (Hash, error) {
	h := HashObject(objType, data)

	if s.Has(h) {
		return h, nil
	}

	envelope := Envelope(objType, data)
	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	if _, err := zw.Write(envelope); err != nil {
		_ = zw.Close()
		return "", fmt.Errorf("object write deflate: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("object write deflate close: %w", err)
	}

	dir := filepath.Join(s.root, "objects", string(h[:2]))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("object write mkdir: %w", err)
	}

	tmpName := filepath.Join(dir, ".tmp-"+uuid.NewString())
	if err := os.WriteFile(tmpName, compressed.Bytes(), 0o444); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("object write: %w", err)
	}

	dest := s.objectPath(h)
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("object write rename: %w", err)
	}

	return h, nil
}

// Read retrieves an object by hash, returning its type and raw content
// (`load` in §4.1). Fails with ErrNotFound if absent from every backend.
func (s *Store) Read(h Hash) (ObjectType, []byte, error) {
	objType, data, err := s.readLoose(h)
	if err == nil {
		return objType, data, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", nil, err
	}
	return s.readFromPacks(h)
}

func (s *Store) readLoose(h Hash) (ObjectType, []byte, error) {
	f, err := os.Open(s.objectPath(h))
	if err != nil {
		return "", nil, err
	}
	defer f.Close()

	zr, err := zlib.NewReader(f)
	if err != nil {
		return "", nil, fmt.Errorf("%w: object read %s: inflate: %v", ErrCorrupt, h, err)
	}
	raw, err := io.ReadAll(zr)
	_ = zr.Close()
	if err != nil {
		return "", nil, fmt.Errorf("%w: object read %s: inflate: %v", ErrCorrupt, h, err)
	}

	return parseObjectEnvelope(raw, h)
}

func parseObjectEnvelope(raw []byte, h Hash) (ObjectType, []byte, error) {
	nulIdx := bytes.IndexByte(raw, 0)
	if nulIdx < 0 {
		return "", nil, fmt.Errorf("%w: object %s: invalid format (no NUL)", ErrCorrupt, h)
	}
	header := string(raw[:nulIdx])
	content := raw[nulIdx+1:]

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", nil, fmt.Errorf("%w: object %s: invalid header %q", ErrCorrupt, h, header)
	}
	objType := ObjectType(parts[0])
	length, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", nil, fmt.Errorf("%w: object %s: invalid length %q: %v", ErrCorrupt, h, parts[1], err)
	}
	if len(content) != length {
		return "", nil, fmt.Errorf("%w: object %s: length mismatch (header=%d, actual=%d)", ErrCorrupt, h, length, len(content))
	}
	if computed := HashObject(objType, content); computed != h {
		return "", nil, fmt.Errorf("%w: object %s: hash mismatch (computed %s)", ErrCorrupt, h, computed)
	}
	return objType, content, nil
}

// LoadInfo returns an object's type and size (`load_info` in §4.1). It
// reads and inflates the whole object, from either backend, to get them.
func (s *Store) LoadInfo(h Hash) (ObjectType, int, error) {
	objType, data, err := s.Read(h)
	if err != nil {
		return "", 0, err
	}
	return objType, len(data), nil
}

// Reload is a no-op: the pack backend lists objects/pack/*.idx fresh on
// every lookup, so a newly landed pack is visible to the very next read
// without any explicit cache invalidation. Kept as an explicit call site
// per §4.1 so callers that finish a GC/fetch can signal "packs changed"
// even though nothing needs to happen today.
func (s *Store) Reload() {}

// PrefixMatch returns every OID (loose or packed) whose hex form begins
// with hexPrefix, for short-id expansion.
func (s *Store) PrefixMatch(hexPrefix string) ([]Hash, error) {
	seen := make(map[Hash]struct{})
	var out []Hash

	looseHashes, err := s.listLooseObjectHashes()
	if err != nil {
		return nil, err
	}
	for _, h := range looseHashes {
		if strings.HasPrefix(string(h), hexPrefix) {
			if _, ok := seen[h]; !ok {
				seen[h] = struct{}{}
				out = append(out, h)
			}
		}
	}

	idxPaths, err := s.listPackIndexPaths()
	if err != nil {
		return nil, err
	}
	for _, idxPath := range idxPaths {
		idxData, err := os.ReadFile(idxPath)
		if err != nil {
			return nil, err
		}
		idx, err := ReadPackIndex(idxData)
		if err != nil {
			return nil, err
		}
		matches, err := idx.PrefixMatch(hexPrefix)
		if err != nil {
			return nil, err
		}
		for _, h := range matches {
			if _, ok := seen[h]; !ok {
				seen[h] = struct{}{}
				out = append(out, h)
			}
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Typed convenience methods
// ---------------------------------------------------------------------------

// WriteBlob serializes and stores a Blob.
func (s *Store) WriteBlob(b *Blob) (Hash, error) {
	return s.Write(TypeBlob, MarshalBlob(b))
}

// ReadBlob reads and deserializes a Blob.
func (s *Store) ReadBlob(h Hash) (*Blob, error) {
	objType, data, err := s.Read(h)
	if err != nil {
		return nil, err
	}
	if objType != TypeBlob {
		return nil, fmt.Errorf("%w: object %s: type mismatch: got %q, want %q", ErrInvalid, h, objType, TypeBlob)
	}
	return UnmarshalBlob(data)
}

// WriteTree serializes and stores a TreeObj.
func (s *Store) WriteTree(tr *TreeObj) (Hash, error) {
	return s.Write(TypeTree, MarshalTree(tr))
}

// ReadTree reads and deserializes a TreeObj.
func (s *Store) ReadTree(h Hash) (*TreeObj, error) {
	objType, data, err := s.Read(h)
	if err != nil {
		return nil, err
	}
	if objType != TypeTree {
		return nil, fmt.Errorf("%w: object %s: type mismatch: got %q, want %q", ErrInvalid, h, objType, TypeTree)
	}
	return UnmarshalTree(data)
}

// WriteCommit serializes and stores a CommitObj.
func (s *Store) WriteCommit(c *CommitObj) (Hash, error) {
	return s.Write(TypeCommit, MarshalCommit(c))
}

// ReadCommit reads and deserializes a CommitObj.
func (s *Store) ReadCommit(h Hash) (*CommitObj, error) {
	objType, data, err := s.Read(h)
	if err != nil {
		return nil, err
	}
	if objType != TypeCommit {
		return nil, fmt.Errorf("%w: object %s: type mismatch: got %q, want %q", ErrInvalid, h, objType, TypeCommit)
	}
	return UnmarshalCommit(data)
}
