// Package refs implements the Reference Store: named pointers into the
// object store, either direct (an OID) or symbolic (another reference
// name). Lifted out of the teacher's Repo type so it composes with any
// object store instead of owning one.
package refs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/harpreetsinghsandhu021/tide-version-control/pkg/lock"
	"github.com/harpreetsinghsandhu021/tide-version-control/pkg/object"
)

// ErrStaleValue is returned by CompareAndSwap when the on-disk value does
// not match the caller's expected value.
var ErrStaleValue = errors.New("refs: stale value")

// ErrInvalidName is returned for a reference name that fails the §3 name
// grammar.
var ErrInvalidName = errors.New("refs: invalid name")

// ErrNotExist is returned by Read/Delete when the named reference is
// absent.
var ErrNotExist = errors.New("refs: does not exist")

// ErrAlreadyExists is returned by CreateBranch when the branch ref already
// has a value.
var ErrAlreadyExists = errors.New("refs: already exists")

const headName = "HEAD"

// SymRef is the result of resolving a starting point to the deepest
// symbolic name without collapsing it to an OID, for status display.
type SymRef struct {
	// Name is the deepest symbolic reference name reached (e.g.
	// "refs/heads/main"), or "" if the chain terminated at a direct OID
	// (detached HEAD).
	Name string
	// OID is the object the chain (or the direct value) ultimately
	// resolves to.
	OID object.Hash
}

// Store is a reference store rooted at dir (a repository's metadata
// directory, e.g. ".tide").
type Store struct {
	root string
}

// NewStore returns a Store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

// ValidName reports whether name satisfies spec's reference name grammar:
// no leading '.', no "/.", no "..", no leading/trailing '/', no trailing
// ".lock", no "@{", and none of the bytes in [\x00-\x20*:?\[\\^~\x7f].
func ValidName(name string) bool {
	if name == "" {
		return false
	}
	if name == headName {
		return true
	}
	if strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") {
		return false
	}
	if strings.HasPrefix(name, ".") {
		return false
	}
	if strings.Contains(name, "/.") {
		return false
	}
	if strings.Contains(name, "..") {
		return false
	}
	if strings.HasSuffix(name, ".lock") {
		return false
	}
	if strings.Contains(name, "@{") {
		return false
	}
	for _, r := range name {
		if r <= 0x20 || r == 0x7f {
			return false
		}
		switch r {
		case '*', ':', '?', '[', '\\', '^', '~':
			return false
		}
	}
	return true
}

func (s *Store) path(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name))
}

// Read follows symbolic chains transparently and returns the OID the
// named reference ultimately points to. ok is false if the reference does
// not exist.
func (s *Store) Read(name string) (object.Hash, bool, error) {
	cur := name
	seen := map[string]bool{}
	for {
		if seen[cur] {
			return "", false, fmt.Errorf("read %q: %w: symbolic reference cycle", name, object.ErrCorrupt)
		}
		seen[cur] = true

		raw, err := os.ReadFile(s.path(cur))
		if err != nil {
			if os.IsNotExist(err) {
				return "", false, nil
			}
			return "", false, fmt.Errorf("read %q: %w", name, err)
		}
		content := strings.TrimRight(string(raw), "\n")
		if target, isSym := parseSymbolic(content); isSym {
			cur = target
			continue
		}
		return object.Hash(content), true, nil
	}
}

// CurrentRef resolves source (HEAD by default) to the deepest symbolic
// name reached, without collapsing the chain all the way to an OID — used
// for status display ("On branch main" vs "HEAD detached at <oid>").
func (s *Store) CurrentRef(source string) (SymRef, error) {
	if source == "" {
		source = headName
	}
	cur := source
	deepest := ""
	seen := map[string]bool{}
	for {
		if seen[cur] {
			return SymRef{}, fmt.Errorf("current ref %q: %w: symbolic reference cycle", source, object.ErrCorrupt)
		}
		seen[cur] = true

		raw, err := os.ReadFile(s.path(cur))
		if err != nil {
			if os.IsNotExist(err) {
				return SymRef{Name: deepest}, nil
			}
			return SymRef{}, fmt.Errorf("current ref %q: %w", source, err)
		}
		content := strings.TrimRight(string(raw), "\n")
		if target, isSym := parseSymbolic(content); isSym {
			deepest = target
			cur = target
			continue
		}
		return SymRef{Name: deepest, OID: object.Hash(content)}, nil
	}
}

func parseSymbolic(content string) (target string, ok bool) {
	const prefix = "ref: "
	if strings.HasPrefix(content, prefix) {
		return strings.TrimPrefix(content, prefix), true
	}
	return "", false
}

// Update writes newOID to name under the Lock Discipline. If name is
// symbolic, the chain is walked and only the terminal file is written.
// The current value is read first and passed to CompareAndSwap, so a
// concurrent change between that read and the write fails with
// ErrStaleValue.
func (s *Store) Update(name string, newOID object.Hash) error {
	cur, ok, err := s.Read(name)
	if err != nil {
		return err
	}
	var expected *object.Hash
	if ok {
		expected = &cur
	}
	return s.CompareAndSwap(name, expected, &newOID)
}

// CompareAndSwap atomically updates name from expected to newOID.
// expected == nil means "must not exist". newOID == nil means delete.
// Fails with ErrStaleValue if the on-disk value differs from expected.
func (s *Store) CompareAndSwap(name string, expected, newOID *object.Hash) error {
	if !ValidName(name) {
		return fmt.Errorf("compare-and-swap %q: %w", name, ErrInvalidName)
	}

	terminal, err := s.resolveTerminal(name)
	if err != nil {
		return err
	}
	path := s.path(terminal)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("compare-and-swap %q: mkdir: %w", name, err)
	}

	l := lock.New(path)
	if newOID == nil {
		return s.casDelete(l, name, terminal, path, expected)
	}

	target := *newOID
	casErr := l.CompareAndSwap(
		func(current []byte) error {
			currentHash, exists := parseHashFile(current)
			return checkExpected(name, expected, currentHash, exists)
		},
		func() []byte { return []byte(string(target) + "\n") },
	)
	if casErr != nil {
		return casErr
	}
	return nil
}

func (s *Store) casDelete(l *lock.Lock, name, terminal, path string, expected *object.Hash) error {
	if err := l.Acquire(); err != nil {
		return fmt.Errorf("delete %q: %w", name, err)
	}
	defer l.Rollback()

	raw, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %q: %w", name, err)
	}
	currentHash, exists := parseHashFile(raw)
	if err := checkExpected(name, expected, currentHash, exists); err != nil {
		return err
	}
	if !exists {
		return nil
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("delete %q: %w", name, err)
	}
	return nil
}

func checkExpected(name string, expected *object.Hash, current object.Hash, exists bool) error {
	switch {
	case expected == nil && exists:
		return fmt.Errorf("compare-and-swap %q: %w: expected absent, found %s", name, ErrStaleValue, current)
	case expected != nil && !exists:
		return fmt.Errorf("compare-and-swap %q: %w: expected %s, found absent", name, ErrStaleValue, *expected)
	case expected != nil && exists && *expected != current:
		return fmt.Errorf("compare-and-swap %q: %w: expected %s, found %s", name, ErrStaleValue, *expected, current)
	default:
		return nil
	}
}

func parseHashFile(raw []byte) (object.Hash, bool) {
	if len(raw) == 0 {
		return "", false
	}
	content := strings.TrimRight(string(raw), "\n")
	if _, isSym := parseSymbolic(content); isSym {
		return "", false
	}
	return object.Hash(content), true
}

// resolveTerminal walks the symbolic chain starting at name and returns
// the name of the file that should actually be written: the deepest
// symbolic target, or name itself if it is direct or absent.
func (s *Store) resolveTerminal(name string) (string, error) {
	cur := name
	seen := map[string]bool{}
	for {
		if seen[cur] {
			return "", fmt.Errorf("resolve %q: %w: symbolic reference cycle", name, object.ErrCorrupt)
		}
		seen[cur] = true

		raw, err := os.ReadFile(s.path(cur))
		if err != nil {
			if os.IsNotExist(err) {
				return cur, nil
			}
			return "", fmt.Errorf("resolve %q: %w", name, err)
		}
		content := strings.TrimRight(string(raw), "\n")
		target, isSym := parseSymbolic(content)
		if !isSym {
			return cur, nil
		}
		cur = target
	}
}

// CreateBranch creates refs/heads/<name> pointing at start. Fails if the
// branch already exists or name is invalid.
func (s *Store) CreateBranch(name string, start object.Hash) error {
	full := "refs/heads/" + name
	if !ValidName(full) {
		return fmt.Errorf("create branch %q: %w", name, ErrInvalidName)
	}
	if err := s.CompareAndSwap(full, nil, &start); err != nil {
		if errors.Is(err, ErrStaleValue) {
			return fmt.Errorf("create branch %q: %w", name, ErrAlreadyExists)
		}
		return fmt.Errorf("create branch %q: %w", name, err)
	}
	return nil
}

// DeleteBranch removes refs/heads/<name> and returns the OID it pointed
// to.
func (s *Store) DeleteBranch(name string) (object.Hash, error) {
	full := "refs/heads/" + name
	oid, ok, err := s.Read(full)
	if err != nil {
		return "", fmt.Errorf("delete branch %q: %w", name, err)
	}
	if !ok {
		return "", fmt.Errorf("delete branch %q: %w", name, ErrNotExist)
	}
	if err := s.CompareAndSwap(full, &oid, nil); err != nil {
		return "", fmt.Errorf("delete branch %q: %w", name, err)
	}
	return oid, nil
}

// ListRefs enumerates every reference stored under the directory named by
// prefix (or prefix itself when it names a single reference file),
// depth-first, sorted for determinism. A prefix that ends partway through
// a path component matches nothing.
func (s *Store) ListRefs(prefix string) ([]string, error) {
	root := s.path(prefix)
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list refs %q: %w", prefix, err)
	}

	var out []string
	if !info.IsDir() {
		out = append(out, strings.TrimSuffix(prefix, "/"))
		return out, nil
	}

	err = filepath.Walk(root, func(p string, fi os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if fi.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(s.root, p)
		if relErr != nil {
			return relErr
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list refs %q: %w", prefix, err)
	}
	sort.Strings(out)
	return out, nil
}

// ReverseMap returns every reference name that points (directly) at each
// OID currently in refs/.
func (s *Store) ReverseMap() (map[object.Hash][]string, error) {
	names, err := s.ListRefs("refs")
	if err != nil {
		return nil, fmt.Errorf("reverse map: %w", err)
	}
	out := make(map[object.Hash][]string)
	for _, name := range names {
		oid, ok, err := s.Read(name)
		if err != nil {
			return nil, fmt.Errorf("reverse map: %w", err)
		}
		if !ok {
			continue
		}
		out[oid] = append(out[oid], name)
	}
	for oid := range out {
		sort.Strings(out[oid])
	}
	return out, nil
}

// ShortName strips the longest of "refs/remotes/", "refs/heads/", "refs/"
// from path.
func ShortName(path string) string {
	for _, prefix := range []string{"refs/remotes/", "refs/heads/", "refs/"} {
		if strings.HasPrefix(path, prefix) {
			return strings.TrimPrefix(path, prefix)
		}
	}
	return path
}

// CurrentBranch returns the branch name if HEAD is a symbolic ref under
// refs/heads/, or "" for a detached HEAD.
func (s *Store) CurrentBranch() (string, error) {
	sym, err := s.CurrentRef(headName)
	if err != nil {
		return "", fmt.Errorf("current branch: %w", err)
	}
	const prefix = "refs/heads/"
	if strings.HasPrefix(sym.Name, prefix) {
		return strings.TrimPrefix(sym.Name, prefix), nil
	}
	return "", nil
}

// ListBranches returns every local branch name, sorted.
func (s *Store) ListBranches() ([]string, error) {
	names, err := s.ListRefs("refs/heads")
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = ShortName(n)
	}
	sort.Strings(out)
	return out, nil
}

// SetHeadSymbolic points HEAD at the given full ref name (e.g.
// "refs/heads/main").
func (s *Store) SetHeadSymbolic(refName string) error {
	path := s.path(headName)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("set head: mkdir: %w", err)
	}
	l := lock.New(path)
	if err := l.Acquire(); err != nil {
		return fmt.Errorf("set head: %w", err)
	}
	if err := l.Write([]byte("ref: " + refName + "\n")); err != nil {
		return fmt.Errorf("set head: %w", err)
	}
	return l.Commit()
}

// SetHeadDetached points HEAD directly at oid.
func (s *Store) SetHeadDetached(oid object.Hash) error {
	path := s.path(headName)
	l := lock.New(path)
	if err := l.Acquire(); err != nil {
		return fmt.Errorf("set head: %w", err)
	}
	if err := l.Write([]byte(string(oid) + "\n")); err != nil {
		return fmt.Errorf("set head: %w", err)
	}
	return l.Commit()
}
