package revwalk

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/shlex"

	"github.com/harpreetsinghsandhu021/tide-version-control/pkg/object"
)

// Resolver looks up a ref or short-hash name and returns its commit OID.
type Resolver func(name string) (object.Hash, bool, error)

// ParsedRevisions is the result of parsing a revision-expression command
// line: start points to include, start points to exclude, and any
// trailing workspace paths (added to the path filter, not start points).
type ParsedRevisions struct {
	Include []object.Hash
	Exclude []object.Hash
	Paths   []string
}

// ParseRevisions tokenizes line with shell-word splitting (so quoted
// paths containing spaces survive) and parses each word as one of:
//   - plain name R           → include tip of R
//   - ^R                     → exclude R and its ancestors
//   - A..B                   → equivalent to ^A B
//   - a literal "--"         → everything after is workspace paths
//
// Workspace paths are only taken after "--": any other word must resolve
// as a revision, and one that does not is an error.
//
// Each name additionally accepts the suffix grammar `name := atom ('^' n? |
// '~' n)*` (spec §9): `^n` selects the nth parent (1-indexed, default 1),
// `~n` walks n steps down the first-parent chain. If the net result has no
// include and no exclude start points, HEAD is included.
func ParseRevisions(store *object.Store, resolve Resolver, line string) (ParsedRevisions, error) {
	words, err := shlex.Split(line)
	if err != nil {
		return ParsedRevisions{}, fmt.Errorf("parse revisions: %w", err)
	}

	var out ParsedRevisions
	inPaths := false
	for _, word := range words {
		if inPaths {
			out.Paths = append(out.Paths, word)
			continue
		}
		if word == "--" {
			inPaths = true
			continue
		}
		if strings.Contains(word, "..") && !strings.HasPrefix(word, "^") {
			a, b, ok := splitRange(word)
			if ok {
				aOID, err := resolveAtom(store, resolve, a)
				if err != nil {
					return ParsedRevisions{}, err
				}
				bOID, err := resolveAtom(store, resolve, b)
				if err != nil {
					return ParsedRevisions{}, err
				}
				out.Exclude = append(out.Exclude, aOID)
				out.Include = append(out.Include, bOID)
				continue
			}
		}
		if strings.HasPrefix(word, "^") {
			oid, err := resolveAtom(store, resolve, strings.TrimPrefix(word, "^"))
			if err != nil {
				return ParsedRevisions{}, err
			}
			out.Exclude = append(out.Exclude, oid)
			continue
		}
		oid, err := resolveAtom(store, resolve, word)
		if err != nil {
			return ParsedRevisions{}, err
		}
		out.Include = append(out.Include, oid)
	}

	if len(out.Include) == 0 && len(out.Exclude) == 0 {
		head, ok, err := resolve("HEAD")
		if err != nil {
			return ParsedRevisions{}, fmt.Errorf("parse revisions: resolve HEAD: %w", err)
		}
		if ok {
			out.Include = append(out.Include, head)
		}
	}
	return out, nil
}

// splitRange splits "A..B" into its two atoms. Returns ok=false if word
// does not contain exactly the "A..B" shape (e.g. a path with dots in it).
func splitRange(word string) (a, b string, ok bool) {
	idx := strings.Index(word, "..")
	if idx < 0 {
		return "", "", false
	}
	left := word[:idx]
	right := word[idx+2:]
	if left == "" || right == "" || strings.Contains(right, "..") {
		return "", "", false
	}
	return left, right, true
}

type suffixOp struct {
	kind byte // '^' or '~'
	n    int
}

// parseAtom splits "name^2~1" into its base name and ordered suffix ops.
func parseAtom(expr string) (base string, ops []suffixOp, err error) {
	base = expr
	for {
		trimmedBase, op, found := splitTrailingOp(base)
		if !found {
			break
		}
		base = trimmedBase
		ops = append([]suffixOp{op}, ops...)
	}
	return base, ops, nil
}

func splitTrailingOp(s string) (string, suffixOp, bool) {
	if s == "" {
		return s, suffixOp{}, false
	}
	last := s[len(s)-1]
	if last == '^' {
		return s[:len(s)-1], suffixOp{kind: '^', n: 1}, true
	}
	if last == '~' {
		return s[:len(s)-1], suffixOp{kind: '~', n: 1}, true
	}
	if last >= '0' && last <= '9' {
		j := len(s) - 1
		for j > 0 && s[j-1] >= '0' && s[j-1] <= '9' {
			j--
		}
		if j == 0 {
			return s, suffixOp{}, false
		}
		marker := s[j-1]
		if marker != '^' && marker != '~' {
			return s, suffixOp{}, false
		}
		n, err := strconv.Atoi(s[j:])
		if err != nil || n == 0 {
			return s, suffixOp{}, false
		}
		return s[:j-1], suffixOp{kind: marker, n: n}, true
	}
	return s, suffixOp{}, false
}

func resolveAtom(store *object.Store, resolve Resolver, expr string) (object.Hash, error) {
	base, ops, err := parseAtom(expr)
	if err != nil {
		return "", err
	}
	oid, ok, err := resolve(base)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", base, err)
	}
	if !ok {
		return "", fmt.Errorf("resolve %q: %w", base, object.ErrNotFound)
	}
	for _, op := range ops {
		oid, err = applySuffixOp(store, oid, op)
		if err != nil {
			return "", fmt.Errorf("resolve %q: %w", expr, err)
		}
	}
	return oid, nil
}

func applySuffixOp(store *object.Store, oid object.Hash, op suffixOp) (object.Hash, error) {
	switch op.kind {
	case '^':
		c, err := store.ReadCommit(oid)
		if err != nil {
			return "", err
		}
		if op.n > len(c.Parents) {
			return "", fmt.Errorf("%s has no parent number %d: %w", oid, op.n, object.ErrNotFound)
		}
		return c.Parents[op.n-1], nil
	case '~':
		cur := oid
		for i := 0; i < op.n; i++ {
			c, err := store.ReadCommit(cur)
			if err != nil {
				return "", err
			}
			if len(c.Parents) == 0 {
				return "", fmt.Errorf("%s has no first parent: %w", cur, object.ErrNotFound)
			}
			cur = c.Parents[0]
		}
		return cur, nil
	default:
		return oid, nil
	}
}
