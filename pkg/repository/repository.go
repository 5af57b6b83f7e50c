// Package repository ties the Object Store, Reference Store, Index,
// Configuration and Workspace Migration into the single entry point a
// command-line driver talks to, the way the teacher's pkg/repo.Repo does —
// but composed from this module's standalone packages instead of owning
// their logic inline.
package repository

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/harpreetsinghsandhu021/tide-version-control/pkg/config"
	"github.com/harpreetsinghsandhu021/tide-version-control/pkg/index"
	"github.com/harpreetsinghsandhu021/tide-version-control/pkg/object"
	"github.com/harpreetsinghsandhu021/tide-version-control/pkg/refs"
)

// MetaDirName is the repository metadata directory, the workspace's
// analogue of ".git".
const MetaDirName = ".tide"

// Repo composes every storage layer rooted at a single working directory.
type Repo struct {
	RootDir string
	MetaDir string
	Store   *object.Store
	Refs    *refs.Store
	Config  *config.Config
}

func metaDir(root string) string { return filepath.Join(root, MetaDirName) }

// Init creates a new repository at root: the metadata directory tree, an
// empty object store, and HEAD pointing at the default branch, mirroring
// the teacher's pkg/repo/init.go Init.
func Init(root string) (*Repo, error) {
	meta := metaDir(root)
	if _, err := os.Stat(meta); err == nil {
		return nil, fmt.Errorf("init: %s already exists", meta)
	}

	for _, dir := range []string{
		filepath.Join(meta, "objects"),
		filepath.Join(meta, "refs", "heads"),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("init: mkdir %s: %w", dir, err)
		}
	}

	r := &Repo{
		RootDir: root,
		MetaDir: meta,
		Store:   object.NewStore(meta),
		Refs:    refs.NewStore(meta),
		Config:  &config.Config{Remotes: make(map[string]string)},
	}
	if err := r.Refs.SetHeadSymbolic("refs/heads/main"); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	if err := r.Config.Save(config.Path(meta)); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	return r, nil
}

// Open walks upward from path looking for a MetaDirName directory,
// matching the teacher's pkg/repo/init.go Open.
func Open(path string) (*Repo, error) {
	dir, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	for {
		meta := metaDir(dir)
		if info, err := os.Stat(meta); err == nil && info.IsDir() {
			cfg, err := config.Load(config.Path(meta))
			if err != nil {
				return nil, fmt.Errorf("open: %w", err)
			}
			return &Repo{
				RootDir: dir,
				MetaDir: meta,
				Store:   object.NewStore(meta),
				Refs:    refs.NewStore(meta),
				Config:  cfg,
			}, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, fmt.Errorf("open: no %s directory found above %q", MetaDirName, path)
		}
		dir = parent
	}
}

// Head returns the last symbolic name in HEAD's chain: a ref path
// ("refs/heads/main") for a normal checkout, or a hex OID for a detached
// HEAD.
func (r *Repo) Head() (string, error) {
	sym, err := r.Refs.CurrentRef("HEAD")
	if err != nil {
		return "", fmt.Errorf("head: %w", err)
	}
	if sym.Name != "" {
		return sym.Name, nil
	}
	return string(sym.OID), nil
}

// ResolveRef resolves name (HEAD, a full ref path, or a bare branch name)
// to its commit OID.
func (r *Repo) ResolveRef(name string) (object.Hash, error) {
	candidates := []string{name}
	if name != "HEAD" {
		candidates = append(candidates, "refs/heads/"+name)
	}
	for _, c := range candidates {
		oid, ok, err := r.Refs.Read(c)
		if err != nil {
			return "", fmt.Errorf("resolve ref %q: %w", name, err)
		}
		if ok {
			return oid, nil
		}
	}
	return "", fmt.Errorf("resolve ref %q: not found", name)
}

// indexPath returns the path to the on-disk index file.
func (r *Repo) indexPath() string { return filepath.Join(r.MetaDir, "index") }

// ReadIndex loads the current index (empty if none exists yet).
func (r *Repo) ReadIndex() (*index.Index, error) {
	return index.Load(r.indexPath())
}

// repoRelPath converts an absolute or CWD-relative path into one relative
// to RootDir, matching the teacher's pkg/repo/staging.go repoRelPath.
func (r *Repo) repoRelPath(p string) (string, error) {
	if filepath.IsAbs(p) {
		rel, err := filepath.Rel(r.RootDir, p)
		if err != nil {
			return "", fmt.Errorf("cannot make %q relative to %q: %w", p, r.RootDir, err)
		}
		return filepath.ToSlash(rel), nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return filepath.ToSlash(filepath.Clean(p)), nil
	}
	abs := filepath.Join(cwd, p)
	rel, err := filepath.Rel(r.RootDir, abs)
	if err != nil || (len(rel) >= 2 && rel[:2] == "..") {
		return filepath.ToSlash(filepath.Clean(p)), nil
	}
	return filepath.ToSlash(rel), nil
}
