// Package config implements the core's own minimal repository-local
// settings store: remote URLs and the local user identity fallback used
// when the GIT_AUTHOR_NAME/GIT_AUTHOR_EMAIL environment variables are unset.
// This is not the collaborator-facing arbitrary-key INI config reader
// spec's Non-goals exclude — it is the analogue of the teacher's
// config.json, just persisted as TOML via github.com/BurntSushi/toml
// instead of encoding/json, since that library rides along in the
// teacher's go.mod unused in its source tree.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// User is the local identity fallback recorded under [user] when no
// GIT_AUTHOR_NAME/GIT_AUTHOR_EMAIL environment variable is set.
type User struct {
	Name  string `toml:"name,omitempty"`
	Email string `toml:"email,omitempty"`
}

// Config is the full repository-local settings file.
type Config struct {
	User    User              `toml:"user,omitempty"`
	Remotes map[string]string `toml:"remotes,omitempty"`
}

// Path returns the settings file path under the repository's metadata
// directory (gotDir-equivalent, e.g. ".tide/config.toml").
func Path(metaDir string) string {
	return filepath.Join(metaDir, "config.toml")
}

// Load reads the settings file at path. A missing file yields an empty
// Config with an initialized Remotes map, not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{Remotes: make(map[string]string)}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if cfg.Remotes == nil {
		cfg.Remotes = make(map[string]string)
	}
	return cfg, nil
}

// Save atomically writes cfg to path via a temp file + rename, matching
// the teacher's own config.json write discipline (pkg/repo/config.go's
// WriteConfig).
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".config-tmp-*")
	if err != nil {
		return fmt.Errorf("config: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	enc := toml.NewEncoder(tmp)
	if err := enc.Encode(c); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("config: encode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("config: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("config: rename into place: %w", err)
	}
	return nil
}

// SetRemote stores/updates a named remote URL.
func (c *Config) SetRemote(name, url string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("config: remote name is required")
	}
	url = strings.TrimSpace(url)
	if url == "" {
		return fmt.Errorf("config: remote URL is required")
	}
	if c.Remotes == nil {
		c.Remotes = make(map[string]string)
	}
	c.Remotes[name] = url
	return nil
}

// RemoteURL returns the configured URL for name.
func (c *Config) RemoteURL(name string) (string, error) {
	name = strings.TrimSpace(name)
	url, ok := c.Remotes[name]
	if !ok || strings.TrimSpace(url) == "" {
		return "", fmt.Errorf("config: remote %q is not configured", name)
	}
	return url, nil
}

// RemoveRemote deletes a named remote, reporting whether it existed.
func (c *Config) RemoveRemote(name string) bool {
	name = strings.TrimSpace(name)
	if _, ok := c.Remotes[name]; !ok {
		return false
	}
	delete(c.Remotes, name)
	return true
}

// AuthorIdentity resolves the committer/author name and email: the
// GIT_AUTHOR_NAME/GIT_AUTHOR_EMAIL environment variables take priority,
// falling back to the [user] section of this config.
func (c *Config) AuthorIdentity() (name, email string) {
	name = os.Getenv("GIT_AUTHOR_NAME")
	if name == "" {
		name = c.User.Name
	}
	email = os.Getenv("GIT_AUTHOR_EMAIL")
	if email == "" {
		email = c.User.Email
	}
	return name, email
}
