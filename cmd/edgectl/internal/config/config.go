// Package config holds the edgectl configuration: a set of named contexts,
// each pointing at one edge store, and the name of the current context.
//
// The root is os.UserConfigDir()/edgectl/, or $EDGECTL_CONFIG_DIR when set:
//
//	edgectl/
//	├── config.yaml              # current_context
//	└── contexts/
//	    ├── local/
//	    │   ├── store.yaml       # backend and its settings
//	    │   └── edges.snap       # relative paths resolve here
//	    └── prod/
//	        └── store.yaml
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"github.com/goccy/go-yaml"
)

// EnvConfigDir overrides the configuration root.
const EnvConfigDir = "EDGECTL_CONFIG_DIR"

const (
	rootFile    = "config.yaml"
	contextsDir = "contexts"
)

var contextNameRE = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidateContextName checks that name is usable as a context directory.
func ValidateContextName(name string) error {
	if !contextNameRE.MatchString(name) {
		return fmt.Errorf("invalid context name %q: use letters, digits, '.', '_' or '-', starting with a letter or digit", name)
	}
	return nil
}

// Config is the content of config.yaml plus the root it was loaded from.
type Config struct {
	Dir            string `yaml:"-"`
	CurrentContext string `yaml:"current_context,omitempty"`
}

// Context is one named context directory.
type Context struct {
	Name    string
	Dir     string
	Current bool
}

// Store loads the context's store.yaml.
func (c Context) Store() (*Store, error) {
	return LoadStore(c.Dir)
}

// Load reads the configuration from $EDGECTL_CONFIG_DIR or the OS config
// directory.
func Load() (*Config, error) {
	if dir := os.Getenv(EnvConfigDir); dir != "" {
		return LoadFrom(dir)
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("config: locate user config dir: %w", err)
	}
	return LoadFrom(filepath.Join(base, "edgectl"))
}

// LoadFrom reads the configuration rooted at dir. A missing config.yaml
// yields an empty configuration.
func LoadFrom(dir string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(filepath.Join(dir, rootFile))
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", rootFile, err)
		}
	}
	cfg.Dir = dir
	return cfg, nil
}

func (c *Config) save() error {
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	return os.WriteFile(filepath.Join(c.Dir, rootFile), data, 0o644)
}

func (c *Config) contextDir(name string) string {
	return filepath.Join(c.Dir, contextsDir, name)
}

// Context returns the named context, or the current one when name is empty.
func (c *Config) Context(name string) (Context, error) {
	if name == "" {
		if c.CurrentContext == "" {
			return Context{}, errors.New("no current context; run 'edgectl config use-context <name>' or pass -c")
		}
		name = c.CurrentContext
	}
	if err := ValidateContextName(name); err != nil {
		return Context{}, err
	}
	dir := c.contextDir(name)
	if st, err := os.Stat(dir); err != nil || !st.IsDir() {
		return Context{}, fmt.Errorf("context %q not found", name)
	}
	return Context{Name: name, Dir: dir, Current: name == c.CurrentContext}, nil
}

// Contexts lists all contexts in name order.
func (c *Config) Contexts() ([]Context, error) {
	entries, err := os.ReadDir(filepath.Join(c.Dir, contextsDir))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: list contexts: %w", err)
	}
	var out []Context
	for _, e := range entries {
		if !e.IsDir() || ValidateContextName(e.Name()) != nil {
			continue
		}
		out = append(out, Context{
			Name:    e.Name(),
			Dir:     c.contextDir(e.Name()),
			Current: e.Name() == c.CurrentContext,
		})
	}
	return out, nil
}

// Create makes a new context holding store. The first context created
// becomes the current one.
func (c *Config) Create(name string, store *Store) (Context, error) {
	if err := ValidateContextName(name); err != nil {
		return Context{}, err
	}
	if err := store.Validate(); err != nil {
		return Context{}, err
	}
	dir := c.contextDir(name)
	if _, err := os.Stat(dir); err == nil {
		return Context{}, fmt.Errorf("context %q already exists", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Context{}, fmt.Errorf("config: create context %q: %w", name, err)
	}
	if err := saveStore(dir, store); err != nil {
		return Context{}, err
	}
	if c.CurrentContext == "" {
		c.CurrentContext = name
		if err := c.save(); err != nil {
			return Context{}, err
		}
	}
	return Context{Name: name, Dir: dir, Current: c.CurrentContext == name}, nil
}

// Remove deletes a context directory. Removing the current context leaves
// no context selected.
func (c *Config) Remove(name string) error {
	ctx, err := c.Context(name)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(ctx.Dir); err != nil {
		return fmt.Errorf("config: remove context %q: %w", name, err)
	}
	if ctx.Current {
		c.CurrentContext = ""
		return c.save()
	}
	return nil
}

// Use makes name the current context.
func (c *Config) Use(name string) error {
	if name == "" {
		return errors.New("context name is required")
	}
	if _, err := c.Context(name); err != nil {
		return err
	}
	c.CurrentContext = name
	return c.save()
}
