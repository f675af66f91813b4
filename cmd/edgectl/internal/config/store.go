package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/goccy/go-yaml"
	"github.com/google/jsonschema-go/jsonschema"
)

// StoreFile is the file in a context directory describing its edge store.
const StoreFile = "store.yaml"

// Backend selects the kv.Store implementation.
type Backend string

// Supported backends.
const (
	BackendMemory   Backend = "memory"
	BackendBadger   Backend = "badger"
	BackendDynamoDB Backend = "dynamodb"
)

// Store is the content of store.yaml.
type Store struct {
	Backend Backend `json:"backend" yaml:"backend" jsonschema:"store backend: memory, badger or dynamodb"`

	// Scope is used when a command does not pass --scope.
	Scope string `json:"scope,omitempty" yaml:"scope,omitempty" jsonschema:"default tenant scope"`

	// PageSize is the number of columns fetched per round-trip.
	PageSize int `json:"page_size,omitempty" yaml:"page_size,omitempty" jsonschema:"columns fetched per store round-trip"`

	// Snapshot is a local path or s3://bucket/key. A memory store restores
	// it on open and writes it back after every change.
	Snapshot string `json:"snapshot,omitempty" yaml:"snapshot,omitempty" jsonschema:"memory backend snapshot location (path or s3://bucket/key)"`

	// Dir is the Badger data directory.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty" jsonschema:"badger data directory"`

	// Table, Region, Endpoint and ConsistentRead configure DynamoDB.
	Table          string `json:"table,omitempty" yaml:"table,omitempty" jsonschema:"dynamodb table name"`
	Region         string `json:"region,omitempty" yaml:"region,omitempty" jsonschema:"AWS region"`
	Endpoint       string `json:"endpoint,omitempty" yaml:"endpoint,omitempty" jsonschema:"AWS endpoint override, e.g. a LocalStack URL"`
	ConsistentRead bool   `json:"consistent_read,omitempty" yaml:"consistent_read,omitempty" jsonschema:"use strongly consistent DynamoDB reads"`
}

var (
	schemaOnce     sync.Once
	storeSchema    *jsonschema.Schema
	storeResolved  *jsonschema.Resolved
	storeSchemaErr error
)

// StoreSchema returns the JSON schema store.yaml is validated against.
func StoreSchema() (*jsonschema.Schema, *jsonschema.Resolved, error) {
	schemaOnce.Do(func() {
		s, err := jsonschema.For[Store](&jsonschema.ForOptions{})
		if err != nil {
			storeSchemaErr = fmt.Errorf("store schema: %w", err)
			return
		}
		s.Properties["backend"].Enum = []any{string(BackendMemory), string(BackendBadger), string(BackendDynamoDB)}
		minPage := 1.0
		s.Properties["page_size"].Minimum = &minPage
		resolved, err := s.Resolve(nil)
		if err != nil {
			storeSchemaErr = fmt.Errorf("resolve store schema: %w", err)
			return
		}
		storeSchema, storeResolved = s, resolved
	})
	return storeSchema, storeResolved, storeSchemaErr
}

// Validate checks s against the schema and the per-backend requirements.
func (s *Store) Validate() error {
	_, resolved, err := StoreSchema()
	if err != nil {
		return err
	}
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	var instance map[string]any
	if err := json.Unmarshal(data, &instance); err != nil {
		return err
	}
	if err := resolved.Validate(instance); err != nil {
		return fmt.Errorf("invalid store config: %w", err)
	}

	switch s.Backend {
	case BackendBadger:
		if s.Dir == "" {
			return fmt.Errorf("invalid store config: badger backend requires dir")
		}
	case BackendDynamoDB:
		if s.Table == "" {
			return fmt.Errorf("invalid store config: dynamodb backend requires table")
		}
	}
	return nil
}

// readStoreFile returns the raw keys of store.yaml, or an empty map when the
// file does not exist.
func readStoreFile(contextDir string) (map[string]any, error) {
	path := filepath.Join(contextDir, StoreFile)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	m := map[string]any{}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

func saveStore(contextDir string, s *Store) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("config: marshal store: %w", err)
	}
	return os.WriteFile(filepath.Join(contextDir, StoreFile), data, 0o644)
}

// LoadStore loads and validates store.yaml from a context directory.
// Relative snapshot and badger paths are resolved against contextDir.
func LoadStore(contextDir string) (*Store, error) {
	path := filepath.Join(contextDir, StoreFile)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: no %s in %s", StoreFile, contextDir)
	}
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	s := &Store{}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if s.Dir != "" && !filepath.IsAbs(s.Dir) {
		s.Dir = filepath.Join(contextDir, s.Dir)
	}
	if s.Snapshot != "" && !filepath.IsAbs(s.Snapshot) && !strings.HasPrefix(s.Snapshot, "s3://") {
		s.Snapshot = filepath.Join(contextDir, s.Snapshot)
	}
	return s, nil
}

// StoreKeys returns the keys accepted by SetStoreValue.
func StoreKeys() ([]string, error) {
	schema, _, err := StoreSchema()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(schema.Properties))
	for k := range schema.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// SetStoreValue sets one key of a context's store.yaml. The value is
// converted to the key's schema type and the result is validated before it
// is written.
func SetStoreValue(contextDir, key, value string) (*Store, error) {
	schema, _, err := StoreSchema()
	if err != nil {
		return nil, err
	}
	prop, ok := schema.Properties[key]
	if !ok {
		keys, _ := StoreKeys()
		return nil, fmt.Errorf("unknown store key %q (known: %v)", key, keys)
	}

	var typed any = value
	switch prop.Type {
	case "integer":
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("%s: %q is not an integer", key, value)
		}
		typed = n
	case "boolean":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%s: %q is not a boolean", key, value)
		}
		typed = b
	}

	m, err := readStoreFile(contextDir)
	if err != nil {
		return nil, err
	}
	m[key] = typed

	data, err := yaml.Marshal(m)
	if err != nil {
		return nil, err
	}
	var s Store
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if err := saveStore(contextDir, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
