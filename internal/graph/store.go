package graph

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

var (
	// ErrUnreadable means the document could not be read.
	ErrUnreadable = errors.New("dependency file unreadable")
	// ErrMalformed means the document is not an object of string lists.
	ErrMalformed = errors.New("dependency file malformed")
)

// LoadError is returned when a document cannot become the current graph.
// It matches ErrUnreadable or ErrMalformed with errors.Is.
type LoadError struct {
	Source string
	Kind   error
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%v: %s: %v", e.Kind, e.Source, e.Err)
}

func (e *LoadError) Unwrap() []error { return []error{e.Kind, e.Err} }

// Store holds the current graph. Loads replace it atomically; a failed load
// leaves the previous graph in place.
type Store struct {
	direction Direction
	logger    *slog.Logger

	current    atomic.Pointer[Graph]
	generation atomic.Uint64
}

// Option configures a Store.
type Option func(*Store)

// WithDirection sets how documents are read. The default is Affects.
func WithDirection(d Direction) Option {
	return func(s *Store) {
		if d != "" {
			s.direction = d
		}
	}
}

// WithLogger sets the logger for load events.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{direction: Affects, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Direction returns the store's document reading.
func (s *Store) Direction() Direction { return s.direction }

// Current returns the latest good graph, or nil before the first load.
func (s *Store) Current() *Graph {
	return s.current.Load()
}

// Load reads path and makes it the current graph.
func (s *Store) Load(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		lerr := &LoadError{Source: path, Kind: ErrUnreadable, Err: err}
		s.logger.Warn("dependency graph load failed", "file", path, "error", err)
		return nil, lerr
	}
	return s.LoadBytes(path, data)
}

// LoadBytes decodes data and makes it the current graph. name selects the
// format by extension and is recorded as the graph source.
func (s *Store) LoadBytes(name string, data []byte) (*Graph, error) {
	g, err := Parse(name, data, s.direction)
	if err != nil {
		s.logger.Warn("dependency graph load failed", "file", name, "error", err)
		return nil, err
	}
	g.generation = s.generation.Add(1)
	s.current.Store(g)
	s.logger.Info("dependency graph loaded",
		"file", name,
		"functions", g.Len(),
		"generation", g.generation,
		"direction", string(g.direction))
	return g, nil
}

// Parse decodes a document without touching any store. JSON is used for
// .json, YAML for .yaml and .yml, and anything else tries JSON then YAML.
// A null list is read as empty.
func Parse(name string, data []byte, dir Direction) (*Graph, error) {
	malformed := func(err error) error {
		return &LoadError{Source: name, Kind: ErrMalformed, Err: err}
	}

	var (
		raw any
		err error
	)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		raw, err = decodeJSON(data)
	case ".yaml", ".yml":
		raw, err = decodeYAML(data)
	default:
		raw, err = decodeJSON(data)
		if err != nil {
			var yerr error
			raw, yerr = decodeYAML(data)
			if yerr == nil {
				err = nil
			}
		}
	}
	if err != nil {
		return nil, malformed(err)
	}

	doc, err := toDocument(raw)
	if err != nil {
		return nil, malformed(err)
	}

	g := New(doc, dir)
	g.source = name
	return g, nil
}

func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after document")
	}
	return v, nil
}

func decodeYAML(data []byte) (any, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func toDocument(raw any) (map[string][]string, error) {
	entries := map[string]any{}
	switch m := raw.(type) {
	case map[string]any:
		entries = m
	case map[any]any:
		for k, v := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("key %v is not a string", k)
			}
			entries[ks] = v
		}
	default:
		return nil, fmt.Errorf("top level is %s, want an object", describe(raw))
	}

	doc := make(map[string][]string, len(entries))
	for k, v := range entries {
		if k == "" {
			return nil, errors.New("empty function name")
		}
		if v == nil {
			doc[k] = []string{}
			continue
		}
		list, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("%q: value is %s, want a list", k, describe(v))
		}
		names := make([]string, 0, len(list))
		for i, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%q[%d]: element is %s, want a string", k, i, describe(item))
			}
			names = append(names, s)
		}
		doc[k] = names
	}
	return doc, nil
}

func describe(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "a string"
	case bool:
		return "a boolean"
	case float64, int, int64, uint64:
		return "a number"
	case []any:
		return "a list"
	case map[string]any, map[any]any:
		return "an object"
	}
	return fmt.Sprintf("%T", v)
}
