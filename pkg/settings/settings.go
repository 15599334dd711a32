// Package settings holds deployment configuration values. A Store is a flat
// key/value map layered over an optional parent, so host level values shadow
// global ones. Values may be static (loaded from config) or lazy, computed on
// first use and cached for the lifetime of the store.
package settings

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/knadh/koanf/v2"

	"wpdeploy/pkg/log"
)

// ErrMissingKey is returned when a required key, or a key referenced by a
// template, is not defined anywhere in the store chain.
var ErrMissingKey = errors.New("config option does not exist")

// maxParseDepth bounds nested template expansion.
const maxParseDepth = 16

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_./\-]+)\s*\}\}`)

// Resolver computes a lazy value.
type Resolver func() (any, error)

type lazy struct {
	fn    Resolver
	done  bool
	value any
}

// Store is a layered key/value configuration store.
type Store struct {
	mu     sync.Mutex
	k      *koanf.Koanf
	lazy   map[string]*lazy
	parent *Store
}

// New creates an empty store on top of parent. parent may be nil.
func New(parent *Store) *Store {
	return FromKoanf(nil, parent)
}

// FromKoanf wraps an already loaded koanf instance.
func FromKoanf(k *koanf.Koanf, parent *Store) *Store {
	if k == nil {
		k = koanf.New(".")
	}
	return &Store{k: k, lazy: make(map[string]*lazy), parent: parent}
}

// Parent returns the store this one falls back to.
func (s *Store) Parent() *Store {
	return s.parent
}

// Set stores a static value, replacing any lazy value under the same key.
func (s *Store) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lazy, key)
	if err := s.k.Set(key, value); err != nil {
		log.L().Warn("Failed to set config option", "key", key, "error", err)
	}
}

// SetFunc stores a lazy value. fn runs at most once successfully.
func (s *Store) SetFunc(key string, fn Resolver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.k.Delete(key)
	s.lazy[key] = &lazy{fn: fn}
}

// Add appends values to a list setting.
func (s *Store) Add(key string, values ...string) {
	current := s.Strings(key)
	s.Set(key, append(current, values...))
}

// HasOwn reports whether key is defined on this store, ignoring parents.
func (s *Store) HasOwn(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lazy[key]; ok {
		return true
	}
	return s.k.Exists(key)
}

// Has reports whether key is defined on this store or any parent.
func (s *Store) Has(key string) bool {
	for cur := s; cur != nil; cur = cur.parent {
		if cur.HasOwn(key) {
			return true
		}
	}
	return false
}

// Lookup returns the value of key, evaluating lazy values.
func (s *Store) Lookup(key string) (any, error) {
	for cur := s; cur != nil; cur = cur.parent {
		v, ok, err := cur.own(key)
		if err != nil {
			return nil, err
		}
		if ok {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrMissingKey, key)
}

func (s *Store) own(key string) (any, bool, error) {
	s.mu.Lock()
	l, isLazy := s.lazy[key]
	if !isLazy {
		defer s.mu.Unlock()
		if !s.k.Exists(key) {
			return nil, false, nil
		}
		return s.k.Get(key), true, nil
	}
	if l.done {
		s.mu.Unlock()
		return l.value, true, nil
	}
	s.mu.Unlock()

	// fn may read other keys from this store, so it runs unlocked.
	v, err := l.fn()
	if err != nil {
		return nil, false, fmt.Errorf("resolve %q: %w", key, err)
	}
	s.mu.Lock()
	l.value, l.done = v, true
	s.mu.Unlock()
	return v, true, nil
}

func (s *Store) lookupOr(key string) (any, bool) {
	v, err := s.Lookup(key)
	if err != nil {
		if !errors.Is(err, ErrMissingKey) {
			log.L().Warn("Config option could not be resolved", "key", key, "error", err)
		}
		return nil, false
	}
	return v, true
}

// String returns key as a string, or def when it is not defined.
func (s *Store) String(key, def string) string {
	v, ok := s.lookupOr(key)
	if !ok || v == nil {
		return def
	}
	return toString(v)
}

// Bool returns key as a bool, or def when it is not defined or not boolean.
func (s *Store) Bool(key string, def bool) bool {
	v, ok := s.lookupOr(key)
	if !ok {
		return def
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		if err != nil {
			return def
		}
		return parsed
	default:
		return def
	}
}

// Int returns key as an int, or def when it is not defined or not numeric.
func (s *Store) Int(key string, def int) int {
	v, ok := s.lookupOr(key)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return def
		}
		return parsed
	default:
		return def
	}
}

// Strings returns key as a list. A single non-empty string becomes a one
// element list; an undefined key yields nil.
func (s *Store) Strings(key string) []string {
	v, ok := s.lookupOr(key)
	if !ok || v == nil {
		return nil
	}
	switch list := v.(type) {
	case []string:
		return append([]string(nil), list...)
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			out = append(out, toString(item))
		}
		return out
	case string:
		if list == "" {
			return nil
		}
		return []string{list}
	default:
		return []string{toString(v)}
	}
}

// Require checks that every key is defined on this store itself.
func (s *Store) Require(keys ...string) error {
	for _, key := range keys {
		if !s.HasOwn(key) {
			return fmt.Errorf("%w: %s is not defined", ErrMissingKey, key)
		}
	}
	return nil
}

// Parse expands {{key}} placeholders in tmpl. Expanded values are parsed again
// so a setting may reference other settings.
func (s *Store) Parse(tmpl string) (string, error) {
	out := tmpl
	for depth := 0; depth < maxParseDepth; depth++ {
		if !placeholder.MatchString(out) {
			return out, nil
		}
		var firstErr error
		out = placeholder.ReplaceAllStringFunc(out, func(m string) string {
			key := placeholder.FindStringSubmatch(m)[1]
			v, err := s.Lookup(key)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return m
			}
			return toString(v)
		})
		if firstErr != nil {
			return "", firstErr
		}
	}
	return "", fmt.Errorf("template %q nests deeper than %d levels", tmpl, maxParseDepth)
}

// MustParse is Parse for templates built from trusted keys; failures are
// logged and the raw template is returned.
func (s *Store) MustParse(tmpl string) string {
	out, err := s.Parse(tmpl)
	if err != nil {
		log.L().Warn("Template could not be parsed", "template", tmpl, "error", err)
		return tmpl
	}
	return out
}

// Keys returns the keys defined on this store and its parents, without
// evaluating lazy values.
func (s *Store) Keys() []string {
	seen := make(map[string]bool)
	var keys []string
	for cur := s; cur != nil; cur = cur.parent {
		cur.mu.Lock()
		for _, k := range cur.k.Keys() {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
		for k := range cur.lazy {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
		cur.mu.Unlock()
	}
	return keys
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case []string:
		return strings.Join(t, " ")
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, toString(item))
		}
		return strings.Join(parts, " ")
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}
