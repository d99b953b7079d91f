// Package store implements the local persistent state of a client app: a
// file-backed key-value store with atomic read-modify-write operations and a
// typed change-event subscription. All session, cart, and enrollment state
// lives here; each app identity (learner, admin) owns one store file, so both
// apps share a single key schema.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"
)

// Op classifies a store change.
type Op string

const (
	// OpSet is emitted after a key is written.
	OpSet Op = "set"
	// OpDelete is emitted after a key is removed.
	OpDelete Op = "delete"
)

// Event describes one store mutation. External marks changes detected in the
// backing file that were made by another process.
type Event struct {
	Key      string
	Op       Op
	External bool
}

// Store is a mutex-guarded key-value store persisted as a single JSON file.
// Values are stored as raw JSON and decoded on read.
type Store struct {
	path string

	mu      sync.Mutex
	entries map[string]json.RawMessage
	version int64
	subs    map[int]func(Event)
	nextSub int
}

// fileFormat is the on-disk layout of the store.
type fileFormat struct {
	Entries map[string]json.RawMessage `json:"entries"`
	Version int64                      `json:"version"`
}

// Open loads the store backed by the given file, creating empty state when
// the file does not exist yet.
func Open(path string) (*Store, error) {
	s := &Store{
		path:    path,
		entries: make(map[string]json.RawMessage),
		subs:    make(map[int]func(Event)),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	var ff fileFormat
	if err := json.NewDecoder(f).Decode(&ff); err != nil {
		return fmt.Errorf("failed to decode store file %s: %w", s.path, err)
	}
	if ff.Entries != nil {
		s.entries = ff.Entries
	}
	s.version = ff.Version
	return nil
}

// save persists the current state. Callers must hold s.mu.
func (s *Store) save() error {
	f, err := os.Create(s.path)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(fileFormat{Entries: s.entries, Version: s.version})
}

// Get decodes the value under key into v. It returns false when the key is
// absent.
func (s *Store) Get(key string, v any) (bool, error) {
	s.mu.Lock()
	raw, ok := s.entries[key]
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("failed to decode key %q: %w", key, err)
	}
	return true, nil
}

// GetString reads a plain string value, returning "" when absent.
func (s *Store) GetString(key string) string {
	var v string
	ok, err := s.Get(key, &v)
	if !ok || err != nil {
		return ""
	}
	return v
}

// Has reports whether key exists.
func (s *Store) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[key]
	return ok
}

// Set encodes v under key, persists, and notifies subscribers.
func (s *Store) Set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode key %q: %w", key, err)
	}

	s.mu.Lock()
	s.entries[key] = raw
	s.version = time.Now().UnixNano()
	saveErr := s.save()
	s.mu.Unlock()

	if saveErr != nil {
		return saveErr
	}
	s.notify(Event{Key: key, Op: OpSet})
	return nil
}

// Delete removes key entirely, persists, and notifies subscribers. Deleting
// an absent key is a no-op.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	_, ok := s.entries[key]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	delete(s.entries, key)
	s.version = time.Now().UnixNano()
	saveErr := s.save()
	s.mu.Unlock()

	if saveErr != nil {
		return saveErr
	}
	s.notify(Event{Key: key, Op: OpDelete})
	return nil
}

// Update performs an atomic read-modify-write of the slice stored under key.
// fn receives the current value (zero value when absent) and returns the
// replacement; returning remove=true deletes the key instead.
func Update[T any](s *Store, key string, fn func(cur T) (next T, remove bool)) error {
	s.mu.Lock()
	var cur T
	if raw, ok := s.entries[key]; ok {
		if err := json.Unmarshal(raw, &cur); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("failed to decode key %q: %w", key, err)
		}
	}
	next, remove := fn(cur)

	op := OpSet
	if remove {
		delete(s.entries, key)
		op = OpDelete
	} else {
		raw, err := json.Marshal(next)
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("failed to encode key %q: %w", key, err)
		}
		s.entries[key] = raw
	}
	s.version = time.Now().UnixNano()
	saveErr := s.save()
	s.mu.Unlock()

	if saveErr != nil {
		return saveErr
	}
	s.notify(Event{Key: key, Op: op})
	return nil
}

// Subscribe registers fn for change events. The returned function removes
// the subscription. Events are delivered synchronously in registration order;
// last-writer-wins semantics apply across processes.
func (s *Store) Subscribe(fn func(Event)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store) notify(ev Event) {
	s.mu.Lock()
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids) // registration order
	fns := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.subs[id])
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
