package store

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"go.uber.org/zap"
)

// StartWatch polls the backing file for writes made by another process and
// re-emits them as external change events. This is how one app instance sees
// a logout performed by another instance sharing the same store file. The
// watcher stops when ctx is cancelled.
func (s *Store) StartWatch(ctx context.Context, interval time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				events, err := s.reloadDiff()
				if err != nil {
					log.Error("failed to reload store file", zap.Error(err))
					continue
				}
				for _, ev := range events {
					s.notify(ev)
				}
			}
		}
	}()
}

// reloadDiff reloads the file when another process advanced its version and
// returns the per-key differences against in-memory state.
func (s *Store) reloadDiff() ([]Event, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			// file removed externally: every key is gone
			return s.replaceAll(nil, 0), nil
		}
		return nil, err
	}
	defer f.Close()

	var ff fileFormat
	if err := json.NewDecoder(f).Decode(&ff); err != nil {
		return nil, err
	}

	s.mu.Lock()
	same := ff.Version == s.version
	s.mu.Unlock()
	if same {
		return nil, nil
	}
	return s.replaceAll(ff.Entries, ff.Version), nil
}

// replaceAll swaps in externally loaded state and computes change events.
func (s *Store) replaceAll(entries map[string]json.RawMessage, version int64) []Event {
	if entries == nil {
		entries = make(map[string]json.RawMessage)
	}

	s.mu.Lock()
	var events []Event
	for key, old := range s.entries {
		cur, ok := entries[key]
		if !ok {
			events = append(events, Event{Key: key, Op: OpDelete, External: true})
		} else if string(cur) != string(old) {
			events = append(events, Event{Key: key, Op: OpSet, External: true})
		}
	}
	for key := range entries {
		if _, ok := s.entries[key]; !ok {
			events = append(events, Event{Key: key, Op: OpSet, External: true})
		}
	}
	s.entries = entries
	s.version = version
	s.mu.Unlock()

	return events
}
