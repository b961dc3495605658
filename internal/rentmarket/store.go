// Package rentmarket resolves €/m² long-term rental prices for Spanish
// municipalities from idealista's public price reports, with a durable JSON
// store in front and a static per-province dataset as last resort.
package rentmarket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// storeTTL is how long a fetched city price stays fresh. Report pages change
// quarterly at most; a month is comfortably inside that.
const storeTTL = 30 * 24 * time.Hour

const storeVersion = 1

// Entry is one resolved city price.
type Entry struct {
	Key           string    `json:"key"`
	RegionCode    int       `json:"codauto"`
	ProvinceCode  int       `json:"cpro"`
	City          string    `json:"city"`
	CommunitySlug string    `json:"communitySlug"`
	ProvinceSlug  string    `json:"provinceSlug"`
	CitySlug      string    `json:"citySlug"`
	RentPerSqm    float64   `json:"rentEurPerSqm"`
	FetchedAt     time.Time `json:"fetchedAt"`
	SourceURL     string    `json:"sourceUrl"`
}

type storeFile struct {
	Version int     `json:"version"`
	Entries []Entry `json:"entries"`
}

// Store is the durable price cache. Reads are served from memory; every Put
// schedules an asynchronous rewrite of the backing file. Writes are
// serialized through a single goroutine and done atomically (temp file then
// rename), so a crash never leaves a torn file behind.
type Store struct {
	path string
	ttl  time.Duration
	now  func() time.Time

	mu      sync.Mutex
	entries map[string]Entry

	dirty chan struct{}
	quit  chan struct{}
	done  chan struct{}
}

// Key builds the store key for a municipality.
func Key(regionCode, provinceCode int, cityNorm string) string {
	return fmt.Sprintf("%d:%d:%s", regionCode, provinceCode, cityNorm)
}

// OpenStore loads the store at path, creating parent directories as needed.
// A missing file is an empty store; a corrupt file is logged and discarded.
func OpenStore(path string, ttl time.Duration) (*Store, error) {
	if ttl <= 0 {
		ttl = storeTTL
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	s := &Store{
		path:    path,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]Entry),
		dirty:   make(chan struct{}, 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// First run.
	case err != nil:
		return nil, fmt.Errorf("reading store: %w", err)
	default:
		var f storeFile
		if err := json.Unmarshal(data, &f); err != nil {
			slog.Warn("rent market store: corrupt file, starting empty", "path", path, "error", err)
		} else {
			for _, e := range f.Entries {
				s.entries[e.Key] = e
			}
			slog.Info("rent market store: loaded", "path", path, "entries", len(s.entries))
		}
	}

	go s.writeLoop()
	return s, nil
}

// Get returns the entry for key if present and fresh.
func (s *Store) Get(key string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return Entry{}, false
	}
	if s.now().Sub(e.FetchedAt) > s.ttl {
		return Entry{}, false
	}
	return e, true
}

// Put stores an entry and schedules a persist. Stale entries stay in the
// file until overwritten so that a later TTL bump can revive them.
func (s *Store) Put(e Entry) {
	s.mu.Lock()
	s.entries[e.Key] = e
	s.mu.Unlock()

	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

// Len reports the number of stored entries, fresh or stale.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close flushes pending writes and stops the writer. Safe to call once.
func (s *Store) Close() error {
	close(s.quit)
	<-s.done
	return s.persist()
}

func (s *Store) writeLoop() {
	defer close(s.done)
	for {
		select {
		case <-s.dirty:
			if err := s.persist(); err != nil {
				slog.Warn("rent market store: persist failed", "path", s.path, "error", err)
			}
		case <-s.quit:
			return
		}
	}
}

// persist writes the whole store atomically. Entries are sorted by key so
// the file diffs cleanly across runs.
func (s *Store) persist() error {
	s.mu.Lock()
	f := storeFile{Version: storeVersion, Entries: make([]Entry, 0, len(s.entries))}
	for _, e := range s.entries {
		f.Entries = append(f.Entries, e)
	}
	s.mu.Unlock()

	sort.Slice(f.Entries, func(i, j int) bool { return f.Entries[i].Key < f.Entries[j].Key })

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding store: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing temp store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing store: %w", err)
	}
	return nil
}
