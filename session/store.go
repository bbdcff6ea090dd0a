package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Store is the in-memory [Backend]. The zero value is not usable; build one
// with [NewStore]. A Store is safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	records map[string]Record
	index   map[string]indexEntry
	now     func() time.Time
}

// StoreOption customizes a [Store].
type StoreOption func(*Store)

// WithClock overrides the time source. Tests use it to move expiry
// boundaries without sleeping.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore returns an empty in-memory store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		records: make(map[string]Record),
		index:   make(map[string]indexEntry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put registers token as the only live refresh token of principalID. A ttl
// of zero or less produces a record that is already expired.
//
// Put never returns an error; the signature matches [Backend].
func (s *Store) Put(_ context.Context, principalID, token string, ttl time.Duration) error {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.records[principalID]; ok {
		delete(s.index, prev.Token)
		delete(s.records, principalID)
	}
	// Tokens are unique across principals; an index entry already holding
	// this token belongs to a record that must not survive.
	if entry, ok := s.index[token]; ok {
		if owner, ok := s.records[entry.principalID]; ok && owner.Token == token {
			delete(s.records, entry.principalID)
		}
		delete(s.index, token)
	}

	rec := Record{
		PrincipalID: principalID,
		Token:       token,
		IssuedAt:    now,
		ExpiresAt:   now.Add(ttl),
	}
	s.records[principalID] = rec
	s.index[token] = indexEntry{principalID: principalID, expiresAt: rec.ExpiresAt}
	return nil
}

// ResolvePrincipal returns the principal owning token. Unknown, expired,
// and inconsistent entries all resolve to ("", false); expired and
// inconsistent entries are removed as a side effect.
func (s *Store) ResolvePrincipal(_ context.Context, token string) (string, bool, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.index[token]
	if !ok {
		return "", false, nil
	}

	rec, hasRecord := s.records[entry.principalID]
	if !hasRecord || rec.Token != token {
		delete(s.index, token)
		return "", false, nil
	}

	if !now.Before(entry.expiresAt) {
		delete(s.index, token)
		delete(s.records, entry.principalID)
		return "", false, nil
	}

	return entry.principalID, true, nil
}

// InvalidateByPrincipal drops the principal's session. It reports false
// when there was nothing to remove, so repeated calls are harmless.
func (s *Store) InvalidateByPrincipal(_ context.Context, principalID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[principalID]
	if !ok {
		return false, nil
	}
	delete(s.records, principalID)
	if entry, ok := s.index[rec.Token]; ok && entry.principalID == principalID {
		delete(s.index, rec.Token)
	}
	return true, nil
}

// Sweep removes every expired or orphaned entry from both maps in a single
// pass under the lock. The removal list is built first and applied
// afterwards. An expired record and its index entry count as one removed
// session; an orphan on either side counts as one.
func (s *Store) Sweep(_ context.Context) (int, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var staleTokens []string
	for token, entry := range s.index {
		rec, ok := s.records[entry.principalID]
		if !now.Before(entry.expiresAt) || !ok || rec.Token != token {
			staleTokens = append(staleTokens, token)
		}
	}

	removed := 0
	for _, token := range staleTokens {
		entry := s.index[token]
		delete(s.index, token)
		if rec, ok := s.records[entry.principalID]; ok && rec.Token == token {
			delete(s.records, entry.principalID)
		}
		removed++
	}

	var staleRecords []string
	for principalID, rec := range s.records {
		entry, indexed := s.index[rec.Token]
		if rec.Expired(now) || !indexed || entry.principalID != principalID {
			staleRecords = append(staleRecords, principalID)
		}
	}
	for _, principalID := range staleRecords {
		rec := s.records[principalID]
		delete(s.records, principalID)
		if entry, ok := s.index[rec.Token]; ok && entry.principalID == principalID {
			delete(s.index, rec.Token)
		}
		removed++
	}

	return removed, nil
}

// Len returns the number of live records, expired or not.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Lookup returns the stored record for principalID, if any, without
// applying expiry.
func (s *Store) Lookup(_ context.Context, principalID string) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[principalID]
	return rec, ok, nil
}

// Ping always succeeds for the in-memory store.
func (s *Store) Ping(context.Context) (time.Duration, error) {
	return 0, nil
}

// Snapshot returns a copy of all records ordered by principal id.
func (s *Store) Snapshot() []Record {
	s.mu.Lock()
	out := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].PrincipalID < out[j].PrincipalID })
	return out
}

// CheckMirror verifies that the record map and the token index describe the
// same set of sessions with matching principals and expiry times.
func (s *Store) CheckMirror() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.records) != len(s.index) {
		return fmt.Errorf("session: %d records but %d index entries", len(s.records), len(s.index))
	}
	for principalID, rec := range s.records {
		entry, ok := s.index[rec.Token]
		if !ok {
			return fmt.Errorf("session: record for %q has no index entry", principalID)
		}
		if entry.principalID != principalID {
			return fmt.Errorf("session: index for %q points at %q", principalID, entry.principalID)
		}
		if !entry.expiresAt.Equal(rec.ExpiresAt) {
			return fmt.Errorf("session: expiry mismatch for %q", principalID)
		}
	}
	return nil
}

var _ Backend = (*Store)(nil)
