package directory

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// Memory is an in-process principal directory.
type Memory struct {
	mu     sync.RWMutex
	byID   map[string]Principal
	nextID int64
	now    func() time.Time
}

// NewMemory returns an empty directory.
func NewMemory() *Memory {
	return &Memory{
		byID: make(map[string]Principal),
		now:  time.Now,
	}
}

// Add stores p. An empty ID is assigned the next numeric id. Name and
// Number must be unique across principals.
func (m *Memory) Add(p Principal) (Principal, error) {
	if p.Name == "" && p.Number == "" {
		return Principal{}, errors.New("principal needs a name or number")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.byID {
		if (p.Name != "" && (existing.Name == p.Name || existing.Number == p.Name)) ||
			(p.Number != "" && (existing.Number == p.Number || existing.Name == p.Number)) {
			return Principal{}, fmt.Errorf("identifier already taken by principal %s", existing.ID)
		}
	}

	if p.ID == "" {
		m.nextID++
		p.ID = strconv.FormatInt(m.nextID, 10)
	} else if n, err := strconv.ParseInt(p.ID, 10, 64); err == nil && n > m.nextID {
		m.nextID = n
	}
	if _, exists := m.byID[p.ID]; exists {
		return Principal{}, fmt.Errorf("principal %s already exists", p.ID)
	}

	now := m.now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}
	m.byID[p.ID] = p
	return p, nil
}

// FindByIdentifier matches identifier against Name, then Number.
func (m *Memory) FindByIdentifier(_ context.Context, identifier string) (Principal, error) {
	if identifier == "" {
		return Principal{}, ErrNotFound
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var byNumber *Principal
	for _, p := range m.byID {
		if p.Name == identifier {
			return p, nil
		}
		if p.Number == identifier && byNumber == nil {
			match := p
			byNumber = &match
		}
	}
	if byNumber != nil {
		return *byNumber, nil
	}
	return Principal{}, ErrNotFound
}

// FindByID returns the principal with the given id.
func (m *Memory) FindByID(_ context.Context, id string) (Principal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.byID[id]
	if !ok {
		return Principal{}, ErrNotFound
	}
	return p, nil
}

// UpdatePasswordHash replaces the stored hash of id.
func (m *Memory) UpdatePasswordHash(_ context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	p.PasswordHash = hash
	p.UpdatedAt = m.now()
	m.byID[id] = p
	return nil
}

// SetActive toggles the active flag of id.
func (m *Memory) SetActive(id string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	p.Active = active
	p.UpdatedAt = m.now()
	m.byID[id] = p
	return nil
}

// SetRole changes the role of id.
func (m *Memory) SetRole(id, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	p.Role = role
	p.UpdatedAt = m.now()
	m.byID[id] = p
	return nil
}

// Delete marks id as deleted. The record is kept.
func (m *Memory) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	p.Deleted = true
	p.UpdatedAt = m.now()
	m.byID[id] = p
	return nil
}

// Len returns the number of stored principals.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}
