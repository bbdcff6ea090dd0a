package permission

import (
	"errors"
	"fmt"
	"sync"
)

const maxBits = 64

// Registry maps permission names to bit positions within a [Mask64].
type Registry struct {
	mu        sync.RWMutex
	nameToBit map[string]int
	bitToName [maxBits]string
	frozen    bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{nameToBit: make(map[string]int)}
}

// Register assigns the next free bit to name. It fails after [Registry.Freeze].
func (r *Registry) Register(name string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return -1, errors.New("registry frozen")
	}
	if name == "" {
		return -1, errors.New("permission name cannot be empty")
	}
	if _, exists := r.nameToBit[name]; exists {
		return -1, fmt.Errorf("permission %q already registered", name)
	}

	next := len(r.nameToBit)
	if next >= maxBits {
		return -1, errors.New("permission limit exceeded")
	}
	r.nameToBit[name] = next
	r.bitToName[next] = name
	return next, nil
}

// Bit returns the bit index for name.
func (r *Registry) Bit(name string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bit, ok := r.nameToBit[name]
	return bit, ok
}

// Name returns the permission registered at bit.
func (r *Registry) Name(bit int) (string, bool) {
	if bit < 0 || bit >= maxBits {
		return "", false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	name := r.bitToName[bit]
	return name, name != ""
}

// Mask builds a mask from permission names.
func (r *Registry) Mask(names ...string) (Mask64, error) {
	var m Mask64
	for _, name := range names {
		bit, ok := r.Bit(name)
		if !ok {
			return 0, fmt.Errorf("permission not registered: %s", name)
		}
		m.Set(bit)
	}
	return m, nil
}

// Names lists the permissions set in m in bit order.
func (r *Registry) Names(m Mask64) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.nameToBit))
	for bit := 0; bit < maxBits; bit++ {
		if m.Has(bit) && r.bitToName[bit] != "" {
			out = append(out, r.bitToName[bit])
		}
	}
	return out
}

// Freeze prevents further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Count returns the number of registered permissions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nameToBit)
}
