package permission

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Role is the resolved authorization profile of a role name.
type Role struct {
	Name   string
	Mask   Mask64
	Scopes []string
}

// RoleManager resolves role names to masks and scopes.
type RoleManager struct {
	registry *Registry

	mu          sync.RWMutex
	roles       map[string]Role
	defaultRole string
	frozen      bool
}

// NewRoleManager returns a manager over registry.
func NewRoleManager(registry *Registry) *RoleManager {
	return &RoleManager{
		registry: registry,
		roles:    make(map[string]Role),
	}
}

// Registry returns the permission registry backing the manager.
func (rm *RoleManager) Registry() *Registry {
	return rm.registry
}

// RegisterRole defines roleName with the given permissions and scopes.
func (rm *RoleManager) RegisterRole(roleName string, permissions, scopes []string) error {
	key := normalizeRole(roleName)
	if key == "" {
		return errors.New("role name empty")
	}

	mask, err := rm.registry.Mask(permissions...)
	if err != nil {
		return err
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.frozen {
		return errors.New("role manager frozen")
	}
	if _, exists := rm.roles[key]; exists {
		return fmt.Errorf("role %q already registered", key)
	}
	rm.roles[key] = Role{
		Name:   key,
		Mask:   mask,
		Scopes: append([]string(nil), scopes...),
	}
	return nil
}

// SetDefault names the role unknown role names resolve to.
func (rm *RoleManager) SetDefault(roleName string) error {
	key := normalizeRole(roleName)

	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.frozen {
		return errors.New("role manager frozen")
	}
	if _, ok := rm.roles[key]; !ok {
		return fmt.Errorf("role %q not registered", key)
	}
	rm.defaultRole = key
	return nil
}

// Resolve returns the role for roleName, falling back to the default role.
// The returned Scopes slice is a copy.
func (rm *RoleManager) Resolve(roleName string) (Role, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	role, ok := rm.roles[normalizeRole(roleName)]
	if !ok {
		role, ok = rm.roles[rm.defaultRole]
	}
	if !ok {
		return Role{}, false
	}
	role.Scopes = append([]string(nil), role.Scopes...)
	return role, true
}

// Scopes returns the scopes granted to roleName.
func (rm *RoleManager) Scopes(roleName string) []string {
	role, _ := rm.Resolve(roleName)
	return role.Scopes
}

// Permissions returns the permission names granted to roleName.
func (rm *RoleManager) Permissions(roleName string) []string {
	role, ok := rm.Resolve(roleName)
	if !ok {
		return nil
	}
	return rm.registry.Names(role.Mask)
}

// HasPermission reports whether roleName grants permission.
func (rm *RoleManager) HasPermission(roleName, permission string) bool {
	bit, ok := rm.registry.Bit(permission)
	if !ok {
		return false
	}
	role, ok := rm.Resolve(roleName)
	return ok && role.Mask.Has(bit)
}

// Freeze prevents further changes.
func (rm *RoleManager) Freeze() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.frozen = true
}

// Count returns the number of registered roles.
func (rm *RoleManager) Count() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.roles)
}

func normalizeRole(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
