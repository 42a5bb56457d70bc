package permission

import (
	"errors"
	"fmt"
	"sync"
)

// RoleManager composes a Mask64 per role from a Registry's permission names.
// Configure it during initialization, then Freeze it.
type RoleManager struct {
	registry *Registry

	mu     sync.RWMutex
	roles  map[string]Mask64
	frozen bool
}

func NewRoleManager(registry *Registry) *RoleManager {
	return &RoleManager{
		registry: registry,
		roles:    make(map[string]Mask64),
	}
}

// RegisterRole grants permissionNames to roleName.
func (rm *RoleManager) RegisterRole(roleName string, permissionNames []string) error {
	var mask Mask64
	for _, perm := range permissionNames {
		bit, ok := rm.registry.Bit(perm)
		if !ok {
			return fmt.Errorf("permission not registered: %s", perm)
		}
		mask.Set(bit)
	}
	return rm.put(roleName, mask)
}

// RegisterRoot grants roleName the root bit, and with it every permission.
func (rm *RoleManager) RegisterRoot(roleName string) error {
	bit, ok := rm.registry.RootBit()
	if !ok {
		return errors.New("registry has no root bit")
	}
	var mask Mask64
	mask.Set(bit)
	return rm.put(roleName, mask)
}

func (rm *RoleManager) put(roleName string, mask Mask64) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.frozen {
		return errors.New("role manager frozen")
	}
	if roleName == "" {
		return errors.New("role name empty")
	}
	if _, exists := rm.roles[roleName]; exists {
		return errors.New("role already registered")
	}

	rm.roles[roleName] = mask
	return nil
}

// GetMask returns the mask registered for roleName.
func (rm *RoleManager) GetMask(roleName string) (Mask64, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	mask, ok := rm.roles[roleName]
	return mask, ok
}

// Allows reports whether roleName holds perm. Unknown roles and permissions are
// denied.
func (rm *RoleManager) Allows(roleName, perm string) bool {
	mask, ok := rm.GetMask(roleName)
	if !ok {
		return false
	}
	bit, ok := rm.registry.Bit(perm)
	if !ok {
		return false
	}
	_, rootReserved := rm.registry.RootBit()
	return mask.Has(bit, rootReserved)
}

func (rm *RoleManager) Freeze() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.frozen = true
}
