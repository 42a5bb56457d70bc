package permission

import (
	"errors"
	"sync"
)

// MaxBits is the number of permission bits a Mask64 holds.
const MaxBits = 64

var (
	ErrRegistryFrozen = errors.New("registry frozen")
	ErrDuplicate      = errors.New("permission already registered")
	ErrLimitExceeded  = errors.New("permission limit exceeded")
)

// Registry maps permission names to bit positions within a Mask64.
type Registry struct {
	rootReserved bool
	rootBit      int

	mu        sync.RWMutex
	nameToBit map[string]int
	bitToName map[int]string
	order     []string
	frozen    bool
}

// NewRegistry creates an empty Registry. rootReserved keeps the highest bit for a
// root permission that implies every other one.
func NewRegistry(rootReserved bool) *Registry {
	r := &Registry{
		rootReserved: rootReserved,
		rootBit:      -1,
		nameToBit:    make(map[string]int),
		bitToName:    make(map[int]string),
	}
	if rootReserved {
		r.rootBit = MaxBits - 1
	}
	return r
}

// Register assigns the next available bit to name.
func (r *Registry) Register(name string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return -1, ErrRegistryFrozen
	}
	if name == "" {
		return -1, errors.New("permission name cannot be empty")
	}
	if _, exists := r.nameToBit[name]; exists {
		return -1, ErrDuplicate
	}

	nextBit := len(r.nameToBit)
	limit := MaxBits
	if r.rootReserved {
		limit = r.rootBit
	}
	if nextBit >= limit {
		return -1, ErrLimitExceeded
	}

	r.nameToBit[name] = nextBit
	r.bitToName[nextBit] = name
	r.order = append(r.order, name)

	return nextBit, nil
}

// Bit returns the bit index for the named permission, or false if not registered.
func (r *Registry) Bit(name string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bit, ok := r.nameToBit[name]
	return bit, ok
}

// Name returns the permission name for the given bit index, or false if unassigned.
func (r *Registry) Name(bit int) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.bitToName[bit]
	return name, ok
}

// Names returns the registered permissions in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Freeze prevents further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// RootBit returns the reserved root bit, or false if none is reserved.
func (r *Registry) RootBit() (int, bool) {
	if !r.rootReserved {
		return -1, false
	}
	return r.rootBit, true
}
