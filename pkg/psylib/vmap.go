package psylib

import "sync"

// VMap is a mutex-guarded generic map. The resource pipeline keys its
// records by stable resource names, so the map itself stays safe under
// concurrent loader callbacks while field mutation is serialized by the
// manager.
type VMap[kT comparable, vT any] struct {
	kv map[kT]vT
	mu sync.RWMutex
}

// NewVMap returns an initialized VMap.
func NewVMap[kT comparable, vT any]() VMap[kT, vT] {
	return VMap[kT, vT]{kv: make(map[kT]vT)}
}

// Set stores a value for the given key.
func (vm *VMap[kT, vT]) Set(key kT, val vT) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.kv[key] = val
}

// Get retrieves the value for the given key, reporting presence.
func (vm *VMap[kT, vT]) Get(key kT) (val vT, ok bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	val, ok = vm.kv[key]
	return
}

// Delete removes a key, reporting whether it was present.
func (vm *VMap[kT, vT]) Delete(key kT) bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	_, ok := vm.kv[key]
	delete(vm.kv, key)
	return ok
}

// Len returns the number of stored entries.
func (vm *VMap[kT, vT]) Len() int {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return len(vm.kv)
}

// Keys returns a snapshot of all keys.
func (vm *VMap[kT, vT]) Keys() []kT {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	keys := make([]kT, 0, len(vm.kv))
	for k := range vm.kv {
		keys = append(keys, k)
	}
	return keys
}

// Range calls f for each entry until f returns false. f must not
// modify the map.
func (vm *VMap[kT, vT]) Range(f func(key kT, val vT) bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	for k, v := range vm.kv {
		if !f(k, v) {
			return
		}
	}
}
