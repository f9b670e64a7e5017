package blobstore

import "sync"

// The terraform-plugin-testing framework re-creates the provider between
// test steps, so memory stores live in a process-wide registry.
var (
	memoryRegistryMu sync.Mutex
	memoryRegistry   = make(map[string]*MemoryStore)
)

// GetOrCreateMemoryStore returns the registered MemoryStore with the given
// name, creating it on first use.
func GetOrCreateMemoryStore(name string) *MemoryStore {
	memoryRegistryMu.Lock()
	defer memoryRegistryMu.Unlock()

	if s, ok := memoryRegistry[name]; ok {
		return s
	}
	s := NewMemoryStore(name)
	memoryRegistry[name] = s
	return s
}

// ResetMemoryStores clears the registry. Call this in test cleanup.
func ResetMemoryStores() {
	memoryRegistryMu.Lock()
	defer memoryRegistryMu.Unlock()

	memoryRegistry = make(map[string]*MemoryStore)
}
