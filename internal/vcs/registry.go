package vcs

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Backend bundles the constructors of one VCS implementation.
// Implementations register themselves with the registry using Register().
type Backend struct {
	// Open attaches to an existing repository rooted at root.
	Open func(root string) (VCS, error)

	// Init creates a repository rooted at root whose first branch is
	// branch.
	Init func(ctx context.Context, root, branch string) (VCS, error)
}

// registry maps VCS types to their backends
var (
	registry      = make(map[Type]Backend)
	registryMutex sync.RWMutex
)

// Register registers a VCS backend.
// This is called from init() functions in implementation packages (git, jj).
//
// Example:
//
//	func init() {
//	    vcs.Register(vcs.TypeGit, vcs.Backend{Open: open, Init: initRepo})
//	}
func Register(t Type, b Backend) {
	registryMutex.Lock()
	defer registryMutex.Unlock()

	if b.Open == nil || b.Init == nil {
		panic(fmt.Sprintf("vcs: Register backend is incomplete for type %s", t))
	}

	if _, exists := registry[t]; exists {
		panic(fmt.Sprintf("vcs: Register called twice for type %s", t))
	}

	registry[t] = b
}

// getBackend retrieves the backend for a VCS type.
func getBackend(t Type) (Backend, error) {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	b, ok := registry[t]
	if !ok {
		return Backend{}, fmt.Errorf("%w: %s", ErrUnknownType, t)
	}
	return b, nil
}

// Open attaches to the repository of type t rooted at root.
func Open(t Type, root string) (VCS, error) {
	b, err := getBackend(t)
	if err != nil {
		return nil, err
	}
	return b.Open(root)
}

// Init creates a repository of type t rooted at root.
func Init(ctx context.Context, t Type, root, branch string) (VCS, error) {
	b, err := getBackend(t)
	if err != nil {
		return nil, err
	}
	return b.Init(ctx, root, BranchOrDefault(branch))
}

// IsRegistered returns true if a backend is registered for the given type.
func IsRegistered(t Type) bool {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	_, exists := registry[t]
	return exists
}

// RegisteredTypes returns all registered VCS types in sorted order.
func RegisteredTypes() []Type {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	types := make([]Type, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
