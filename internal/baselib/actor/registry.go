package actor

import (
	"context"
	"fmt"
)

// ExecutionHandle is the substrate-agnostic handle returned by starting an
// actor, usable for joining or terminating it later. This implementation
// always realizes an actor as a dedicated goroutine, but the handle is
// defined narrowly enough that a cooperative-scheduler or process-based
// substrate could implement it too.
type ExecutionHandle interface {
	// Stop signals the actor to terminate. Non-blocking.
	Stop()

	// Join blocks until the actor's process loop has exited or ctx is
	// done, whichever comes first. Returns ctx.Err() on timeout.
	Join(ctx context.Context) error
}

// RegistryEntry is one child record in an actor's registry. ParentChain is
// set once at construction and must never be mutated afterward. An owning
// actor tracks only its direct children here — further descendants live in
// the child's own registry.
type RegistryEntry struct {
	Address     Address
	Status      Status
	Mailbox     Mailbox
	Handle      ExecutionHandle
	ParentChain []string
}

// Registry is the per-actor table of children. It is owned exclusively by
// one actor and is never shared across actors, so unlike a system-wide
// receptionist, no mutex is required: all reads and writes happen on the
// owning actor's single receive-loop goroutine.
type Registry struct {
	entries map[string]*RegistryEntry
	order   []string
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*RegistryEntry)}
}

// Add inserts a new entry. Adding a duplicate id is an error
// (ErrDuplicateAddress).
func (r *Registry) Add(entry RegistryEntry) error {
	if _, exists := r.entries[entry.Address.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateAddress, entry.Address.ID)
	}

	cp := entry
	r.entries[entry.Address.ID] = &cp
	r.order = append(r.order, entry.Address.ID)

	return nil
}

// Get returns the entry for id, if any.
func (r *Registry) Get(id string) (RegistryEntry, bool) {
	e, ok := r.entries[id]
	if !ok {
		return RegistryEntry{}, false
	}
	return *e, true
}

// Has reports whether id has an entry.
func (r *Registry) Has(id string) bool {
	_, ok := r.entries[id]
	return ok
}

// Remove drops id's entry, preserving the relative order of the remaining
// ids.
func (r *Registry) Remove(id string) {
	if _, ok := r.entries[id]; !ok {
		return
	}

	delete(r.entries, id)

	for i, cur := range r.order {
		if cur == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// SetStatus updates the status recorded for id. Returns ErrUnknownActor if
// id has no entry.
func (r *Registry) SetStatus(id string, status Status) error {
	e, ok := r.entries[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownActor, id)
	}
	e.Status = status
	return nil
}

// Keys returns all registered ids in insertion order.
func (r *Registry) Keys() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of entries currently registered.
func (r *Registry) Len() int {
	return len(r.entries)
}
