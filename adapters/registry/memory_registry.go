package registry

import (
	"sync"

	"github.com/stevehere/ethdrop-relay/core"
	"github.com/stevehere/ethdrop-relay/ports"
)

// MemoryRegistry is an in-memory implementation of the Registry interface.
// Sessions and the address index are guarded by one mutex so every mutation
// that touches both is a single critical section.
type MemoryRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*core.Session
	byAddr   map[string]string
}

// NewMemoryRegistry creates a new in-memory registry
func NewMemoryRegistry() ports.Registry {
	return &MemoryRegistry{
		sessions: make(map[string]*core.Session),
		byAddr:   make(map[string]string),
	}
}

// Get returns a snapshot of the session stored under identity.
func (r *MemoryRegistry) Get(identity string) (core.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[identity]
	if !ok {
		return core.Session{}, false
	}
	return *s, true
}

// Upsert creates the session if absent and applies mutate under the lock.
// If the mutation moved this session onto an address another session holds,
// that session is removed and its snapshot returned so the caller can close
// its connection outside the lock.
func (r *MemoryRegistry) Upsert(identity string, mutate func(*core.Session)) (core.Session, *core.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[identity]
	if !ok {
		s = &core.Session{Identity: identity}
		r.sessions[identity] = s
	}
	oldAddr := s.Address
	mutate(s)
	s.Identity = identity // the key is not mutable

	var evicted *core.Session
	if s.Address != oldAddr {
		if oldAddr != "" {
			delete(r.byAddr, oldAddr)
		}
		if s.Address != "" {
			if holder, taken := r.byAddr[s.Address]; taken && holder != identity {
				if prev, live := r.sessions[holder]; live {
					snapshot := *prev
					evicted = &snapshot
					delete(r.sessions, holder)
				}
			}
			r.byAddr[s.Address] = identity
		}
	}
	return *s, evicted
}

// Update applies mutate only if the session exists.
func (r *MemoryRegistry) Update(identity string, mutate func(*core.Session)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[identity]
	if !ok {
		return false
	}
	addr := s.Address
	mutate(s)
	s.Address = addr // address changes go through Upsert
	return true
}

// Remove deletes the session and its address index entry as one unit.
func (r *MemoryRegistry) Remove(identity string) (core.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.remove(identity)
}

// Evict removes the session only if it is still inactive.
func (r *MemoryRegistry) Evict(identity string) (core.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[identity]
	if !ok || s.Active {
		return core.Session{}, false
	}
	return r.remove(identity)
}

func (r *MemoryRegistry) remove(identity string) (core.Session, bool) {
	s, ok := r.sessions[identity]
	if !ok {
		return core.Session{}, false
	}
	delete(r.sessions, identity)
	if holder, taken := r.byAddr[s.Address]; taken && holder == identity {
		delete(r.byAddr, s.Address)
	}
	return *s, true
}

// FindByAddress resolves an address to the identity holding it.
func (r *MemoryRegistry) FindByAddress(address string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	identity, ok := r.byAddr[address]
	return identity, ok
}

// ForEach visits a consistent snapshot of all sessions. The snapshot is taken
// under the lock; visiting happens outside it so visitors may do I/O.
func (r *MemoryRegistry) ForEach(visit func(core.Session)) {
	r.mu.RLock()
	snapshot := make([]core.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		snapshot = append(snapshot, *s)
	}
	r.mu.RUnlock()

	for _, s := range snapshot {
		visit(s)
	}
}
