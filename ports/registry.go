package ports

import "github.com/stevehere/ethdrop-relay/core"

// Registry is the shared table of authenticated sessions plus the
// address-to-identity index. Implementations must keep both sides of the
// index consistent under concurrent access: an address change, a removal, or
// an eviction updates session and index as one unit. No operation may block
// on I/O; callers never hold the registry lock while touching the network.
type Registry interface {
	// Get returns a snapshot of the session stored under identity.
	Get(identity string) (core.Session, bool)

	// Upsert creates the session if absent and applies mutate under the
	// registry lock. It returns the post-mutation snapshot, plus the snapshot
	// of any other session that was evicted because mutate moved this session
	// onto an address the other session held (at most one session per
	// address). The caller owns closing the evicted session's connection.
	Upsert(identity string, mutate func(*core.Session)) (core.Session, *core.Session)

	// Update applies mutate only if the session exists. It must not change
	// the address; use Upsert for address changes.
	Update(identity string, mutate func(*core.Session)) bool

	// Remove deletes the session and its address index entry as one unit.
	Remove(identity string) (core.Session, bool)

	// Evict removes the session only if it is still inactive, re-checked
	// under the registry lock.
	Evict(identity string) (core.Session, bool)

	// FindByAddress resolves an address to the identity holding it.
	FindByAddress(address string) (string, bool)

	// ForEach visits a consistent snapshot of all sessions.
	ForEach(visit func(core.Session))
}
