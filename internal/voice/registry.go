package voice

import (
	"fmt"
	"sync"
)

// entry pairs a session with its own lock. Holding entry.mu is what makes all
// same-guild mutations mutually exclusive; the registry's outer lock only
// guards the map itself and is never held across a callback.
type entry struct {
	mu      sync.Mutex
	s       *Session
	removed bool
}

// Registry is the concurrency-safe mapping from guild ID to voice session.
// All session mutation funnels through [Registry.Upsert] so that concurrent
// operations on the same guild serialize, while operations on different
// guilds proceed fully in parallel. The registry never touches transport
// handles itself; removal hands the session back to the caller for cleanup.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Get returns a snapshot of the guild's session. The snapshot's Conn must not
// be driven by the caller; it is owned by the live session.
func (r *Registry) Get(guildID string) (Session, bool) {
	r.mu.Lock()
	e, ok := r.entries[guildID]
	r.mu.Unlock()
	if !ok {
		return Session{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return Session{}, false
	}
	return *e.s, true
}

// Upsert applies fn to the guild's session under the per-guild lock. With
// create false a missing session fails with [ErrNotConnected]; with create
// true a default Idle session is inserted first.
//
// fn may block (transport and synthesis calls happen inside it); only
// operations on the same guild wait.
//
// If fn returns an error and leaves the session without a transport handle,
// the entry is removed again: a session that cannot reach its channel must
// not linger and shadow future joins.
func (r *Registry) Upsert(guildID string, create bool, fn func(*Session) error) error {
	for {
		r.mu.Lock()
		e, ok := r.entries[guildID]
		if !ok {
			if !create {
				r.mu.Unlock()
				return fmt.Errorf("%w: guild %s", ErrNotConnected, guildID)
			}
			e = &entry{s: &Session{GuildID: guildID, Activity: ActivityIdle, Volume: 1.0}}
			r.entries[guildID] = e
		}
		r.mu.Unlock()

		e.mu.Lock()
		if e.removed {
			// Raced a removal between map lookup and lock acquisition; the
			// map no longer holds this entry, so start over.
			e.mu.Unlock()
			continue
		}
		err := fn(e.s)
		if err != nil && e.s.Conn == nil {
			r.dropLocked(guildID, e)
		}
		e.mu.Unlock()
		return err
	}
}

// RemoveIf atomically removes the guild's session when pred approves it. The
// removed session is returned for cleanup; the caller now exclusively owns
// its Conn and must close it.
func (r *Registry) RemoveIf(guildID string, pred func(*Session) bool) (Session, bool) {
	r.mu.Lock()
	e, ok := r.entries[guildID]
	r.mu.Unlock()
	if !ok {
		return Session{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed || !pred(e.s) {
		return Session{}, false
	}
	r.dropLocked(guildID, e)
	return *e.s, true
}

// GuildIDs returns a snapshot of the guilds with a session. Used by the
// reaper so that each guild's check-and-evict is its own atomic step with no
// lock held across the whole scan.
func (r *Registry) GuildIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// dropLocked marks e removed and deletes it from the map. Caller holds e.mu;
// the map may already point at a newer entry for the same guild, which stays.
func (r *Registry) dropLocked(guildID string, e *entry) {
	e.removed = true
	r.mu.Lock()
	if r.entries[guildID] == e {
		delete(r.entries, guildID)
	}
	r.mu.Unlock()
}
