package sync

import "strings"

// placeholderPrefix marks client-generated ids for entities the remote
// service has not acknowledged yet. The UI layer mints these when a
// session starts offline; queued operations reference the session
// through them until the create replays.
const placeholderPrefix = "local-"

// IsPlaceholder reports whether id is a client-generated placeholder.
func IsPlaceholder(id string) bool {
	return strings.HasPrefix(id, placeholderPrefix)
}

// idMap maps placeholder ids to server-assigned ids.
//
// Lifetime is the process: it is rebuilt implicitly as create operations
// succeed, and it is only touched by the engine inside a pass (passes are
// single-flight), so it needs no locking.
type idMap struct {
	ids map[string]string
}

func newIDMap() *idMap {
	return &idMap{ids: make(map[string]string)}
}

// Put records a placeholder→server mapping. Last write wins: if a
// duplicate create claims the same placeholder, later references resolve
// to the most recent successful create, matching the product's global
// last-write-wins stance.
func (m *idMap) Put(placeholder, serverID string) {
	m.ids[placeholder] = serverID
}

// Resolve returns the server id for a reference. Non-placeholder ids
// pass through unchanged; an unresolved placeholder returns false — the
// operation carrying it is not eligible for replay yet.
func (m *idMap) Resolve(id string) (string, bool) {
	if !IsPlaceholder(id) {
		return id, true
	}
	serverID, ok := m.ids[id]
	return serverID, ok
}
