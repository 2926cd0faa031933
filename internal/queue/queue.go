package queue

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/stridefit/stride/internal/kv"
)

// Storage keys for the queue snapshots.
const (
	pendingKey = "queue:pending"
	failedKey  = "queue:failed"
)

// maxFailedOps bounds the failed list; the oldest entries are evicted
// once the list grows past this.
const maxFailedOps = 50

// Store is the mutation queue: an in-memory mirror of the durable
// pending/failed lists. All mutations are serialized behind a single
// mutex and persist the full snapshot back to the kv store — the queues
// stay small (bounded by how long a user is offline), so snapshot writes
// beat incremental diffing on simplicity.
type Store struct {
	store  *kv.Store
	logger *log.Logger

	mu      sync.Mutex
	loaded  bool
	pending []Op
	failed  []FailedOp
}

// New creates a queue backed by the given kv store.
//
// If logger is nil, a default logger writing to stderr is used.
// Call Load() before the first Enqueue in a fresh process.
func New(store *kv.Store, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(os.Stderr, "[queue] ", log.LstdFlags)
	}
	return &Store{
		store:  store,
		logger: logger,
	}
}

// Load populates the in-memory mirror from durable storage.
//
// Idempotent: only the first call per process reads storage, subsequent
// calls are no-ops. A corrupt or missing snapshot degrades to an empty
// queue rather than an error — losing visibility of the queue would be
// worse than starting clean, and the failure is logged.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded {
		return nil
	}

	s.pending = s.readSnapshot()
	s.failed = s.readFailedSnapshot()
	s.loaded = true

	s.logger.Printf("Loaded queue: %d pending, %d failed", len(s.pending), len(s.failed))
	return nil
}

// Enqueue records a new operation and returns its id.
//
// Enqueue never rejects: it must work while fully offline, so a failed
// snapshot write is logged and the in-memory mirror stays authoritative
// until the next successful persist.
func (s *Store) Enqueue(typ Type, action Action, ownerID string, payload any) (string, error) {
	data, err := EncodePayload(payload)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	op := Op{
		ID:         NewOpID(now),
		Type:       typ,
		Action:     action,
		Payload:    data,
		CreatedAt:  now,
		RetryCount: 0,
		OwnerID:    ownerID,
	}

	s.pending = append(s.pending, op)
	s.persistPending()

	s.logger.Printf("Enqueued %s %s (%s)", op.Action, op.Type, op.ID)
	return op.ID, nil
}

// Dequeue removes the operation with the given id from the pending list.
func (s *Store) Dequeue(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("operation %s not found", id)
	}

	s.pending = append(s.pending[:idx], s.pending[idx+1:]...)
	s.persistPending()
	return nil
}

// IncrementRetry bumps the retry count for an operation.
func (s *Store) IncrementRetry(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("operation %s not found", id)
	}

	s.pending[idx].RetryCount++
	s.persistPending()
	return nil
}

// Fail atomically removes an operation from the pending list and records
// it on the failed list with the given error message. Failed operations
// are kept until the user clears them; they are never auto-retried.
func (s *Store) Fail(id string, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("operation %s not found", id)
	}

	op := s.pending[idx]
	s.pending = append(s.pending[:idx], s.pending[idx+1:]...)

	s.failed = append(s.failed, FailedOp{
		Op:       op,
		Error:    errMsg,
		FailedAt: time.Now().UTC(),
	})
	if len(s.failed) > maxFailedOps {
		s.failed = s.failed[len(s.failed)-maxFailedOps:]
	}

	s.persistPending()
	s.persistFailed()

	s.logger.Printf("Failed %s %s (%s): %s", op.Action, op.Type, op.ID, errMsg)
	return nil
}

// Pending returns a copy of the pending list in replay order: stable
// priority sort, ties broken by CreatedAt ascending.
func (s *Store) Pending() []Op {
	s.mu.Lock()
	defer s.mu.Unlock()

	ops := make([]Op, len(s.pending))
	copy(ops, s.pending)

	sort.SliceStable(ops, func(i, j int) bool {
		pi, pj := Priority(ops[i].Type, ops[i].Action), Priority(ops[j].Type, ops[j].Action)
		if pi != pj {
			return pi < pj
		}
		return ops[i].CreatedAt.Before(ops[j].CreatedAt)
	})

	return ops
}

// Len returns the number of pending operations. This is the hot path
// behind the UI badge — in-memory only, no storage touch.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Failed returns a copy of the failed operation list.
func (s *Store) Failed() []FailedOp {
	s.mu.Lock()
	defer s.mu.Unlock()

	ops := make([]FailedOp, len(s.failed))
	copy(ops, s.failed)
	return ops
}

// ClearFailed drops all failed operations.
func (s *Store) ClearFailed() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failed = nil
	s.persistFailed()
	s.logger.Printf("Cleared failed operations")
}

// ClearOwner removes every pending and failed operation belonging to the
// given owner. Used on sign-out so another user's intents never replay
// from this device.
func (s *Store) ClearOwner(ownerID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0

	kept := s.pending[:0]
	for _, op := range s.pending {
		if op.OwnerID == ownerID {
			removed++
			continue
		}
		kept = append(kept, op)
	}
	s.pending = kept

	keptFailed := s.failed[:0]
	for _, op := range s.failed {
		if op.OwnerID == ownerID {
			removed++
			continue
		}
		keptFailed = append(keptFailed, op)
	}
	s.failed = keptFailed

	s.persistPending()
	s.persistFailed()

	if removed > 0 {
		s.logger.Printf("Cleared %d operations for owner %s", removed, ownerID)
	}
	return removed
}

// indexOf finds a pending operation by id. Caller holds the mutex.
func (s *Store) indexOf(id string) int {
	for i, op := range s.pending {
		if op.ID == id {
			return i
		}
	}
	return -1
}

// persistPending writes the full pending snapshot. Caller holds the mutex.
func (s *Store) persistPending() {
	data, err := json.Marshal(s.pending)
	if err != nil {
		s.logger.Printf("WARNING: failed to marshal pending queue: %v", err)
		return
	}
	if err := s.store.Set(pendingKey, string(data)); err != nil {
		s.logger.Printf("WARNING: failed to persist pending queue: %v", err)
	}
}

// persistFailed writes the full failed snapshot. Caller holds the mutex.
func (s *Store) persistFailed() {
	data, err := json.Marshal(s.failed)
	if err != nil {
		s.logger.Printf("WARNING: failed to marshal failed queue: %v", err)
		return
	}
	if err := s.store.Set(failedKey, string(data)); err != nil {
		s.logger.Printf("WARNING: failed to persist failed queue: %v", err)
	}
}

// readSnapshot reads the pending list from storage. Caller holds the mutex.
func (s *Store) readSnapshot() []Op {
	raw, ok, err := s.store.Get(pendingKey)
	if err != nil {
		s.logger.Printf("WARNING: failed to read pending queue: %v", err)
		return nil
	}
	if !ok {
		return nil
	}

	var ops []Op
	if err := json.Unmarshal([]byte(raw), &ops); err != nil {
		s.logger.Printf("WARNING: corrupt pending queue snapshot, starting empty: %v", err)
		return nil
	}
	return ops
}

// readFailedSnapshot reads the failed list from storage. Caller holds the mutex.
func (s *Store) readFailedSnapshot() []FailedOp {
	raw, ok, err := s.store.Get(failedKey)
	if err != nil {
		s.logger.Printf("WARNING: failed to read failed queue: %v", err)
		return nil
	}
	if !ok {
		return nil
	}

	var ops []FailedOp
	if err := json.Unmarshal([]byte(raw), &ops); err != nil {
		s.logger.Printf("WARNING: corrupt failed queue snapshot, starting empty: %v", err)
		return nil
	}
	return ops
}
