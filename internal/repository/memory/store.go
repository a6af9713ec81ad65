// Package memory implements the repository ports in process memory. It keeps
// the same version, tenant and transaction semantics as the postgres adapter
// and backs tests and STORAGE_DRIVER=memory.
package memory

import (
	"context"
	"sync"

	"tripcore/internal/repository"
)

type tables struct {
	trips   map[string]*tripRow
	drivers map[string]*driverRow
	events  map[string]*eventRow
}

func newTables() *tables {
	return &tables{
		trips:   make(map[string]*tripRow),
		drivers: make(map[string]*driverRow),
		events:  make(map[string]*eventRow),
	}
}

// Store holds all entities. Transactions stage their writes until commit, so a
// rolled back transaction leaves no trace. A row written or claimed inside a
// transaction stays locked to it until it ends: other writers of that row wait
// and ClaimDue in other transactions skips it. The store lock itself is only
// held for the duration of a single call.
type Store struct {
	mu       sync.RWMutex
	released *sync.Cond
	rowLocks map[string]*tables
	data     *tables
	seq      int64
}

// NewStore creates an empty store.
func NewStore() *Store {
	s := &Store{
		rowLocks: make(map[string]*tables),
		data:     newTables(),
	}
	s.released = sync.NewCond(&s.mu)
	return s
}

var _ repository.Transactor = (*Store)(nil)

// Repositories returns repositories that operate outside any transaction.
func (s *Store) Repositories() repository.Repositories {
	return s.bind(nil)
}

// WithinTx runs fn with repositories bound to a new transaction. The staged
// writes are applied when fn returns nil and dropped when it fails or panics.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	staged := newTables()
	committed := false
	defer func() {
		s.finish(staged, committed)
	}()

	if err := fn(ctx, s.bind(staged)); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *Store) finish(tx *tables, commit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if commit {
		for k, v := range tx.trips {
			s.data.trips[k] = v
		}
		for k, v := range tx.drivers {
			s.data.drivers[k] = v
		}
		for k, v := range tx.events {
			s.data.events[k] = v
		}
	}

	for k, owner := range s.rowLocks {
		if owner == tx {
			delete(s.rowLocks, k)
		}
	}
	s.released.Broadcast()
}

func (s *Store) bind(tx *tables) repository.Repositories {
	return repository.Repositories{
		Trips:   &TripRepository{s: s, tx: tx},
		Drivers: &DriverRepository{s: s, tx: tx},
		Outbox:  &OutboxRepository{s: s, tx: tx},
	}
}

// lock acquires the store lock for the duration of one repository call.
func (s *Store) lock(write bool) func() {
	if write {
		s.mu.Lock()
		return s.mu.Unlock
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

// acquireRow waits until no other transaction holds the row. Inside a
// transaction the row is then held until it ends. The store write lock must
// be held.
func (s *Store) acquireRow(tx *tables, row string) {
	for {
		owner, held := s.rowLocks[row]
		if !held || owner == tx {
			break
		}
		s.released.Wait()
	}
	if tx != nil {
		s.rowLocks[row] = tx
	}
}

// lockedByOther reports whether another transaction holds the row.
func (s *Store) lockedByOther(tx *tables, row string) bool {
	owner, held := s.rowLocks[row]
	return held && owner != tx
}

func (s *Store) nextSeq() int64 {
	s.seq++
	return s.seq
}

func key(tenantID, id string) string {
	return tenantID + "/" + id
}
