package repository

import "context"

// SaveOutcome is the result of a compare-and-set save.
type SaveOutcome int

const (
	// Saved means the stored version matched and the write was applied.
	Saved SaveOutcome = iota + 1

	// Conflict means the stored version moved on since the entity was loaded.
	// Nothing was written.
	Conflict
)

func (o SaveOutcome) String() string {
	switch o {
	case Saved:
		return "saved"
	case Conflict:
		return "conflict"
	}
	return "unknown"
}

// Repositories groups the repositories bound to one unit of work.
type Repositories struct {
	Trips   TripRepository
	Drivers DriverRepository
	Outbox  OutboxRepository
}

// Transactor runs fn inside a single transaction. The transaction commits
// when fn returns nil and rolls back when fn returns an error or panics.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
