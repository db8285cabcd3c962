package records

import (
	"context"
	"time"
)

// Outcome reports the effect of a soft delete.
type Outcome struct {
	Requested int   `json:"requested"`
	Matched   int64 `json:"matched"`
	Modified  int64 `json:"modified"`
}

// Lifecycle creates records and performs flag-only deletes. Nothing it does removes a row.
type Lifecycle[T Record] struct {
	store      *Store
	descriptor Descriptor
	idProvider IDProvider
	clock      func() time.Time
}

// NewLifecycle constructs a lifecycle manager for descriptor.
func NewLifecycle[T Record](store *Store, descriptor Descriptor, idProvider IDProvider, clock func() time.Time) (*Lifecycle[T], error) {
	if store == nil {
		return nil, errMissingDatabase
	}
	if idProvider == nil {
		return nil, errMissingIDProvider
	}
	if err := descriptor.validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = time.Now
	}
	return &Lifecycle[T]{store: store, descriptor: descriptor, idProvider: idProvider, clock: clock}, nil
}

// Create builds a record owned by actorID from payload and persists it atomically.
func (l *Lifecycle[T]) Create(ctx context.Context, payload Payload[T], actorID string) (T, error) {
	var zero T
	recordID, err := l.idProvider.NewID()
	if err != nil {
		return zero, err
	}
	appliedAt := l.clock().UTC()
	record := payload.Build(Meta{ID: recordID, OwnerID: actorID, CreatedAt: appliedAt})

	change, err := l.newChange(record.RecordID(), actorID, ChangeOperationCreate, appliedAt)
	if err != nil {
		return zero, err
	}
	if err := l.store.insert(ctx, &record, change); err != nil {
		return zero, err
	}
	return record, nil
}

// SoftDelete marks one record deleted. Repeating it succeeds with Modified=0;
// an id that never existed yields ErrRecordNotFound.
func (l *Lifecycle[T]) SoftDelete(ctx context.Context, id, actorID string) (Outcome, error) {
	outcome, err := l.markDeleted(ctx, []string{id}, actorID)
	if err != nil {
		return Outcome{}, err
	}
	if outcome.Matched == 0 {
		return outcome, ErrRecordNotFound
	}
	return outcome, nil
}

// SoftDeleteMany marks every existing record in ids deleted with one update.
// Unknown ids are skipped without error.
func (l *Lifecycle[T]) SoftDeleteMany(ctx context.Context, ids []string, actorID string) (Outcome, error) {
	return l.markDeleted(ctx, ids, actorID)
}

func (l *Lifecycle[T]) markDeleted(ctx context.Context, ids []string, actorID string) (Outcome, error) {
	unique := uniqueIDs(ids)
	outcome := Outcome{Requested: len(unique)}
	if len(unique) == 0 {
		return outcome, nil
	}
	appliedAt := l.clock().UTC()
	matched, modified, err := l.store.markDeleted(ctx, l.descriptor.Table, unique, func(recordID string) (RecordChange, error) {
		return l.newChange(recordID, actorID, ChangeOperationDelete, appliedAt)
	})
	if err != nil {
		return Outcome{}, err
	}
	outcome.Matched = matched
	outcome.Modified = modified
	return outcome, nil
}

func (l *Lifecycle[T]) newChange(recordID, actorID string, operation ChangeOperation, appliedAt time.Time) (RecordChange, error) {
	changeID, err := l.idProvider.NewID()
	if err != nil {
		return RecordChange{}, err
	}
	return RecordChange{
		ChangeID:         changeID,
		Entity:           l.descriptor.Entity,
		RecordID:         recordID,
		ActorID:          actorID,
		Operation:        operation,
		AppliedAtSeconds: appliedAt.Unix(),
	}, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	return unique
}
