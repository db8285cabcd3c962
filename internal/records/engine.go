package records

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"golang.org/x/sync/errgroup"
)

// View is the denormalized, read-only projection of a record.
type View[T Record] struct {
	Record T
	names  map[string]string
	links  map[string][]string
}

// Name returns a computed display field such as createdByName. Unknown or
// unresolved fields read as the empty string.
func (v View[T]) Name(field string) string {
	return v.names[field]
}

// Links returns the linked identifiers stored for a relation, in link order.
func (v View[T]) Links(field string) []string {
	return v.links[field]
}

// MarshalJSON flattens the record fields, relation ids and computed names into one object.
func (v View[T]) MarshalJSON() ([]byte, error) {
	encoded, err := json.Marshal(v.Record)
	if err != nil {
		return nil, err
	}
	fields := map[string]any{}
	if err := json.Unmarshal(encoded, &fields); err != nil {
		return nil, fmt.Errorf("record must encode as an object: %w", err)
	}
	for field, ids := range v.links {
		if ids == nil {
			ids = []string{}
		}
		fields[field] = ids
	}
	for field, name := range v.names {
		fields[field] = name
	}
	return json.Marshal(fields)
}

// Engine executes scoped filters as owner and relation joins for one descriptor.
type Engine[T Record] struct {
	store      *Store
	descriptor Descriptor
}

// NewEngine binds a store to a descriptor.
func NewEngine[T Record](store *Store, descriptor Descriptor) (*Engine[T], error) {
	if store == nil {
		return nil, errMissingDatabase
	}
	if err := descriptor.validate(); err != nil {
		return nil, err
	}
	return &Engine[T]{store: store, descriptor: descriptor}, nil
}

// Resolve returns every visible record matching filter. No match yields an empty slice.
func (e *Engine[T]) Resolve(ctx context.Context, filter ScopedFilter) ([]View[T], error) {
	return e.resolve(ctx, e.selectVisible().Where(filter))
}

// ResolveOne returns the visible record with the given id or ErrRecordNotFound.
func (e *Engine[T]) ResolveOne(ctx context.Context, filter ScopedFilter, id string) (View[T], error) {
	query := e.selectVisible().
		Where(filter).
		Where(squirrel.Eq{e.descriptor.column(columnID): id}).
		Limit(1)
	views, err := e.resolve(ctx, query)
	if err != nil {
		return View[T]{}, err
	}
	if len(views) == 0 {
		return View[T]{}, ErrRecordNotFound
	}
	return views[0], nil
}

// selectVisible joins each record to its owner and drops records whose owner
// is missing or deleted, independent of the primary filter.
func (e *Engine[T]) selectVisible() squirrel.SelectBuilder {
	d := e.descriptor
	return squirrel.
		Select(d.Table+".*").
		From(d.Table).
		Join(fmt.Sprintf("%s ON %s = %s", d.OwnerTable, d.ownerColumn(columnID), d.column(d.OwnerColumn))).
		Where(squirrel.Eq{d.ownerColumn(columnDeleted): false}).
		OrderBy(d.column(columnCreatedAt)+" ASC", d.column(columnID)+" ASC")
}

func (e *Engine[T]) resolve(ctx context.Context, query squirrel.SelectBuilder) ([]View[T], error) {
	var rows []T
	if err := e.store.selectInto(ctx, query, &rows); err != nil {
		return nil, fmt.Errorf("select %s: %w", e.descriptor.Entity, err)
	}
	if len(rows) == 0 {
		return []View[T]{}, nil
	}

	recordIDs := make([]string, 0, len(rows))
	ownerIDs := make([]string, 0, len(rows))
	seenOwners := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		recordIDs = append(recordIDs, row.RecordID())
		if _, ok := seenOwners[row.RecordOwnerID()]; !ok {
			seenOwners[row.RecordOwnerID()] = struct{}{}
			ownerIDs = append(ownerIDs, row.RecordOwnerID())
		}
	}

	var ownerNames map[string]string
	relationRows := make([][]linkRow, len(e.descriptor.Relations))

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		names, err := e.store.loadNames(groupCtx, e.descriptor.OwnerTable, ownerIDs)
		if err != nil {
			return fmt.Errorf("load owners: %w", err)
		}
		ownerNames = names
		return nil
	})
	for index, relation := range e.descriptor.Relations {
		group.Go(func() error {
			links, err := e.store.loadLinks(groupCtx, relation, recordIDs)
			if err != nil {
				return fmt.Errorf("load %s: %w", relation.IDField, err)
			}
			relationRows[index] = links
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	views := make([]View[T], 0, len(rows))
	for _, row := range rows {
		view := View[T]{
			Record: row,
			names:  map[string]string{e.descriptor.OwnerNameField: ownerNames[row.RecordOwnerID()]},
			links:  make(map[string][]string, len(e.descriptor.Relations)),
		}
		for index, relation := range e.descriptor.Relations {
			ids, name := flattenLinks(relationRows[index], row.RecordID())
			view.links[relation.IDField] = ids
			view.names[relation.NameField] = name
		}
		views = append(views, view)
	}
	return views, nil
}

// flattenLinks collapses the joined rows of one record into its id list and a
// single name string. Unresolved links keep their id but contribute no name.
func flattenLinks(rows []linkRow, recordID string) ([]string, string) {
	ids := []string{}
	names := []string{}
	for _, row := range rows {
		if row.RecordID != recordID {
			continue
		}
		ids = append(ids, row.TargetID)
		if row.ResolvedID == nil {
			continue
		}
		if name := displayName(row.FirstName, row.LastName); name != "" {
			names = append(names, name)
		}
	}
	return ids, strings.Join(names, nameSeparator)
}
