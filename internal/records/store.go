package records

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RecordChange is the append-only audit trail for lifecycle transitions.
type RecordChange struct {
	ChangeID         string          `gorm:"column:change_id;primaryKey;size:190;not null"`
	Entity           string          `gorm:"column:entity;size:64;not null;index:idx_record_changes_entity_record,priority:1"`
	RecordID         string          `gorm:"column:record_id;size:190;not null;index:idx_record_changes_entity_record,priority:2"`
	ActorID          string          `gorm:"column:actor_id;size:190;not null"`
	Operation        ChangeOperation `gorm:"column:op;size:16;not null"`
	AppliedAtSeconds int64           `gorm:"column:applied_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (RecordChange) TableName() string {
	return "record_changes"
}

// ChangeOperation enumerates audited lifecycle transitions.
type ChangeOperation string

const (
	// ChangeOperationCreate records an insert.
	ChangeOperationCreate ChangeOperation = "create"
	// ChangeOperationDelete records a deleted=false to deleted=true transition.
	ChangeOperationDelete ChangeOperation = "delete"
)

// Store is the uniform access layer over primary, owner and related tables.
type Store struct {
	db *gorm.DB
}

// NewStore wraps a gorm handle.
func NewStore(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errMissingDatabase
	}
	return &Store{db: db}, nil
}

type nameRow struct {
	ID        string
	FirstName *string
	LastName  *string
}

type linkRow struct {
	RecordID   string
	TargetID   string
	ResolvedID *string
	FirstName  *string
	LastName   *string
}

type flagState struct {
	ID      string
	Deleted bool
}

func (s *Store) selectInto(ctx context.Context, query squirrel.Sqlizer, dest any) error {
	statement, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return s.db.WithContext(ctx).Raw(statement, args...).Scan(dest).Error
}

// loadNames returns display names keyed by id for the rows of table.
func (s *Store) loadNames(ctx context.Context, table string, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	query := squirrel.
		Select(qualify(table, columnID), qualify(table, columnFirstName), qualify(table, columnLastName)).
		From(table).
		Where(squirrel.Eq{qualify(table, columnID): ids})

	var rows []nameRow
	if err := s.selectInto(ctx, query, &rows); err != nil {
		return nil, err
	}
	for _, row := range rows {
		names[row.ID] = displayName(row.FirstName, row.LastName)
	}
	return names, nil
}

// loadLinks returns the link rows of relation for recordIDs, left-joined to the
// target table and ordered by record then ordinal.
func (s *Store) loadLinks(ctx context.Context, relation Relation, recordIDs []string) ([]linkRow, error) {
	if len(recordIDs) == 0 {
		return nil, nil
	}
	recordColumn := qualify(relation.LinkTable, relation.LinkRecordColumn)
	targetColumn := qualify(relation.LinkTable, relation.LinkTargetColumn)
	query := squirrel.
		Select(
			recordColumn+" AS record_id",
			targetColumn+" AS target_id",
			qualify(relation.TargetTable, columnID)+" AS resolved_id",
			qualify(relation.TargetTable, columnFirstName)+" AS first_name",
			qualify(relation.TargetTable, columnLastName)+" AS last_name",
		).
		From(relation.LinkTable).
		LeftJoin(fmt.Sprintf("%s ON %s = %s", relation.TargetTable, qualify(relation.TargetTable, columnID), targetColumn)).
		Where(squirrel.Eq{recordColumn: recordIDs}).
		OrderBy(recordColumn+" ASC", qualify(relation.LinkTable, columnOrdinal)+" ASC")

	var rows []linkRow
	if err := s.selectInto(ctx, query, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// insert writes record (with its associations) and its audit row in one transaction.
func (s *Store) insert(ctx context.Context, record any, change RecordChange) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("insert record: %w", err)
		}
		if err := tx.Create(&change).Error; err != nil {
			return fmt.Errorf("insert audit: %w", err)
		}
		return nil
	})
}

// markDeleted flips deleted=true for every id of table in a single UPDATE and
// audits each transition. Missing and already deleted ids are no-ops.
func (s *Store) markDeleted(ctx context.Context, table string, ids []string, newChange func(recordID string) (RecordChange, error)) (int64, int64, error) {
	var matched, modified int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var states []flagState
		query := tx.Table(table)
		if tx.Dialector.Name() != "sqlite" {
			query = query.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if err := query.
			Select(columnID, columnDeleted).
			Where(columnID+" IN ?", ids).
			Scan(&states).Error; err != nil {
			return fmt.Errorf("select states: %w", err)
		}
		matched = int64(len(states))

		pending := make([]string, 0, len(states))
		for _, state := range states {
			if !state.Deleted {
				pending = append(pending, state.ID)
			}
		}
		if len(pending) == 0 {
			return nil
		}

		result := tx.Table(table).
			Where(columnID+" IN ? AND "+columnDeleted+" = ?", pending, false).
			Update(columnDeleted, true)
		if result.Error != nil {
			return fmt.Errorf("flag deleted: %w", result.Error)
		}
		modified = result.RowsAffected

		changes := make([]RecordChange, 0, len(pending))
		for _, recordID := range pending {
			change, err := newChange(recordID)
			if err != nil {
				return err
			}
			changes = append(changes, change)
		}
		if err := tx.Create(&changes).Error; err != nil {
			return fmt.Errorf("insert audit: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return matched, modified, nil
}

func displayName(firstName, lastName *string) string {
	first, last := "", ""
	if firstName != nil {
		first = *firstName
	}
	if lastName != nil {
		last = *lastName
	}
	switch {
	case first == "":
		return last
	case last == "":
		return first
	default:
		return first + " " + last
	}
}
