package records

import (
	"fmt"
	"strings"
)

// Column names shared by every primary, owner, related and link table.
const (
	columnID        = "id"
	columnDeleted   = "deleted"
	columnCreatedAt = "created_at_s"
	columnFirstName = "first_name"
	columnLastName  = "last_name"
	columnOrdinal   = "ordinal"

	fieldDeleted  = "deleted"
	nameSeparator = ", "
)

// Relation declares a one-to-many link resolved through a junction table.
// Link rows are joined to TargetTable in ascending ordinal order.
type Relation struct {
	IDField          string
	NameField        string
	LinkTable        string
	LinkRecordColumn string
	LinkTargetColumn string
	TargetTable      string
}

// Descriptor declares how a primary entity is stored, scoped and denormalized.
type Descriptor struct {
	// Entity names the entity in routes, audit rows and metrics.
	Entity         string
	Table          string
	OwnerTable     string
	OwnerColumn    string
	OwnerField     string
	OwnerNameField string
	// Filterable maps public field names accepted in list filters onto columns.
	Filterable map[string]string
	Relations  []Relation
}

func (d Descriptor) validate() error {
	required := map[string]string{
		"entity":           d.Entity,
		"table":            d.Table,
		"owner table":      d.OwnerTable,
		"owner column":     d.OwnerColumn,
		"owner field":      d.OwnerField,
		"owner name field": d.OwnerNameField,
	}
	for label, value := range required {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%w: %s missing", errInvalidDescriptor, label)
		}
	}
	for index, relation := range d.Relations {
		if relation.IDField == "" || relation.NameField == "" || relation.LinkTable == "" ||
			relation.LinkRecordColumn == "" || relation.LinkTargetColumn == "" || relation.TargetTable == "" {
			return fmt.Errorf("%w: relation %d of %s", errInvalidDescriptor, index, d.Entity)
		}
	}
	return nil
}

func (d Descriptor) column(name string) string {
	return d.Table + "." + name
}

func (d Descriptor) ownerColumn(name string) string {
	return d.OwnerTable + "." + name
}

// filterColumn maps a public field onto its column, owner field included.
func (d Descriptor) filterColumn(field string) (string, bool) {
	if field == d.OwnerField {
		return d.OwnerColumn, true
	}
	column, ok := d.Filterable[field]
	return column, ok
}

func qualify(table, column string) string {
	return table + "." + column
}
