package records

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/Masterminds/squirrel"
)

const opScope = "records.scope"

// ScopedFilter is an authorization-safe condition over a descriptor's table.
type ScopedFilter struct {
	caller    Caller
	condition squirrel.And
}

// Caller returns the identity the filter was scoped for.
func (f ScopedFilter) Caller() Caller {
	return f.caller
}

// ToSql renders the condition; ScopedFilter satisfies squirrel.Sqlizer.
func (f ScopedFilter) ToSql() (string, []interface{}, error) {
	return f.condition.ToSql()
}

// Scoper rewrites caller filters into authorization-safe filters.
type Scoper struct {
	identities IdentityResolver
}

// NewScoper constructs a Scoper backed by the provided identity resolver.
func NewScoper(identities IdentityResolver) (*Scoper, error) {
	if identities == nil {
		return nil, newServiceError(opScope, "missing_identities", ErrPersistence, errMissingIdentities)
	}
	return &Scoper{identities: identities}, nil
}

// Authenticate resolves callerID to an active caller or fails closed.
func (s *Scoper) Authenticate(ctx context.Context, callerID string) (Caller, error) {
	caller, err := s.identities.ResolveCaller(ctx, callerID)
	if err == nil {
		return caller, nil
	}
	if errors.Is(err, ErrUnauthorizedIdentity) {
		return Caller{}, newServiceError(opScope, "identity_unresolved", ErrUnauthorizedIdentity, err)
	}
	return Caller{}, newServiceError(opScope, "identity_lookup_failed", ErrPersistence, err)
}

// Scope resolves the caller and rewrites raw into a ScopedFilter for descriptor.
func (s *Scoper) Scope(ctx context.Context, descriptor Descriptor, raw Filter, callerID string) (ScopedFilter, error) {
	caller, err := s.Authenticate(ctx, callerID)
	if err != nil {
		return ScopedFilter{}, err
	}
	return scopeFor(descriptor, raw, caller)
}

// scopeFor is the pure part of Scope: deleted=false is always forced, and
// non-privileged callers lose any owner key in favor of their own id.
func scopeFor(descriptor Descriptor, raw Filter, caller Caller) (ScopedFilter, error) {
	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	condition := squirrel.And{squirrel.Eq{descriptor.column(columnDeleted): false}}
	for _, key := range keys {
		if key == fieldDeleted {
			continue
		}
		if key == descriptor.OwnerField && !caller.Privileged() {
			continue
		}
		column, ok := descriptor.filterColumn(key)
		if !ok {
			return ScopedFilter{}, newServiceError(opScope, "unknown_filter_field", ErrValidation,
				fmt.Errorf("field %q cannot be filtered on %s", key, descriptor.Entity))
		}
		condition = append(condition, squirrel.Eq{descriptor.column(column): raw[key]})
	}

	if !caller.Privileged() {
		condition = append(condition, squirrel.Or{
			squirrel.Eq{descriptor.column(descriptor.OwnerColumn): caller.UserID},
		})
	}

	return ScopedFilter{caller: caller, condition: condition}, nil
}
