package records

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RoleSuperAdmin is the only role allowed to see records owned by other users.
const RoleSuperAdmin = "superAdmin"

// Record is implemented by every primary entity served through a Service.
type Record interface {
	RecordID() string
	RecordOwnerID() string
}

// Meta carries the server-assigned attributes of a record being created.
type Meta struct {
	ID        string
	OwnerID   string
	CreatedAt time.Time
}

// Payload is the declared, validated create shape for a record type.
type Payload[T Record] interface {
	Validate() error
	Build(meta Meta) T
}

// Caller is a resolved, active user issuing a request.
type Caller struct {
	UserID string
	Role   string
}

// Privileged reports whether the caller bypasses ownership scoping.
func (c Caller) Privileged() bool {
	return c.Role == RoleSuperAdmin
}

// IdentityResolver maps a verified user id onto an active caller.
// Implementations return an error wrapping ErrUnauthorizedIdentity when the user
// is unknown or deleted.
type IdentityResolver interface {
	ResolveCaller(ctx context.Context, userID string) (Caller, error)
}

// Filter holds equality constraints keyed by public field name.
type Filter map[string]string

// IDProvider issues identifiers for new records and audit rows.
type IDProvider interface {
	NewID() (string, error)
}

type uuidProvider struct{}

// NewUUIDProvider constructs an IDProvider that issues UUIDv7 identifiers.
func NewUUIDProvider() IDProvider {
	return &uuidProvider{}
}

func (p *uuidProvider) NewID() (string, error) {
	value, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return value.String(), nil
}
