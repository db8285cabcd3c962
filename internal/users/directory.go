package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MarcoPoloResearchLab/prospect/backend/internal/records"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"gorm.io/gorm"
)

var (
	// ErrInvalidUser indicates that user input failed validation.
	ErrInvalidUser = errors.New("users: invalid user")
	// ErrUserNotFound indicates that no user carries the requested id.
	ErrUserNotFound = errors.New("users: user not found")
)

// DirectoryConfig describes the dependencies required for caller resolution.
type DirectoryConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider records.IDProvider
}

// Directory resolves callers and provisions users. It keeps no cache: a user
// deleted between two requests is rejected on the second one.
type Directory struct {
	db         *gorm.DB
	now        func() time.Time
	idProvider records.IDProvider
}

// NewDirectory constructs the user directory.
func NewDirectory(cfg DirectoryConfig) (*Directory, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	idProvider := cfg.IDProvider
	if idProvider == nil {
		idProvider = records.NewUUIDProvider()
	}
	return &Directory{
		db:         cfg.Database,
		now:        clock,
		idProvider: idProvider,
	}, nil
}

// ResolveCaller returns the active caller for userID. Unknown, blank and deleted
// users wrap records.ErrUnauthorizedIdentity; other errors are lookup failures.
func (d *Directory) ResolveCaller(ctx context.Context, userID string) (records.Caller, error) {
	identifier := normalize(userID)
	if identifier == "" {
		return records.Caller{}, fmt.Errorf("%w: empty user id", records.ErrUnauthorizedIdentity)
	}

	var user User
	err := d.db.WithContext(ctx).
		Where("id = ?", identifier).
		Take(&user).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return records.Caller{}, fmt.Errorf("%w: unknown user %s", records.ErrUnauthorizedIdentity, identifier)
	}
	if err != nil {
		return records.Caller{}, err
	}
	if user.Deleted {
		return records.Caller{}, fmt.Errorf("%w: user %s is deleted", records.ErrUnauthorizedIdentity, identifier)
	}
	return records.Caller{UserID: user.ID, Role: user.Role}, nil
}

// NewUser is the input accepted by Add.
type NewUser struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
	Role      string
}

// Validate checks the declared user shape.
func (u NewUser) Validate() error {
	return validation.ValidateStruct(&u,
		validation.Field(&u.ID, validation.Length(1, 190)),
		validation.Field(&u.FirstName, validation.Required, validation.Length(1, 190)),
		validation.Field(&u.LastName, validation.Length(0, 190)),
		validation.Field(&u.Email, is.EmailFormat, validation.Length(0, 320)),
		validation.Field(&u.Role, validation.In(RoleUser, records.RoleSuperAdmin)),
	)
}

// Add provisions a user. A blank id is replaced with a generated one and a
// blank role defaults to RoleUser.
func (d *Directory) Add(ctx context.Context, input NewUser) (User, error) {
	input = NewUser{
		ID:        normalize(input.ID),
		FirstName: normalize(input.FirstName),
		LastName:  normalize(input.LastName),
		Email:     normalize(input.Email),
		Role:      normalize(input.Role),
	}
	if err := input.Validate(); err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrInvalidUser, err)
	}
	if input.ID == "" {
		generated, err := d.idProvider.NewID()
		if err != nil {
			return User{}, err
		}
		input.ID = generated
	}
	if input.Role == "" {
		input.Role = RoleUser
	}

	user := User{
		ID:               input.ID,
		FirstName:        input.FirstName,
		LastName:         input.LastName,
		Email:            input.Email,
		Role:             input.Role,
		CreatedAtSeconds: d.now().UTC().Unix(),
	}
	if err := d.db.WithContext(ctx).Create(&user).Error; err != nil {
		return User{}, err
	}
	return user, nil
}

// Deactivate soft-deletes a user. Records they own disappear from joined reads
// but keep their own deleted flag.
func (d *Directory) Deactivate(ctx context.Context, userID string) error {
	identifier := normalize(userID)
	result := d.db.WithContext(ctx).
		Model(&User{}).
		Where("id = ?", identifier).
		Update("deleted", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrUserNotFound, identifier)
	}
	return nil
}
