package database

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/prospect/backend/internal/records"
	"github.com/MarcoPoloResearchLab/prospect/backend/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationNormalizeSuperAdminRole = "2026-03-02_normalize_superadmin_role"
	migrationTrimUserNames           = "2026-03-02_trim_user_names"
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationNormalizeSuperAdminRole, apply: normalizeSuperAdminRole},
		{name: migrationTrimUserNames, apply: trimUserNames},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := migration.apply(tx); err != nil {
				return err
			}
			appliedAt := time.Now().UTC().Unix()
			return tx.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error
		})
		if err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// normalizeSuperAdminRole rewrites role spellings such as "superadmin" so that
// privilege checks, which compare exactly, recognize them.
func normalizeSuperAdminRole(db *gorm.DB) error {
	return db.Model(&users.User{}).
		Where("LOWER(role) = ? AND role <> ?", "superadmin", records.RoleSuperAdmin).
		Update("role", records.RoleSuperAdmin).Error
}

// trimUserNames strips padding that would otherwise leak into display names.
func trimUserNames(db *gorm.DB) error {
	return db.Model(&users.User{}).
		Where("first_name <> TRIM(first_name) OR last_name <> TRIM(last_name)").
		Updates(map[string]any{
			"first_name": gorm.Expr("TRIM(first_name)"),
			"last_name":  gorm.Expr("TRIM(last_name)"),
		}).Error
}
