package database

import (
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/prospect/backend/internal/crm"
	"github.com/MarcoPoloResearchLab/prospect/backend/internal/records"
	"github.com/MarcoPoloResearchLab/prospect/backend/internal/users"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const (
	postgresMaxOpenConns = 16
	postgresMaxIdleConns = 4
)

// Config selects the database driver and connection string.
type Config struct {
	Driver string
	DSN    string
}

// Open establishes a connection for cfg and performs schema migrations.
func Open(cfg Config, logger *zap.Logger) (*gorm.DB, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, fmt.Errorf("database dsn is required")
	}

	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case DriverSQLite, "":
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if db.Dialector.Name() == DriverSQLite {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(postgresMaxOpenConns)
		sqlDB.SetMaxIdleConns(postgresMaxIdleConns)
	}

	if err := Migrate(db, logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("driver", db.Dialector.Name()))
	}

	return db, nil
}

// Migrate creates every table the API needs and applies pending data migrations.
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	models := []any{&users.User{}, &records.RecordChange{}, &migrationRecord{}}
	models = append(models, crm.Models()...)
	if err := db.AutoMigrate(models...); err != nil {
		return err
	}
	return applyMigrations(db, logger)
}
