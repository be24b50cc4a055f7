package database

import (
	"fmt"
	"time"

	"agent-ledger/internal/models"
	"agent-ledger/pkg/logger"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Connect establishes a connection to the PostgreSQL database. Duplicate-key
// errors are translated to gorm.ErrDuplicatedKey.
func Connect(dsn string, log *logger.Logger) (*gorm.DB, error) {
	return Open(postgres.Open(dsn), log)
}

// Open opens a gorm handle over any dialector with the service settings.
func Open(dialector gorm.Dialector, log *logger.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                                   NewGormLogger(log),
		TranslateError:                           true,
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Info("Database connection established successfully")
	return db, nil
}

// slowQueryThreshold marks queries logged as slow
const slowQueryThreshold = 200 * time.Millisecond

// gormWriter routes gorm's log lines into the service logger
type gormWriter struct {
	log *logger.Logger
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.log.Warnf(format, args...)
}

// NewGormLogger returns a gorm logger that writes warnings, errors and slow
// queries through log. Missing records are normal lookups and are not logged.
func NewGormLogger(log *logger.Logger) gormlogger.Interface {
	return gormlogger.New(gormWriter{log: log.With("component", "gorm")}, gormlogger.Config{
		SlowThreshold:             slowQueryThreshold,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

// Models lists every persisted model in migration order.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Agent{},
		&models.Creator{},
		&models.CreatorAgent{},
		&models.Holding{},
		&models.Subscription{},
		&models.Entry{},
		&models.Withdrawal{},
		&models.Tweet{},
	}
}

// AutoMigrate runs automatic migrations for all models
func AutoMigrate(db *gorm.DB, log *logger.Logger) error {
	if err := db.SetupJoinTable(&models.Creator{}, "Agents", &models.CreatorAgent{}); err != nil {
		return fmt.Errorf("failed to set up creator_agents join table: %w", err)
	}

	for _, model := range Models() {
		if err := db.AutoMigrate(model); err != nil {
			return fmt.Errorf("migration failed for %T: %w", model, err)
		}
	}

	log.Info("Database migrations completed successfully")
	return nil
}
