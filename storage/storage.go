package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"votechain-backend/models"
)

// Store is the local cache database. It is a derived, rebuildable projection
// of ledger state plus the handful of local-only policy fields; on any
// disagreement with a reachable ledger, the ledger wins.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open creates or opens the sqlite database under dataDir. An empty dataDir
// selects an in-memory database, used by tests.
func Open(dataDir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	inMemory := dataDir == ""
	dsn := ":memory:"
	if !inMemory {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "votechain.sqlite")
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if inMemory {
		// A pooled second connection would see its own empty database.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to access database pool: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(
		&models.Election{},
		&models.VoteReceipt{},
		&models.Voter{},
		&models.VoterElectionRegistration{},
		&models.Admin{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &Store{
		db:     db,
		logger: logger.With("component", "storage"),
	}, nil
}

// Counts returns voter and election row counts for the status endpoint.
func (s *Store) Counts() (voters int64, elections int64, err error) {
	if err = s.db.Model(&models.Voter{}).Count(&voters).Error; err != nil {
		return 0, 0, err
	}
	if err = s.db.Model(&models.Election{}).Count(&elections).Error; err != nil {
		return 0, 0, err
	}
	return voters, elections, nil
}

// Ping verifies the database connection is usable.
func (s *Store) Ping() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
