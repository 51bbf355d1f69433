package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tws-options/models"
)

// LocalStorage is the SQLite-backed request activity store.
type LocalStorage struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewLocalStorage creates a new local storage service.
func NewLocalStorage(dbPath string) (*LocalStorage, error) {
	// Ensure the directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open SQLite database
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Auto-migrate schemas
	if err := db.AutoMigrate(&models.DBChainRequest{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	return &LocalStorage{
		db:     db,
		logger: log,
	}, nil
}

// SaveChainRequest saves one request audit record.
func (s *LocalStorage) SaveChainRequest(record *models.DBChainRequest) error {
	result := s.db.Save(record)
	if result.Error != nil {
		return fmt.Errorf("failed to save chain request: %w", result.Error)
	}
	return nil
}

// RecentChainRequests retrieves the newest audit records.
func (s *LocalStorage) RecentChainRequests(limit int) ([]*models.DBChainRequest, error) {
	if limit <= 0 {
		limit = 50
	}

	var records []*models.DBChainRequest
	result := s.db.Order("served_at DESC").Limit(limit).Find(&records)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get chain requests: %w", result.Error)
	}
	return records, nil
}

// Close closes the database connection.
func (s *LocalStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
