package database

import (
	"fmt"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/terraguardian/core/internal/awards"
	"github.com/terraguardian/core/internal/intake"
	"github.com/terraguardian/core/internal/quests"
	"github.com/terraguardian/core/internal/submissions"
	"github.com/terraguardian/core/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OpenServer establishes the server's SQLite connection, performs schema
// migrations and seeds the quest catalog when empty.
func OpenServer(path string, logger *zap.Logger) (*gorm.DB, error) {
	db, err := open(path)
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(
		&users.User{},
		&quests.Quest{},
		&intake.Record{},
		&intake.ActionRecord{},
		&awards.Badge{},
		&migrationRecord{},
	); err != nil {
		return nil, err
	}

	if err := applyMigrations(db, serverMigrations(), logger); err != nil {
		return nil, err
	}

	if err := seedQuestCatalog(db, logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("server database initialized", zap.String("path", path))
	}
	return db, nil
}

// OpenAgent establishes the field agent's local SQLite store and performs
// schema migrations.
func OpenAgent(path string, logger *zap.Logger) (*gorm.DB, error) {
	db, err := open(path)
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(
		&submissions.Submission{},
		&submissions.SyncQueueItem{},
		&submissions.LocalUser{},
		&quests.Quest{},
		&migrationRecord{},
	); err != nil {
		return nil, err
	}

	if err := applyMigrations(db, agentMigrations(), logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("agent database initialized", zap.String("path", path))
	}
	return db, nil
}

func open(path string) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

func seedQuestCatalog(db *gorm.DB, logger *zap.Logger) error {
	var count int64
	if err := db.Model(&quests.Quest{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	catalog := quests.DefaultCatalog(time.Now())
	if err := db.Create(&catalog).Error; err != nil {
		return err
	}
	if logger != nil {
		logger.Info("quest catalog seeded", zap.Int("quests", len(catalog)))
	}
	return nil
}
