package database

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationDedupeBadgeRows        = "2026-07-14_dedupe_badge_rows"
	migrationBackfillAttemptCounter = "2026-08-12_backfill_submission_attempts"
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

func serverMigrations() []migrationDefinition {
	return []migrationDefinition{
		{name: migrationDedupeBadgeRows, apply: dedupeBadgeRows},
	}
}

func agentMigrations() []migrationDefinition {
	return []migrationDefinition{
		{name: migrationBackfillAttemptCounter, apply: backfillAttemptCounter},
	}
}

func applyMigrations(db *gorm.DB, migrations []migrationDefinition, logger *zap.Logger) error {
	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// dedupeBadgeRows removes duplicate grants that predate the unique
// (user_id, badge_type) index, keeping the earliest.
func dedupeBadgeRows(db *gorm.DB) error {
	return db.Exec(`
		DELETE FROM badges WHERE rowid NOT IN (
			SELECT MIN(rowid) FROM badges GROUP BY user_id, badge_type
		);`).Error
}

// backfillAttemptCounter normalizes attempt counters written before the
// column carried a NOT NULL default.
func backfillAttemptCounter(db *gorm.DB) error {
	return db.Exec(`UPDATE submissions SET attempt_count = 0 WHERE attempt_count IS NULL;`).Error
}
