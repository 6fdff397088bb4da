package database

import (
	"fmt"
	"testing"
	"time"

	"github.com/terraguardian/core/internal/quests"
	"github.com/terraguardian/core/internal/submissions"
	"go.uber.org/zap"
)

func memoryDSN(prefix string) string {
	return fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", prefix, time.Now().UnixNano())
}

func TestOpenServerSeedsCatalogAndRecordsMigrations(t *testing.T) {
	db, err := OpenServer(memoryDSN("terra_server_test"), zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open server database: %v", err)
	}

	var questCount int64
	if err := db.Model(&quests.Quest{}).Count(&questCount).Error; err != nil {
		t.Fatalf("failed to count quests: %v", err)
	}
	if questCount != 5 {
		t.Fatalf("expected 5 seeded quests, got %d", questCount)
	}

	var record migrationRecord
	if err := db.Where("name = ?", migrationDedupeBadgeRows).Take(&record).Error; err != nil {
		t.Fatalf("expected dedupe migration record: %v", err)
	}
	if record.AppliedAtSeconds == 0 {
		t.Fatalf("expected applied timestamp on migration record")
	}
}

func TestOpenServerDoesNotReseedExistingCatalog(t *testing.T) {
	dsn := memoryDSN("terra_server_reseed_test")
	db, err := OpenServer(dsn, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open server database: %v", err)
	}

	// A second bootstrap against the same database must leave the catalog alone.
	if err := seedQuestCatalog(db, zap.NewNop()); err != nil {
		t.Fatalf("unexpected reseed error: %v", err)
	}
	var questCount int64
	if err := db.Model(&quests.Quest{}).Count(&questCount).Error; err != nil {
		t.Fatalf("failed to count quests: %v", err)
	}
	if questCount != 5 {
		t.Fatalf("catalog must not be reseeded, got %d quests", questCount)
	}
}

func TestApplyMigrationsIsIdempotent(t *testing.T) {
	db, err := OpenServer(memoryDSN("terra_migrations_test"), zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open server database: %v", err)
	}

	if err := applyMigrations(db, serverMigrations(), zap.NewNop()); err != nil {
		t.Fatalf("unexpected repeat migration error: %v", err)
	}

	var count int64
	if err := db.Model(&migrationRecord{}).Where("name = ?", migrationDedupeBadgeRows).Count(&count).Error; err != nil {
		t.Fatalf("failed to count migration records: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected a single migration record, got %d", count)
	}
}

func TestOpenAgentBackfillsAttemptCounters(t *testing.T) {
	db, err := OpenAgent(memoryDSN("terra_agent_test"), zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open agent database: %v", err)
	}

	var record migrationRecord
	if err := db.Where("name = ?", migrationBackfillAttemptCounter).Take(&record).Error; err != nil {
		t.Fatalf("expected backfill migration record: %v", err)
	}

	// The agent schema must accept submission rows after migration.
	submission := submissions.Submission{
		SubmissionID:      "sub-1",
		UserID:            "user-1",
		QuestID:           "quest-1",
		PhotoRef:          "photo://x",
		CapturedAtSeconds: 1700000000,
	}
	if err := db.Create(&submission).Error; err != nil {
		t.Fatalf("failed to insert submission: %v", err)
	}
}
