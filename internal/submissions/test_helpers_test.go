package submissions

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/terraguardian/core/internal/quests"
	"gorm.io/gorm"
)

type staticIDGenerator struct {
	ids   []string
	index int
}

func (g *staticIDGenerator) NewID() (string, error) {
	if g.index >= len(g.ids) {
		return "", errors.New("exhausted ids")
	}
	id := g.ids[g.index]
	g.index++
	return id, nil
}

func mustUserID(t *testing.T, value string) quests.UserID {
	t.Helper()
	id, err := quests.NewUserID(value)
	if err != nil {
		t.Fatalf("unexpected user id error: %v", err)
	}
	return id
}

func newTestStore(t *testing.T, queueIDs []string) (*Store, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:terra_store_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Submission{}, &SyncQueueItem{}, &LocalUser{}, &quests.Quest{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	clock := func() time.Time { return time.Unix(1700000600, 0).UTC() }
	store, err := NewStore(StoreConfig{
		Database:   db,
		Owner:      mustUserID(t, "user-1"),
		Clock:      clock,
		IDProvider: &staticIDGenerator{ids: queueIDs},
	})
	if err != nil {
		t.Fatalf("failed to construct store: %v", err)
	}
	return store, db
}

func mustSave(t *testing.T, store *Store, submissionID string, capturedAt int64) {
	t.Helper()
	err := store.Save(context.Background(), Submission{
		SubmissionID:      submissionID,
		UserID:            "user-1",
		QuestID:           "quest-soil-erosion-survey",
		PhotoRef:          "photo://" + submissionID,
		CapturedAtSeconds: capturedAt,
	})
	if err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}
}
