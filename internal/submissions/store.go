package submissions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/terraguardian/core/internal/awards"
	"github.com/terraguardian/core/internal/quests"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingOwner      = errors.New("store owner user id is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()

	// ErrWrongOwner indicates a submission for a user other than the store owner.
	ErrWrongOwner = errors.New("submissions: submission user does not match store owner")
	// ErrNotFound indicates the requested submission does not exist locally.
	ErrNotFound = errors.New("submissions: submission not found")
)

const (
	opStoreNew       = "submissions.store.new"
	opSave           = "submissions.save"
	opListUnsynced   = "submissions.list_unsynced"
	opListFailed     = "submissions.list_failed"
	opGet            = "submissions.get"
	opMarkSynced     = "submissions.mark_synced"
	opMarkFailed     = "submissions.mark_sync_failed"
	opBumpAttempt    = "submissions.bump_attempt"
	opResetForRetry  = "submissions.reset_for_retry"
	opPendingCount   = "submissions.pending_count"
	opEnqueue        = "submissions.enqueue"
	opListQueue      = "submissions.list_queue"
	opDequeue        = "submissions.dequeue"
	opBumpQueueRetry = "submissions.bump_queue_retry"
	opSaveUser       = "submissions.save_user"
	opCachedUser     = "submissions.cached_user"
	opReplaceCatalog = "submissions.replace_catalog"
	opListQuests     = "submissions.list_quests"
	opQuestByID      = "submissions.quest_by_id"
	opClearAll       = "submissions.clear_all"
)

// StorageError reports a local persistence failure. It is surfaced to the
// caller, never swallowed; a captured submission must not silently disappear.
type StorageError struct {
	code string
	err  error
}

func (e *StorageError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *StorageError) Unwrap() error {
	return e.err
}

// Code returns the operation-coded failure identifier.
func (e *StorageError) Code() string {
	return e.code
}

func newStorageError(operation, reason string, cause error) error {
	return &StorageError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

// IDProvider issues identifiers for queue items.
type IDProvider interface {
	NewID() (string, error)
}

// StoreConfig describes the dependencies of the local submission store.
type StoreConfig struct {
	Database   *gorm.DB
	Owner      quests.UserID
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Store owns durable local persistence of submissions, the generic sync
// queue, the cached user row and the quest catalog cache. It is scoped to a
// single owning user; the sync engine is the sole mutator of sync state.
type Store struct {
	db         *gorm.DB
	owner      string
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewStore constructs the local store.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Database == nil {
		return nil, newStorageError(opStoreNew, "missing_database", errMissingDatabase)
	}
	if cfg.Owner.String() == "" {
		return nil, newStorageError(opStoreNew, "missing_owner", errMissingOwner)
	}
	if cfg.IDProvider == nil {
		return nil, newStorageError(opStoreNew, "missing_id_provider", errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Store{
		db:         cfg.Database,
		owner:      cfg.Owner.String(),
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// Owner returns the user id the store is scoped to.
func (s *Store) Owner() string {
	return s.owner
}

// Save inserts a newly captured submission with synced=false.
func (s *Store) Save(ctx context.Context, submission Submission) error {
	if submission.SubmissionID == "" {
		return newStorageError(opSave, "missing_submission_id", quests.ErrInvalidSubmissionID)
	}
	if submission.QuestID == "" {
		return newStorageError(opSave, "missing_quest_id", quests.ErrInvalidQuestID)
	}
	if submission.UserID != s.owner {
		return newStorageError(opSave, "wrong_owner", ErrWrongOwner)
	}
	submission.Synced = false
	submission.SyncFailed = false
	submission.AttemptCount = 0
	if submission.CapturedAtSeconds <= 0 {
		submission.CapturedAtSeconds = s.clock().UTC().Unix()
	}
	if err := s.db.WithContext(ctx).Create(&submission).Error; err != nil {
		s.logError(opSave, "insert_failed", err, zap.String("submission_id", submission.SubmissionID))
		return newStorageError(opSave, "insert_failed", err)
	}
	return nil
}

// ListUnsynced returns submissions awaiting sync, oldest-first by capture
// timestamp. Submissions parked as sync-failed are excluded from automatic
// retry and listed via ListFailed instead.
func (s *Store) ListUnsynced(ctx context.Context) ([]Submission, error) {
	var pending []Submission
	err := s.db.WithContext(ctx).
		Where("synced = ? AND sync_failed = ?", false, false).
		Order("captured_at_s ASC").
		Find(&pending).Error
	if err != nil {
		s.logError(opListUnsynced, "query_failed", err)
		return nil, newStorageError(opListUnsynced, "query_failed", err)
	}
	return pending, nil
}

// ListFailed returns submissions that exhausted automatic retries and await a
// manual retry.
func (s *Store) ListFailed(ctx context.Context) ([]Submission, error) {
	var failed []Submission
	err := s.db.WithContext(ctx).
		Where("synced = ? AND sync_failed = ?", false, true).
		Order("captured_at_s ASC").
		Find(&failed).Error
	if err != nil {
		s.logError(opListFailed, "query_failed", err)
		return nil, newStorageError(opListFailed, "query_failed", err)
	}
	return failed, nil
}

// Get loads one submission by id.
func (s *Store) Get(ctx context.Context, submissionID string) (Submission, error) {
	var stored Submission
	err := s.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Take(&stored).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Submission{}, fmt.Errorf("%w: %s", ErrNotFound, submissionID)
	}
	if err != nil {
		s.logError(opGet, "query_failed", err, zap.String("submission_id", submissionID))
		return Submission{}, newStorageError(opGet, "query_failed", err)
	}
	return stored, nil
}

// MarkSynced records the server outcome and flips the submission to synced.
// It is idempotent: once synced, points and validation are immutable and a
// repeated call is a no-op.
func (s *Store) MarkSynced(ctx context.Context, submissionID string, pointsEarned int, validation awards.ValidationResult) error {
	confidence := validation.Confidence
	passed := validation.Passed
	err := s.db.WithContext(ctx).
		Model(&Submission{}).
		Where("submission_id = ? AND synced = ?", submissionID, false).
		Updates(map[string]interface{}{
			"synced":                true,
			"sync_failed":           false,
			"points_earned":         pointsEarned,
			"validation_label":      validation.Label,
			"validation_confidence": confidence,
			"validation_passed":     passed,
		}).Error
	if err != nil {
		s.logError(opMarkSynced, "update_failed", err, zap.String("submission_id", submissionID))
		return newStorageError(opMarkSynced, "update_failed", err)
	}
	return nil
}

// MarkSyncFailed parks a submission after exhausted retries or a terminal
// rejection. The row is retained for manual retry, never discarded.
func (s *Store) MarkSyncFailed(ctx context.Context, submissionID string) error {
	err := s.db.WithContext(ctx).
		Model(&Submission{}).
		Where("submission_id = ? AND synced = ?", submissionID, false).
		Update("sync_failed", true).Error
	if err != nil {
		s.logError(opMarkFailed, "update_failed", err, zap.String("submission_id", submissionID))
		return newStorageError(opMarkFailed, "update_failed", err)
	}
	return nil
}

// BumpAttempt increments the attempt counter; the counter only increases.
func (s *Store) BumpAttempt(ctx context.Context, submissionID string) error {
	err := s.db.WithContext(ctx).
		Model(&Submission{}).
		Where("submission_id = ?", submissionID).
		Update("attempt_count", gorm.Expr("attempt_count + 1")).Error
	if err != nil {
		s.logError(opBumpAttempt, "update_failed", err, zap.String("submission_id", submissionID))
		return newStorageError(opBumpAttempt, "update_failed", err)
	}
	return nil
}

// ResetForRetry clears the failed flag and attempt counter ahead of a manual
// retry. Synced submissions are untouched.
func (s *Store) ResetForRetry(ctx context.Context, submissionID string) error {
	err := s.db.WithContext(ctx).
		Model(&Submission{}).
		Where("submission_id = ? AND synced = ?", submissionID, false).
		Updates(map[string]interface{}{
			"sync_failed":   false,
			"attempt_count": 0,
		}).Error
	if err != nil {
		s.logError(opResetForRetry, "update_failed", err, zap.String("submission_id", submissionID))
		return newStorageError(opResetForRetry, "update_failed", err)
	}
	return nil
}

// PendingCount reports how many captured submissions have not reached the
// server yet, including those parked as sync-failed.
func (s *Store) PendingCount(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&Submission{}).
		Where("synced = ?", false).
		Count(&count).Error
	if err != nil {
		s.logError(opPendingCount, "query_failed", err)
		return 0, newStorageError(opPendingCount, "query_failed", err)
	}
	return count, nil
}

// Enqueue appends a generic pending remote action with retry_count=0.
func (s *Store) Enqueue(ctx context.Context, action QueueAction, entity, payloadJSON string) (SyncQueueItem, error) {
	queueID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opEnqueue, "id_generation_failed", err)
		return SyncQueueItem{}, newStorageError(opEnqueue, "id_generation_failed", err)
	}
	item := SyncQueueItem{
		QueueID:          queueID,
		Action:           action,
		Entity:           entity,
		PayloadJSON:      payloadJSON,
		CreatedAtSeconds: s.clock().UTC().Unix(),
		RetryCount:       0,
	}
	if err := s.db.WithContext(ctx).Create(&item).Error; err != nil {
		s.logError(opEnqueue, "insert_failed", err, zap.String("queue_id", queueID))
		return SyncQueueItem{}, newStorageError(opEnqueue, "insert_failed", err)
	}
	return item, nil
}

// ListQueue returns pending queue items, oldest-first.
func (s *Store) ListQueue(ctx context.Context) ([]SyncQueueItem, error) {
	var items []SyncQueueItem
	err := s.db.WithContext(ctx).
		Order("created_at_s ASC").
		Find(&items).Error
	if err != nil {
		s.logError(opListQueue, "query_failed", err)
		return nil, newStorageError(opListQueue, "query_failed", err)
	}
	return items, nil
}

// Dequeue removes an acknowledged queue item. Removing an already-removed
// item is a no-op.
func (s *Store) Dequeue(ctx context.Context, queueID string) error {
	err := s.db.WithContext(ctx).
		Where("queue_id = ?", queueID).
		Delete(&SyncQueueItem{}).Error
	if err != nil {
		s.logError(opDequeue, "delete_failed", err, zap.String("queue_id", queueID))
		return newStorageError(opDequeue, "delete_failed", err)
	}
	return nil
}

// BumpQueueRetry increments a queue item's retry counter.
func (s *Store) BumpQueueRetry(ctx context.Context, queueID string) error {
	err := s.db.WithContext(ctx).
		Model(&SyncQueueItem{}).
		Where("queue_id = ?", queueID).
		Update("retry_count", gorm.Expr("retry_count + 1")).Error
	if err != nil {
		s.logError(opBumpQueueRetry, "update_failed", err, zap.String("queue_id", queueID))
		return newStorageError(opBumpQueueRetry, "update_failed", err)
	}
	return nil
}

// SaveUser refreshes the single-row local user mirror.
func (s *Store) SaveUser(ctx context.Context, user LocalUser) error {
	if user.UserID != s.owner {
		return newStorageError(opSaveUser, "wrong_owner", ErrWrongOwner)
	}
	user.RefreshedAtSeconds = s.clock().UTC().Unix()
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			UpdateAll: true,
		}).
		Create(&user).Error
	if err != nil {
		s.logError(opSaveUser, "upsert_failed", err)
		return newStorageError(opSaveUser, "upsert_failed", err)
	}
	return nil
}

// CachedUser returns the mirrored user row, or nil when never refreshed.
func (s *Store) CachedUser(ctx context.Context) (*LocalUser, error) {
	var cached LocalUser
	err := s.db.WithContext(ctx).
		Where("user_id = ?", s.owner).
		Take(&cached).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		s.logError(opCachedUser, "query_failed", err)
		return nil, newStorageError(opCachedUser, "query_failed", err)
	}
	return &cached, nil
}

// ReplaceCatalog swaps the offline quest catalog cache wholesale.
func (s *Store) ReplaceCatalog(ctx context.Context, catalog []quests.Quest) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&quests.Quest{}).Error; err != nil {
			return err
		}
		if len(catalog) == 0 {
			return nil
		}
		return tx.Create(&catalog).Error
	})
	if err != nil {
		s.logError(opReplaceCatalog, "replace_failed", err)
		return newStorageError(opReplaceCatalog, "replace_failed", err)
	}
	return nil
}

// ListQuests returns the cached quest catalog for offline browsing.
func (s *Store) ListQuests(ctx context.Context) ([]quests.Quest, error) {
	var catalog []quests.Quest
	err := s.db.WithContext(ctx).
		Order("quest_id ASC").
		Find(&catalog).Error
	if err != nil {
		s.logError(opListQuests, "query_failed", err)
		return nil, newStorageError(opListQuests, "query_failed", err)
	}
	return catalog, nil
}

// QuestByID returns one cached quest, or nil when not cached.
func (s *Store) QuestByID(ctx context.Context, questID string) (*quests.Quest, error) {
	var quest quests.Quest
	err := s.db.WithContext(ctx).
		Where("quest_id = ?", questID).
		Take(&quest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		s.logError(opQuestByID, "query_failed", err, zap.String("quest_id", questID))
		return nil, newStorageError(opQuestByID, "query_failed", err)
	}
	return &quest, nil
}

// ClearAll wipes every local table. Used only on explicit logout.
func (s *Store) ClearAll(ctx context.Context) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{&Submission{}, &SyncQueueItem{}, &LocalUser{}, &quests.Quest{}} {
			if err := tx.Where("1 = 1").Delete(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logError(opClearAll, "wipe_failed", err)
		return newStorageError(opClearAll, "wipe_failed", err)
	}
	return nil
}

func (s *Store) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("submission store error", attrs...)
}
