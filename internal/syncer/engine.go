package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/terraguardian/core/internal/quests"
	"github.com/terraguardian/core/internal/submissions"
	"go.uber.org/zap"
)

var (
	errMissingStore      = errors.New("submission store is required")
	errMissingRemote     = errors.New("remote service is required")
	errMissingIDProvider = errors.New("id provider is required")
)

const (
	defaultMaxAttempts = 5
	defaultBackoffBase = time.Second
	defaultBackoffMax  = 2 * time.Minute
)

// Config describes the dependencies of the sync engine.
type Config struct {
	Store      *submissions.Store
	Remote     RemoteService
	Awards     AwardEvaluator
	IDProvider submissions.IDProvider
	Clock      func() time.Time
	// MaxAttempts caps consecutive failed sync attempts per submission
	// before it is parked as sync-failed.
	MaxAttempts int
	BackoffBase time.Duration
	BackoffMax  time.Duration
	Logger      *zap.Logger
}

// Engine drives convergence between local pending state and the remote
// service. At most one sync pass runs at a time; extra triggers coalesce into
// a single follow-up pass instead of racing retries.
type Engine struct {
	store       *submissions.Store
	remote      RemoteService
	awards      AwardEvaluator
	idProvider  submissions.IDProvider
	clock       func() time.Time
	maxAttempts int
	backoffBase time.Duration
	backoffMax  time.Duration
	logger      *zap.Logger
	dispatcher  *eventDispatcher

	mu         sync.Mutex
	idle       *sync.Cond
	running    bool
	rerun      bool
	online     bool
	cancelPass context.CancelFunc
}

// NewEngine constructs the sync engine. The engine assumes connectivity until
// NotifyOffline is called.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, errMissingStore
	}
	if cfg.Remote == nil {
		return nil, errMissingRemote
	}
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	backoffBase := cfg.BackoffBase
	if backoffBase <= 0 {
		backoffBase = defaultBackoffBase
	}
	backoffMax := cfg.BackoffMax
	if backoffMax <= 0 {
		backoffMax = defaultBackoffMax
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	engine := &Engine{
		store:       cfg.Store,
		remote:      cfg.Remote,
		awards:      cfg.Awards,
		idProvider:  cfg.IDProvider,
		clock:       clock,
		maxAttempts: maxAttempts,
		backoffBase: backoffBase,
		backoffMax:  backoffMax,
		logger:      logger,
		dispatcher:  newEventDispatcher(),
		online:      true,
	}
	engine.idle = sync.NewCond(&engine.mu)
	return engine, nil
}

// Capture persists a new submission locally and schedules a sync pass when
// online. It returns the client-generated submission id.
func (e *Engine) Capture(ctx context.Context, questID quests.QuestID, photoRef string, lat, lng *float64) (quests.SubmissionID, error) {
	submissionID, err := e.idProvider.NewID()
	if err != nil {
		return "", err
	}
	submission := submissions.Submission{
		SubmissionID:      submissionID,
		UserID:            e.store.Owner(),
		QuestID:           questID.String(),
		PhotoRef:          photoRef,
		LocationLat:       lat,
		LocationLng:       lng,
		CapturedAtSeconds: e.clock().UTC().Unix(),
	}
	if err := e.store.Save(ctx, submission); err != nil {
		return "", err
	}
	if e.isOnline() {
		e.TriggerSync(ctx)
	}
	return quests.SubmissionID(submissionID), nil
}

// EnqueueAction buffers a generic remote action for at-least-once delivery.
func (e *Engine) EnqueueAction(ctx context.Context, action submissions.QueueAction, entity, payloadJSON string) (submissions.SyncQueueItem, error) {
	item, err := e.store.Enqueue(ctx, action, entity, payloadJSON)
	if err != nil {
		return submissions.SyncQueueItem{}, err
	}
	if e.isOnline() {
		e.TriggerSync(ctx)
	}
	return item, nil
}

// PendingCount reports how many submissions await sync.
func (e *Engine) PendingCount(ctx context.Context) (int64, error) {
	return e.store.PendingCount(ctx)
}

// Subscribe returns a stream of sync events. The subscription is released
// when ctx ends or the returned cancel function runs; the stream itself is
// never closed, so consumers should select on their ctx rather than ranging
// to completion.
func (e *Engine) Subscribe(ctx context.Context) (<-chan Event, func()) {
	return e.dispatcher.subscribe(ctx)
}

// NotifyOnline records a connectivity transition to online and schedules a
// sync pass.
func (e *Engine) NotifyOnline(ctx context.Context) {
	e.mu.Lock()
	wasOnline := e.online
	e.online = true
	e.mu.Unlock()
	if !wasOnline {
		e.TriggerSync(ctx)
	}
}

// NotifyOffline records a connectivity transition to offline. Subsequent
// passes are skipped until NotifyOnline.
func (e *Engine) NotifyOffline() {
	e.mu.Lock()
	e.online = false
	e.mu.Unlock()
}

// SyncNow schedules an explicit user-initiated sync pass.
func (e *Engine) SyncNow(ctx context.Context) {
	e.TriggerSync(ctx)
}

// RetrySubmission re-arms a parked submission for sync and schedules a pass.
func (e *Engine) RetrySubmission(ctx context.Context, submissionID string) error {
	if err := e.store.ResetForRetry(ctx, submissionID); err != nil {
		return err
	}
	e.TriggerSync(ctx)
	return nil
}

// StartPeriodic schedules sync passes on a fixed interval while online until
// ctx ends.
func (e *Engine) StartPeriodic(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if e.isOnline() {
					e.TriggerSync(ctx)
				}
			}
		}
	}()
}

// TriggerSync schedules a sync pass. If a pass is already running the
// trigger coalesces into one follow-up pass.
func (e *Engine) TriggerSync(ctx context.Context) {
	e.mu.Lock()
	if e.running {
		e.rerun = true
		e.mu.Unlock()
		return
	}
	e.running = true
	passCtx, cancel := context.WithCancel(ctx)
	e.cancelPass = cancel
	e.mu.Unlock()

	go e.runLoop(passCtx, cancel)
}

// Wait blocks until no sync pass is running.
func (e *Engine) Wait() {
	e.mu.Lock()
	for e.running {
		e.idle.Wait()
	}
	e.mu.Unlock()
}

// Logout cancels any in-flight pass without marking submissions synced, then
// wipes local state. In-flight remote calls are abandoned; their submissions
// stay unsynced.
func (e *Engine) Logout(ctx context.Context) error {
	e.mu.Lock()
	if e.cancelPass != nil {
		e.cancelPass()
	}
	e.mu.Unlock()
	e.Wait()
	return e.store.ClearAll(ctx)
}

func (e *Engine) isOnline() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.online
}

func (e *Engine) runLoop(ctx context.Context, cancel context.CancelFunc) {
	defer cancel()
	for {
		e.pass(ctx)
		e.mu.Lock()
		if e.rerun && ctx.Err() == nil {
			e.rerun = false
			e.mu.Unlock()
			continue
		}
		e.rerun = false
		e.running = false
		e.cancelPass = nil
		e.idle.Broadcast()
		e.mu.Unlock()
		return
	}
}

func (e *Engine) pass(ctx context.Context) {
	if !e.isOnline() || ctx.Err() != nil {
		return
	}

	pending, err := e.store.ListUnsynced(ctx)
	if err != nil {
		e.logger.Error("sync pass aborted: listing unsynced failed", zap.Error(err))
		return
	}
	for _, submission := range pending {
		if ctx.Err() != nil {
			return
		}
		e.syncSubmission(ctx, submission)
	}

	items, err := e.store.ListQueue(ctx)
	if err != nil {
		e.logger.Error("sync pass aborted: listing queue failed", zap.Error(err))
		return
	}
	for _, item := range items {
		if ctx.Err() != nil {
			return
		}
		e.pushQueueItem(ctx, item)
	}

	e.dispatcher.publish(Event{Type: EventPassCompleted, Timestamp: e.clock()})
}

func (e *Engine) syncSubmission(ctx context.Context, submission submissions.Submission) {
	remaining := e.maxAttempts - submission.AttemptCount
	if remaining <= 0 {
		// Attempt budget was exhausted before the failed flag stuck.
		if err := e.store.MarkSyncFailed(ctx, submission.SubmissionID); err != nil {
			e.logger.Error("marking submission failed", zap.Error(err))
		}
		return
	}

	request := SubmissionRequest{
		SubmissionID: submission.SubmissionID,
		UserID:       submission.UserID,
		QuestID:      submission.QuestID,
		PhotoRef:     submission.PhotoRef,
		LocationLat:  submission.LocationLat,
		LocationLng:  submission.LocationLng,
	}

	var result SubmissionResult
	operation := func() error {
		outcome, err := e.remote.SubmitSubmission(ctx, request)
		if err != nil {
			if bumpErr := e.store.BumpAttempt(ctx, submission.SubmissionID); bumpErr != nil {
				e.logger.Error("bumping attempt count failed", zap.Error(bumpErr))
			}
			if IsValidationRejected(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		result = outcome
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = e.backoffBase
	policy.MaxInterval = e.backoffMax
	policy.MaxElapsedTime = 0

	notify := func(err error, delay time.Duration) {
		e.logger.Warn("submission sync attempt failed",
			zap.String("submission_id", submission.SubmissionID),
			zap.Duration("backoff", delay),
			zap.Error(err))
	}

	err := backoff.RetryNotify(
		operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(remaining-1)), ctx),
		notify,
	)
	if err != nil {
		if ctx.Err() != nil && !IsValidationRejected(err) {
			// Cancelled mid-flight: leave the submission pending for the
			// next pass rather than consuming its failed state.
			return
		}
		if markErr := e.store.MarkSyncFailed(ctx, submission.SubmissionID); markErr != nil {
			e.logger.Error("marking submission failed", zap.Error(markErr))
		}
		e.logger.Error("submission sync exhausted",
			zap.String("submission_id", submission.SubmissionID),
			zap.Bool("terminal", IsValidationRejected(err)),
			zap.Error(err))
		e.dispatcher.publish(Event{
			Type:         EventSubmissionFailed,
			SubmissionID: submission.SubmissionID,
			Err:          err,
			Timestamp:    e.clock(),
		})
		return
	}

	if err := e.store.MarkSynced(ctx, submission.SubmissionID, result.PointsEarned, result.Validation); err != nil {
		e.logger.Error("persisting sync outcome failed",
			zap.String("submission_id", submission.SubmissionID),
			zap.Error(err))
		return
	}
	e.dispatcher.publish(Event{
		Type:         EventSubmissionSynced,
		SubmissionID: submission.SubmissionID,
		PointsEarned: result.PointsEarned,
		Timestamp:    e.clock(),
	})

	if e.awards == nil {
		return
	}
	badges, err := e.awards.Evaluate(ctx, submission.UserID)
	if err != nil {
		e.logger.Error("award evaluation failed",
			zap.String("user_id", submission.UserID),
			zap.Error(err))
		return
	}
	if len(badges) > 0 {
		e.dispatcher.publish(Event{
			Type:         EventBadgesEarned,
			SubmissionID: submission.SubmissionID,
			Badges:       badges,
			Timestamp:    e.clock(),
		})
	}
}

// pushQueueItem attempts one delivery of a generic queued action. The item is
// removed only on confirmed acknowledgment; otherwise its retry count grows
// and it stays queued for the next pass.
func (e *Engine) pushQueueItem(ctx context.Context, item submissions.SyncQueueItem) {
	if err := e.remote.PushAction(ctx, item); err != nil {
		if ctx.Err() != nil {
			return
		}
		if bumpErr := e.store.BumpQueueRetry(ctx, item.QueueID); bumpErr != nil {
			e.logger.Error("bumping queue retry failed", zap.Error(bumpErr))
		}
		e.logger.Warn("queue item delivery deferred",
			zap.String("queue_id", item.QueueID),
			zap.String("entity", item.Entity),
			zap.Error(err))
		e.dispatcher.publish(Event{
			Type:      EventQueueItemDeferred,
			QueueID:   item.QueueID,
			Err:       err,
			Timestamp: e.clock(),
		})
		return
	}
	if err := e.store.Dequeue(ctx, item.QueueID); err != nil {
		e.logger.Error("dequeue after ack failed",
			zap.String("queue_id", item.QueueID),
			zap.Error(err))
		return
	}
	e.dispatcher.publish(Event{
		Type:      EventQueueItemAcked,
		QueueID:   item.QueueID,
		Timestamp: e.clock(),
	})
}
