package syncer

import (
	"context"

	"github.com/terraguardian/core/internal/awards"
	"github.com/terraguardian/core/internal/submissions"
)

// SubmissionRequest is the payload pushed to the remote submission endpoint.
// The client-generated submission id keys server-side idempotency.
type SubmissionRequest struct {
	SubmissionID string
	UserID       string
	QuestID      string
	PhotoRef     string
	LocationLat  *float64
	LocationLng  *float64
}

// SubmissionResult is the server outcome for a pushed submission.
type SubmissionResult struct {
	Validation   awards.ValidationResult
	PointsEarned int
	Duplicate    bool
}

// RemoteService is the remote system of record as seen by the sync engine.
// SubmitSubmission must be idempotent on the submission id; PushAction must
// be idempotent on the queue item id. Transient failures are reported as
// NetworkError, terminal rejections as ValidationRejected.
type RemoteService interface {
	SubmitSubmission(ctx context.Context, req SubmissionRequest) (SubmissionResult, error)
	PushAction(ctx context.Context, item submissions.SyncQueueItem) error
}

// AwardEvaluator recomputes badge eligibility after a user's points update is
// durably persisted remotely.
type AwardEvaluator interface {
	Evaluate(ctx context.Context, userID string) ([]string, error)
}
