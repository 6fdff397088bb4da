package intake

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/terraguardian/core/internal/awards"
	"github.com/terraguardian/core/internal/quests"
	"github.com/terraguardian/core/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrQuestNotFound is a terminal rejection: the submission references an
	// unknown quest and must not be retried.
	ErrQuestNotFound = errors.New("intake: quest not found")
	// ErrSubmissionOwnership is a terminal rejection: the submission id was
	// already used by a different user.
	ErrSubmissionOwnership = errors.New("intake: submission id owned by another user")

	errMissingDatabase  = errors.New("database handle is required")
	errMissingValidator = errors.New("photo validator is required")
)

// Request describes one submission arriving from a sync pass.
type Request struct {
	SubmissionID string
	UserID       string
	QuestID      string
	PhotoRef     string
	LocationLat  *float64
	LocationLng  *float64
}

// Result is the server outcome for a submission. Duplicate marks a replayed
// request whose stored outcome was returned without a second award.
type Result struct {
	Validation   awards.ValidationResult
	PointsEarned int
	Duplicate    bool
}

// ServiceConfig describes the dependencies of the intake service.
type ServiceConfig struct {
	Database  *gorm.DB
	Clock     func() time.Time
	Validator PhotoValidator
	Logger    *zap.Logger
}

// Service processes submissions into the authoritative store: validation,
// points, user aggregates. Intake is idempotent on the client-generated
// submission id so a retried request never double-awards points.
type Service struct {
	db        *gorm.DB
	clock     func() time.Time
	validator PhotoValidator
	logger    *zap.Logger
}

// NewService constructs the intake service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("intake: %w", errMissingDatabase)
	}
	if cfg.Validator == nil {
		return nil, fmt.Errorf("intake: %w", errMissingValidator)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: cfg.Database, clock: clock, validator: cfg.Validator, logger: logger}, nil
}

// Process stores the submission, computes its points and updates the user's
// aggregates in one transaction. A replay of a known submission id returns
// the original outcome.
func (s *Service) Process(ctx context.Context, req Request) (Result, error) {
	if req.SubmissionID == "" || req.UserID == "" || req.QuestID == "" {
		return Result{}, fmt.Errorf("%w: submission, user and quest ids are required", ErrQuestNotFound)
	}

	var result Result
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Record
		err := tx.Where("submission_id = ?", req.SubmissionID).Take(&existing).Error
		if err == nil {
			if existing.UserID != req.UserID {
				return ErrSubmissionOwnership
			}
			result = Result{
				Validation: awards.ValidationResult{
					Label:      existing.ValidationLabel,
					Confidence: existing.ValidationConfidence,
					Passed:     existing.ValidationPassed,
				},
				PointsEarned: existing.PointsEarned,
				Duplicate:    true,
			}
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var quest quests.Quest
		err = tx.Where("quest_id = ?", req.QuestID).Take(&quest).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", ErrQuestNotFound, req.QuestID)
		}
		if err != nil {
			return err
		}

		validation, err := s.validator.Validate(ctx, quest.Type, req.PhotoRef)
		if err != nil {
			return err
		}

		confidence := validation.Confidence
		pointsEarned := awards.Points(quest.Difficulty, &confidence)
		now := s.clock().UTC()

		record := Record{
			SubmissionID:         req.SubmissionID,
			UserID:               req.UserID,
			QuestID:              req.QuestID,
			PhotoRef:             req.PhotoRef,
			LocationLat:          req.LocationLat,
			LocationLng:          req.LocationLng,
			SubmittedAtSeconds:   now.Unix(),
			ValidationLabel:      validation.Label,
			ValidationConfidence: validation.Confidence,
			ValidationPassed:     validation.Passed,
			PointsEarned:         pointsEarned,
		}
		if err := tx.Create(&record).Error; err != nil {
			return err
		}

		if _, err := users.ApplyActivity(tx, req.UserID, pointsEarned, now); err != nil {
			return err
		}

		result = Result{Validation: validation, PointsEarned: pointsEarned}
		return nil
	})
	if txErr != nil {
		s.logger.Error("submission intake failed",
			zap.String("submission_id", req.SubmissionID),
			zap.String("user_id", req.UserID),
			zap.Error(txErr))
		return Result{}, txErr
	}

	if result.Duplicate {
		s.logger.Debug("replayed submission acknowledged",
			zap.String("submission_id", req.SubmissionID))
	}
	return result, nil
}

// AcknowledgeAction records a generic queued action in the idempotency
// ledger. A replayed action id is acknowledged without reapplying.
func (s *Service) AcknowledgeAction(ctx context.Context, record ActionRecord) (duplicate bool, err error) {
	if record.ActionID == "" || record.UserID == "" {
		return false, fmt.Errorf("intake: action and user ids are required")
	}
	record.ReceivedAtSeconds = s.clock().UTC().Unix()
	tx := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&record)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected == 0, nil
}

// ListRecords returns a user's submission records, newest first.
func (s *Service) ListRecords(ctx context.Context, userID string) ([]Record, error) {
	var records []Record
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("submitted_at_s DESC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
