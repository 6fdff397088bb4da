package awards

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var (
	errMissingSnapshotSource = errors.New("snapshot source is required")
	errMissingBadgeGranter   = errors.New("badge granter is required")
	noOpLogger               = zap.NewNop()
)

const (
	opEngineNew = "awards.engine.new"
	opEvaluate  = "awards.evaluate"
)

// EngineError carries an operation-coded award engine failure.
type EngineError struct {
	code string
	err  error
}

func (e *EngineError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *EngineError) Unwrap() error {
	return e.err
}

// Code returns the operation-coded failure identifier.
func (e *EngineError) Code() string {
	return e.code
}

func newEngineError(operation, reason string, cause error) error {
	return &EngineError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

// SnapshotSource fetches the authoritative activity snapshot for a user.
type SnapshotSource interface {
	Snapshot(ctx context.Context, userID string) (Snapshot, error)
}

// BadgeGranter inserts a badge grant. It reports granted=false without error
// when the badge already exists; the remote uniqueness constraint is the
// source of truth for duplicates.
type BadgeGranter interface {
	Grant(ctx context.Context, userID string, badgeType BadgeType) (granted bool, err error)
}

// EngineConfig describes the dependencies of the award evaluation engine.
type EngineConfig struct {
	Snapshots SnapshotSource
	Badges    BadgeGranter
	Rules     []Criterion
	Logger    *zap.Logger
}

// Engine evaluates badge eligibility from a user's activity snapshot and
// grants newly earned badges exactly once.
type Engine struct {
	snapshots SnapshotSource
	badges    BadgeGranter
	rules     []Criterion
	logger    *zap.Logger
}

// NewEngine constructs an award evaluation engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Snapshots == nil {
		return nil, newEngineError(opEngineNew, "missing_snapshot_source", errMissingSnapshotSource)
	}
	if cfg.Badges == nil {
		return nil, newEngineError(opEngineNew, "missing_badge_granter", errMissingBadgeGranter)
	}
	rules := cfg.Rules
	if rules == nil {
		rules = DefaultRules()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Engine{
		snapshots: cfg.Snapshots,
		badges:    cfg.Badges,
		rules:     rules,
		logger:    logger,
	}, nil
}

// Evaluate fetches the current snapshot, interprets every rule against it and
// grants any badge not yet held. It returns the display names of badges
// granted by this call; a grant swallowed by the uniqueness constraint is the
// expected race outcome and is not reported as new or as an error.
func (e *Engine) Evaluate(ctx context.Context, userID string) ([]string, error) {
	snapshot, err := e.snapshots.Snapshot(ctx, userID)
	if err != nil {
		e.logger.Error("award snapshot fetch failed",
			zap.String("operation", opEvaluate),
			zap.String("user_id", userID),
			zap.Error(err))
		return nil, newEngineError(opEvaluate, "snapshot_failed", err)
	}

	var earned []string
	for _, rule := range e.rules {
		satisfied, err := rule.Satisfied(snapshot)
		if err != nil {
			e.logger.Warn("skipping unevaluable badge rule",
				zap.String("badge", string(rule.Badge)),
				zap.Error(err))
			continue
		}
		if !satisfied {
			continue
		}

		granted, err := e.badges.Grant(ctx, userID, rule.Badge)
		if err != nil {
			e.logger.Error("badge grant failed",
				zap.String("operation", opEvaluate),
				zap.String("user_id", userID),
				zap.String("badge", string(rule.Badge)),
				zap.Error(err))
			return earned, newEngineError(opEvaluate, "grant_failed", err)
		}
		if !granted {
			e.logger.Debug("badge already granted",
				zap.String("user_id", userID),
				zap.String("badge", string(rule.Badge)))
			continue
		}
		earned = append(earned, rule.Name)
	}
	return earned, nil
}
