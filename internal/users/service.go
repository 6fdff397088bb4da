package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/terraguardian/core/internal/awards"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrInvalidUser indicates an empty user identifier.
var ErrInvalidUser = errors.New("users: invalid user id")

// ServiceConfig describes the dependencies of the user service.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
}

// Service manages server-side user records, their points and streaks.
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

// NewService constructs the user service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{db: cfg.Database, now: clock}, nil
}

// Bootstrap returns the user record for the id, creating it on first sight.
func (s *Service) Bootstrap(ctx context.Context, userID string) (User, error) {
	if userID == "" {
		return User{}, ErrInvalidUser
	}
	var user User
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = User{ID: userID}
		createErr := s.db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&user).Error
		if createErr != nil {
			return User{}, createErr
		}
		// Re-read to cover the concurrent-create no-op path.
		if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&user).Error; err != nil {
			return User{}, err
		}
		return user, nil
	}
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// Get loads a user record.
func (s *Service) Get(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Take(&user).Error
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// ApplyActivity adds a points delta to the user and advances the streak under
// the activity-window policy. It must run inside the same transaction as the
// submission insert so award evaluation never sees a stale snapshot. The
// single-connection SQLite pool serializes concurrent writers.
func ApplyActivity(tx *gorm.DB, userID string, pointsDelta int, now time.Time) (User, error) {
	if userID == "" {
		return User{}, ErrInvalidUser
	}
	var user User
	err := tx.Where("user_id = ?", userID).
		Take(&user).Error
	if err != nil {
		return User{}, err
	}

	elapsed := now.Sub(time.Unix(user.LastActiveSeconds, 0))
	user.StreakDays = awards.NextStreak(user.StreakDays, elapsed)
	user.Points += pointsDelta
	if user.Points < 0 {
		user.Points = 0
	}
	user.LastActiveSeconds = now.UTC().Unix()

	err = tx.Model(&User{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"points":        user.Points,
			"streak_days":   user.StreakDays,
			"last_active_s": user.LastActiveSeconds,
		}).Error
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// Leaderboard returns the top users ordered by points descending.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]User, error) {
	if limit <= 0 {
		limit = 10
	}
	var top []User
	err := s.db.WithContext(ctx).
		Order("points DESC, user_id ASC").
		Limit(limit).
		Find(&top).Error
	if err != nil {
		return nil, err
	}
	return top, nil
}
