package intake

import (
	"context"
	"errors"
	"time"

	"github.com/terraguardian/core/internal/awards"
	"github.com/terraguardian/core/internal/users"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ActivityStore computes authoritative activity snapshots and stores badge
// grants. It backs the award evaluation engine on the server side and the
// snapshot/badge endpoints consumed by agents.
type ActivityStore struct {
	db    *gorm.DB
	clock func() time.Time
}

// NewActivityStore constructs the store.
func NewActivityStore(db *gorm.DB, clock func() time.Time) (*ActivityStore, error) {
	if db == nil {
		return nil, errors.New("intake: database handle is required")
	}
	if clock == nil {
		clock = time.Now
	}
	return &ActivityStore{db: db, clock: clock}, nil
}

// Snapshot aggregates the user's activity. It reads the same tables intake
// writes, so it is read-after-write consistent with Process.
func (s *ActivityStore) Snapshot(ctx context.Context, userID string) (awards.Snapshot, error) {
	var user users.User
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Take(&user).Error
	if err != nil {
		return awards.Snapshot{}, err
	}

	var questsCompleted int64
	err = s.db.WithContext(ctx).
		Model(&Record{}).
		Where("user_id = ?", userID).
		Count(&questsCompleted).Error
	if err != nil {
		return awards.Snapshot{}, err
	}

	var questTypes int64
	err = s.db.WithContext(ctx).
		Model(&Record{}).
		Joins("JOIN quests ON quests.quest_id = submission_records.quest_id").
		Where("submission_records.user_id = ?", userID).
		Distinct("quests.type").
		Count(&questTypes).Error
	if err != nil {
		return awards.Snapshot{}, err
	}

	var perfect int64
	err = s.db.WithContext(ctx).
		Model(&Record{}).
		Where("user_id = ? AND validation_passed = ? AND validation_confidence > ?", userID, true, 0.9).
		Count(&perfect).Error
	if err != nil {
		return awards.Snapshot{}, err
	}

	var outranked int64
	err = s.db.WithContext(ctx).
		Model(&users.User{}).
		Where("points > ?", user.Points).
		Count(&outranked).Error
	if err != nil {
		return awards.Snapshot{}, err
	}

	var earlier int64
	err = s.db.WithContext(ctx).
		Model(&users.User{}).
		Where("created_at < ?", user.CreatedAt).
		Count(&earlier).Error
	if err != nil {
		return awards.Snapshot{}, err
	}

	return awards.Snapshot{
		UserID:              userID,
		Points:              user.Points,
		StreakDays:          user.StreakDays,
		QuestsCompleted:     int(questsCompleted),
		QuestTypesCompleted: int(questTypes),
		PerfectValidations:  int(perfect),
		CommunityRank:       int(outranked) + 1,
		UserRank:            int(earlier) + 1,
	}, nil
}

// Grant inserts a badge row. The unique (user_id, badge_type) index makes a
// duplicate insert a no-op reported as granted=false.
func (s *ActivityStore) Grant(ctx context.Context, userID string, badgeType awards.BadgeType) (bool, error) {
	badge := awards.Badge{
		UserID:          userID,
		BadgeType:       badgeType,
		EarnedAtSeconds: s.clock().UTC().Unix(),
	}
	tx := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&badge)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// ListBadges returns the user's earned badges, newest first.
func (s *ActivityStore) ListBadges(ctx context.Context, userID string) ([]awards.Badge, error) {
	var badges []awards.Badge
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("earned_at_s DESC").
		Find(&badges).Error
	if err != nil {
		return nil, err
	}
	return badges, nil
}
