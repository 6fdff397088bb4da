package awards

import (
	"errors"
	"fmt"
)

// BadgeType identifies an achievement in the fixed badge catalog.
type BadgeType string

const (
	BadgeLandGuardian      BadgeType = "land_guardian"
	BadgeEcoWarrior        BadgeType = "eco_warrior"
	BadgeRestorationHero   BadgeType = "restoration_hero"
	BadgeStreakMaster      BadgeType = "streak_master"
	BadgeDiversityChampion BadgeType = "diversity_champion"
	BadgeCommunityLeader   BadgeType = "community_leader"
	BadgeEarlyAdopter      BadgeType = "early_adopter"
	BadgePerfectionist     BadgeType = "perfectionist"
)

// Snapshot is the server-computed aggregate of a user's activity used to
// evaluate badge criteria.
type Snapshot struct {
	UserID              string `json:"user_id"`
	Points              int    `json:"points"`
	StreakDays          int    `json:"streak_days"`
	QuestsCompleted     int    `json:"quests_completed"`
	QuestTypesCompleted int    `json:"quest_types_completed"`
	PerfectValidations  int    `json:"perfect_validations"`
	CommunityRank       int    `json:"community_rank"`
	UserRank            int    `json:"user_rank"`
}

// CriterionKind tags the snapshot field a criterion compares against.
type CriterionKind string

const (
	KindQuestsCompletedGTE    CriterionKind = "quests_completed_gte"
	KindStreakGTE             CriterionKind = "streak_gte"
	KindQuestTypesGTE         CriterionKind = "quest_types_gte"
	KindCommunityRankLTE      CriterionKind = "community_rank_lte"
	KindUserRankLTE           CriterionKind = "user_rank_lte"
	KindPerfectValidationsGTE CriterionKind = "perfect_validations_gte"
	KindPointsGTE             CriterionKind = "points_gte"
)

// ErrUnknownCriterionKind indicates a rule with a kind the interpreter does
// not understand; such a rule never grants anything.
var ErrUnknownCriterionKind = errors.New("awards: unknown criterion kind")

// Criterion is a data-driven badge rule evaluated by a single interpreter.
type Criterion struct {
	Badge       BadgeType     `json:"badge"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Kind        CriterionKind `json:"kind"`
	Threshold   int           `json:"threshold"`
}

// Satisfied interprets the criterion against the snapshot.
func (c Criterion) Satisfied(snapshot Snapshot) (bool, error) {
	switch c.Kind {
	case KindQuestsCompletedGTE:
		return snapshot.QuestsCompleted >= c.Threshold, nil
	case KindStreakGTE:
		return snapshot.StreakDays >= c.Threshold, nil
	case KindQuestTypesGTE:
		return snapshot.QuestTypesCompleted >= c.Threshold, nil
	case KindCommunityRankLTE:
		return snapshot.CommunityRank > 0 && snapshot.CommunityRank <= c.Threshold, nil
	case KindUserRankLTE:
		return snapshot.UserRank > 0 && snapshot.UserRank <= c.Threshold, nil
	case KindPerfectValidationsGTE:
		return snapshot.PerfectValidations >= c.Threshold, nil
	case KindPointsGTE:
		return snapshot.Points >= c.Threshold, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownCriterionKind, c.Kind)
	}
}

// DefaultRules returns the fixed badge rule set.
func DefaultRules() []Criterion {
	return []Criterion{
		{
			Badge:       BadgeLandGuardian,
			Name:        "Land Guardian",
			Description: "Complete 10 quests",
			Kind:        KindQuestsCompletedGTE,
			Threshold:   10,
		},
		{
			Badge:       BadgeEcoWarrior,
			Name:        "Eco Warrior",
			Description: "Complete 50 quests",
			Kind:        KindQuestsCompletedGTE,
			Threshold:   50,
		},
		{
			Badge:       BadgeRestorationHero,
			Name:        "Restoration Hero",
			Description: "Complete 100 quests",
			Kind:        KindQuestsCompletedGTE,
			Threshold:   100,
		},
		{
			Badge:       BadgeStreakMaster,
			Name:        "Streak Master",
			Description: "Maintain a 7-day streak",
			Kind:        KindStreakGTE,
			Threshold:   7,
		},
		{
			Badge:       BadgeDiversityChampion,
			Name:        "Diversity Champion",
			Description: "Complete all quest types",
			Kind:        KindQuestTypesGTE,
			Threshold:   5,
		},
		{
			Badge:       BadgeCommunityLeader,
			Name:        "Community Leader",
			Description: "Be in top 10 of community",
			Kind:        KindCommunityRankLTE,
			Threshold:   10,
		},
		{
			Badge:       BadgeEarlyAdopter,
			Name:        "Early Adopter",
			Description: "Be among first 100 users",
			Kind:        KindUserRankLTE,
			Threshold:   100,
		},
		{
			Badge:       BadgePerfectionist,
			Name:        "Perfectionist",
			Description: "Complete 10 quests with perfect validation",
			Kind:        KindPerfectValidationsGTE,
			Threshold:   10,
		},
	}
}
