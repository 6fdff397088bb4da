package quests

import (
	"errors"
	"fmt"
)

// QuestType enumerates the land-monitoring task categories.
type QuestType string

const (
	QuestTypeSoilErosion      QuestType = "soil_erosion"
	QuestTypeCropHealth       QuestType = "crop_health"
	QuestTypeWaterMonitoring  QuestType = "water_monitoring"
	QuestTypeVegetationHealth QuestType = "vegetation_health"
	QuestTypeDegradedLand     QuestType = "degraded_land"
)

// AllQuestTypes lists every supported quest type.
var AllQuestTypes = []QuestType{
	QuestTypeSoilErosion,
	QuestTypeCropHealth,
	QuestTypeWaterMonitoring,
	QuestTypeVegetationHealth,
	QuestTypeDegradedLand,
}

// ErrInvalidQuestType indicates an unknown quest type value.
var ErrInvalidQuestType = errors.New("quests: invalid quest type")

// ParseQuestType validates a raw quest type value.
func ParseQuestType(rawInput string) (QuestType, error) {
	candidate := QuestType(rawInput)
	for _, questType := range AllQuestTypes {
		if candidate == questType {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidQuestType, rawInput)
}

// Difficulty determines the base point reward of a quest.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ErrInvalidDifficulty indicates an unknown difficulty value.
var ErrInvalidDifficulty = errors.New("quests: invalid difficulty")

// ParseDifficulty validates a raw difficulty value.
func ParseDifficulty(rawInput string) (Difficulty, error) {
	switch Difficulty(rawInput) {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return Difficulty(rawInput), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDifficulty, rawInput)
	}
}

// BasePoints returns the point reward tier for the difficulty.
func (d Difficulty) BasePoints() int {
	switch d {
	case DifficultyEasy:
		return 50
	case DifficultyHard:
		return 100
	default:
		return 75
	}
}

// Quest models a catalog entry. The catalog is immutable once fetched and is
// cached locally by agents for offline browsing.
type Quest struct {
	ID               string     `gorm:"column:quest_id;primaryKey;size:190;not null"`
	Type             QuestType  `gorm:"column:type;size:64;not null;index"`
	Title            string     `gorm:"column:title;size:320;not null"`
	Description      string     `gorm:"column:description;type:text;not null;default:''"`
	Difficulty       Difficulty `gorm:"column:difficulty;size:16;not null"`
	RadiusKm         float64    `gorm:"column:radius_km;not null;default:0"`
	CreatedAtSeconds int64      `gorm:"column:created_at_s;not null"`
	UpdatedAtSeconds int64      `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Quest) TableName() string {
	return "quests"
}
