package quests

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrQuestNotFound indicates the catalog holds no quest with the id.
var ErrQuestNotFound = errors.New("quests: quest not found")

// Service serves the quest catalog from the server database.
type Service struct {
	db *gorm.DB
}

// NewService constructs the catalog service.
func NewService(db *gorm.DB) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("quests: database connection required")
	}
	return &Service{db: db}, nil
}

// List returns the full quest catalog.
func (s *Service) List(ctx context.Context) ([]Quest, error) {
	var catalog []Quest
	err := s.db.WithContext(ctx).
		Order("quest_id ASC").
		Find(&catalog).Error
	if err != nil {
		return nil, err
	}
	return catalog, nil
}

// Get returns one catalog entry.
func (s *Service) Get(ctx context.Context, questID string) (Quest, error) {
	var quest Quest
	err := s.db.WithContext(ctx).
		Where("quest_id = ?", questID).
		Take(&quest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Quest{}, fmt.Errorf("%w: %s", ErrQuestNotFound, questID)
	}
	if err != nil {
		return Quest{}, err
	}
	return quest, nil
}
