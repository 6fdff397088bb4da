package quests

import (
	"errors"
	"fmt"
	"strings"
)

const maxIdentifierLength = 190

var (
	// ErrInvalidQuestID indicates that a quest identifier is empty or exceeds storage bounds.
	ErrInvalidQuestID = errors.New("quests: invalid quest id")
	// ErrInvalidUserID indicates that a user identifier is empty or exceeds storage bounds.
	ErrInvalidUserID = errors.New("quests: invalid user id")
	// ErrInvalidSubmissionID indicates that a submission identifier is empty or exceeds storage bounds.
	ErrInvalidSubmissionID = errors.New("quests: invalid submission id")
)

// QuestID represents a validated quest identifier.
type QuestID string

// NewQuestID validates raw input and returns a QuestID.
func NewQuestID(rawInput string) (QuestID, error) {
	trimmed, err := validateIdentifier(rawInput, ErrInvalidQuestID)
	if err != nil {
		return "", err
	}
	return QuestID(trimmed), nil
}

// String returns the underlying string identifier.
func (id QuestID) String() string {
	return string(id)
}

// UserID represents a validated user identifier.
type UserID string

// NewUserID validates raw input and returns a UserID.
func NewUserID(rawInput string) (UserID, error) {
	trimmed, err := validateIdentifier(rawInput, ErrInvalidUserID)
	if err != nil {
		return "", err
	}
	return UserID(trimmed), nil
}

// String returns the underlying string identifier.
func (id UserID) String() string {
	return string(id)
}

// SubmissionID represents a validated client-generated submission identifier.
type SubmissionID string

// NewSubmissionID validates raw input and returns a SubmissionID.
func NewSubmissionID(rawInput string) (SubmissionID, error) {
	trimmed, err := validateIdentifier(rawInput, ErrInvalidSubmissionID)
	if err != nil {
		return "", err
	}
	return SubmissionID(trimmed), nil
}

// String returns the underlying string identifier.
func (id SubmissionID) String() string {
	return string(id)
}

func validateIdentifier(rawInput string, sentinel error) (string, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", sentinel)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", sentinel, maxIdentifierLength)
	}
	return trimmed, nil
}
