package awards

import (
	"math"
	"time"

	"github.com/terraguardian/core/internal/quests"
)

const (
	// confidenceNormalization is the confidence value at which the bonus
	// multiplier is exactly 1.0.
	confidenceNormalization = 0.7
	// multiplierCap bounds the confidence bonus at twice the base points.
	multiplierCap = 2.0
	// streakWindow is the maximum gap between activities that still extends
	// a streak. Deliberately not calendar-day aware.
	streakWindow = 24 * time.Hour
)

// Points computes the point award for a validated submission:
// round(basePoints × min(confidence/0.7, 2.0)). A nil confidence (no
// validation ran) leaves the multiplier at 1.0.
func Points(difficulty quests.Difficulty, confidence *float64) int {
	base := float64(difficulty.BasePoints())
	multiplier := 1.0
	if confidence != nil {
		multiplier = math.Min(*confidence/confidenceNormalization, multiplierCap)
	}
	return int(math.Round(base * multiplier))
}

// NextStreak applies the streak policy: activity within the streak window
// extends the streak, anything later resets it to 1.
func NextStreak(current int, elapsed time.Duration) int {
	if elapsed <= streakWindow && current > 0 {
		return current + 1
	}
	return 1
}
