package users

import "time"

// User is the server-authoritative user record. Points are monotonic
// non-negative; streak_days follows the activity-window policy in the awards
// package.
type User struct {
	ID                string    `gorm:"column:user_id;primaryKey;size:190;not null"`
	Email             string    `gorm:"column:email;size:320;not null;default:''"`
	DisplayName       string    `gorm:"column:display_name;size:320;not null;default:''"`
	Points            int       `gorm:"column:points;not null;default:0;index"`
	StreakDays        int       `gorm:"column:streak_days;not null;default:0"`
	LastActiveSeconds int64     `gorm:"column:last_active_s;not null;default:0"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (User) TableName() string {
	return "users"
}
