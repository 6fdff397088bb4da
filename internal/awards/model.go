package awards

// Badge records a one-time achievement grant. The unique index on
// (user_id, badge_type) is the authoritative duplicate guard; every other
// existence check is an optimization on top of it.
type Badge struct {
	UserID          string    `gorm:"column:user_id;primaryKey;size:190;not null;uniqueIndex:uq_badges_user_type,priority:1"`
	BadgeType       BadgeType `gorm:"column:badge_type;primaryKey;size:64;not null;uniqueIndex:uq_badges_user_type,priority:2"`
	EarnedAtSeconds int64     `gorm:"column:earned_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Badge) TableName() string {
	return "badges"
}
