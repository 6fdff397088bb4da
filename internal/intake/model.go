package intake

// Record is the authoritative submission row. The primary key is the
// client-generated submission id, which is what makes replayed intake
// requests idempotent.
type Record struct {
	SubmissionID         string   `gorm:"column:submission_id;primaryKey;size:190;not null"`
	UserID               string   `gorm:"column:user_id;size:190;not null;index:idx_records_user_time,priority:1"`
	QuestID              string   `gorm:"column:quest_id;size:190;not null;index"`
	PhotoRef             string   `gorm:"column:photo_ref;type:text;not null;default:''"`
	LocationLat          *float64 `gorm:"column:location_lat"`
	LocationLng          *float64 `gorm:"column:location_lng"`
	SubmittedAtSeconds   int64    `gorm:"column:submitted_at_s;not null;index:idx_records_user_time,priority:2"`
	ValidationLabel      string   `gorm:"column:validation_label;size:190;not null;default:''"`
	ValidationConfidence float64  `gorm:"column:validation_confidence;not null;default:0"`
	ValidationPassed     bool     `gorm:"column:validation_passed;not null;default:false"`
	PointsEarned         int      `gorm:"column:points_earned;not null;default:0"`
}

// TableName provides the explicit table binding for GORM.
func (Record) TableName() string {
	return "submission_records"
}

// ActionRecord is the server-side idempotency ledger for generic queued
// actions. A replayed action id hits the primary key and is acknowledged
// without reapplying.
type ActionRecord struct {
	ActionID          string `gorm:"column:action_id;primaryKey;size:190;not null"`
	UserID            string `gorm:"column:user_id;size:190;not null;index"`
	Action            string `gorm:"column:action;size:16;not null"`
	Entity            string `gorm:"column:entity;size:64;not null"`
	PayloadJSON       string `gorm:"column:payload_json;type:text;not null;default:''"`
	ReceivedAtSeconds int64  `gorm:"column:received_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (ActionRecord) TableName() string {
	return "action_records"
}
