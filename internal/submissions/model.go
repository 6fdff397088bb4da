package submissions

// QueueAction enumerates generic pending remote actions.
type QueueAction string

const (
	QueueActionCreate QueueAction = "create"
	QueueActionUpdate QueueAction = "update"
	QueueActionDelete QueueAction = "delete"
)

// Submission models a locally captured quest attempt. Rows are created by the
// capture path, mutated only by the sync engine and never deleted outside an
// explicit ClearAll.
type Submission struct {
	SubmissionID         string   `gorm:"column:submission_id;primaryKey;size:190;not null"`
	UserID               string   `gorm:"column:user_id;size:190;not null;index"`
	QuestID              string   `gorm:"column:quest_id;size:190;not null"`
	PhotoRef             string   `gorm:"column:photo_ref;type:text;not null"`
	LocationLat          *float64 `gorm:"column:location_lat"`
	LocationLng          *float64 `gorm:"column:location_lng"`
	CapturedAtSeconds    int64    `gorm:"column:captured_at_s;not null;index:idx_submissions_sync_order,priority:2"`
	Synced               bool     `gorm:"column:synced;not null;default:false;index:idx_submissions_sync_order,priority:1"`
	SyncFailed           bool     `gorm:"column:sync_failed;not null;default:false"`
	AttemptCount         int      `gorm:"column:attempt_count;not null;default:0"`
	PointsEarned         *int     `gorm:"column:points_earned"`
	ValidationLabel      string   `gorm:"column:validation_label;size:190;not null;default:''"`
	ValidationConfidence *float64 `gorm:"column:validation_confidence"`
	ValidationPassed     *bool    `gorm:"column:validation_passed"`
}

// TableName provides the explicit table binding for GORM.
func (Submission) TableName() string {
	return "submissions"
}

// SyncQueueItem models a generic pending remote action. Items are removed
// only on confirmed server acknowledgment; retry_count only increases.
type SyncQueueItem struct {
	QueueID          string      `gorm:"column:queue_id;primaryKey;size:190;not null"`
	Action           QueueAction `gorm:"column:action;size:16;not null"`
	Entity           string      `gorm:"column:entity;size:64;not null"`
	PayloadJSON      string      `gorm:"column:payload_json;type:text;not null"`
	CreatedAtSeconds int64       `gorm:"column:created_at_s;not null;index"`
	RetryCount       int         `gorm:"column:retry_count;not null;default:0"`
}

// TableName provides the explicit table binding for GORM.
func (SyncQueueItem) TableName() string {
	return "sync_queue"
}

// LocalUser is the single-row read-mostly mirror of the remote user record,
// refreshed on login and after sync.
type LocalUser struct {
	UserID            string `gorm:"column:user_id;primaryKey;size:190;not null"`
	Email             string `gorm:"column:email;size:320;not null;default:''"`
	DisplayName       string `gorm:"column:display_name;size:320;not null;default:''"`
	Points            int    `gorm:"column:points;not null;default:0"`
	StreakDays        int    `gorm:"column:streak_days;not null;default:0"`
	RefreshedAtSeconds int64 `gorm:"column:refreshed_at_s;not null;default:0"`
}

// TableName provides the explicit table binding for GORM.
func (LocalUser) TableName() string {
	return "local_user"
}
