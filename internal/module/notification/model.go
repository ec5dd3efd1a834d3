package notification

import (
	"time"

	"github.com/google/uuid"
)

// Job kind handled by this module.
const JobKindSend = "notification_send"

// SendArgs is the payload of a notification_send job.
type SendArgs struct {
	UserID  uuid.UUID `json:"user_id"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
}

// Notification is a persisted user-facing message.
type Notification struct {
	ID        uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID    uuid.UUID  `json:"user_id" gorm:"type:uuid;not null;index"`
	Subject   string     `json:"subject" gorm:"not null"`
	Body      string     `json:"body"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// TableName returns the database table name.
func (Notification) TableName() string {
	return "notifications"
}
