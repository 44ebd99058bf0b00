package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/vendorahq/vendora-backend/pkg/enums"
)

// OutboxDLQ captures events that could not be published, plus webhook
// handler failures parked for operator review.
type OutboxDLQ struct {
	ID           uuid.UUID                  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EventID      uuid.UUID                  `gorm:"column:event_id;type:uuid;not null;index"`
	EventType    enums.OutboxEventType      `gorm:"column:event_type;type:text;not null"`
	Reason       enums.OutboxDLQErrorReason `gorm:"column:reason;type:text;not null"`
	Payload      json.RawMessage            `gorm:"column:payload;type:jsonb"`
	ErrorMessage *string                    `gorm:"column:error_message"`
	FailedAt     time.Time                  `gorm:"column:failed_at;autoCreateTime"`
}
