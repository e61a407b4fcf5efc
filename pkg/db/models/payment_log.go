package models

import (
	"encoding/json"
	"time"

	"github.com/festworks/festpass-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentLog is one successful upstream payment document, persisted verbatim
// alongside its normalized fields. The (phone, tracking_id) pair is the
// idempotency key for ingestion.
type PaymentLog struct {
	ID         uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	TrackingID string              `gorm:"column:tracking_id;not null;uniqueIndex:idx_payment_logs_phone_tracking,priority:2"`
	Phone      string              `gorm:"column:phone;not null;uniqueIndex:idx_payment_logs_phone_tracking,priority:1"`
	UserID     uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	Status     enums.PaymentStatus `gorm:"column:status;not null"`
	Membership string              `gorm:"column:membership;not null;default:''"`
	EventName  string              `gorm:"column:event_name;not null;default:''"`
	// EventType lives in an optional column; older schemas may not have it
	// and the persister degrades to writing rows without it.
	EventType         *string             `gorm:"column:event_type"`
	Amount            decimal.NullDecimal `gorm:"column:amount;type:numeric(12,2)"`
	ExternalCreatedAt *time.Time          `gorm:"column:external_created_at"`
	RawDocument       json.RawMessage     `gorm:"column:raw_document;type:jsonb"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
