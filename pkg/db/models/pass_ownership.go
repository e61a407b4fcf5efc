package models

import (
	"time"

	"github.com/festworks/festpass-backend/pkg/enums"
	"github.com/google/uuid"
)

// PassOwnership links a user to a pass they hold. (user_id, pass_id) is
// unique; re-granting is a no-op.
type PassOwnership struct {
	ID     uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_pass_ownerships_user_pass,priority:1"`
	PassID uuid.UUID `gorm:"column:pass_id;type:uuid;not null;uniqueIndex:idx_pass_ownerships_user_pass,priority:2"`
	// Provenance columns are optional in older schemas; the granter degrades
	// to writing rows without them.
	Phone           *string               `gorm:"column:phone;index"`
	TrackingID      *string               `gorm:"column:tracking_id"`
	Source          enums.OwnershipSource `gorm:"column:source;not null;default:payment_sync"`
	RedemptionToken *string               `gorm:"column:redemption_token;uniqueIndex"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
