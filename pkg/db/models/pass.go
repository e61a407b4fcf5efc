package models

import (
	"time"

	"github.com/festworks/festpass-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Pass is a sellable entitlement. A pass with no event association is a
// bundle-class pass granting broad category access; a pass tied to an event
// only unlocks that event.
type Pass struct {
	ID        uuid.UUID          `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string             `gorm:"type:text;not null"`
	Category  enums.PassCategory `gorm:"column:category;not null"`
	EventID   *uuid.UUID         `gorm:"column:event_id;type:uuid;index"`
	Price     decimal.Decimal    `gorm:"column:price;type:numeric(12,2);not null;default:0"`
	IsActive  bool               `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// IsBundle reports whether the pass grants broad category access rather than
// entry to a single event.
func (p Pass) IsBundle() bool {
	return p.EventID == nil
}
