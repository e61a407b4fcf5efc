package models

import (
	"time"

	"github.com/google/uuid"
)

// ExternalPassMap maps one upstream item key to an internal pass. A row with a
// NULL pass id is an explicit "whitelisted but unassigned" marker, which is
// different from the key having no row at all. ItemKeyV2 lives in an optional
// column; the loader degrades to legacy-key-only reads when it is missing.
type ExternalPassMap struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ItemKey   string     `gorm:"column:item_key;not null;uniqueIndex"`
	ItemKeyV2 *string    `gorm:"column:item_key_v2;uniqueIndex"`
	PassID    *uuid.UUID `gorm:"column:pass_id;type:uuid"`
	IsActive  bool       `gorm:"column:is_active;not null;default:true"`
	Notes     *string    `gorm:"column:notes"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName keeps the singular table name used by the migrations.
func (ExternalPassMap) TableName() string {
	return "external_pass_map"
}
