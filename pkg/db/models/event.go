package models

import (
	"time"

	"github.com/festworks/festpass-backend/pkg/enums"
	"github.com/google/uuid"
)

// Event is a single fest event a specific pass can be tied to.
type Event struct {
	ID        uuid.UUID          `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string             `gorm:"type:text;not null"`
	Category  enums.PassCategory `gorm:"column:category;not null"`
	Venue     *string            `gorm:"column:venue"`
	StartsAt  *time.Time         `gorm:"column:starts_at"`
	CreatedAt time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
