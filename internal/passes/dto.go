package passes

import (
	"time"

	"github.com/festworks/festpass-backend/pkg/db/models"
	"github.com/festworks/festpass-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OwnedPassDTO is one entry of a user's ownership join.
type OwnedPassDTO struct {
	ID              uuid.UUID             `json:"id"`
	Name            string                `json:"name"`
	Category        enums.PassCategory    `json:"category"`
	EventID         *uuid.UUID            `json:"event_id,omitempty"`
	IsBundle        bool                  `json:"is_bundle"`
	Price           decimal.Decimal       `json:"price"`
	Source          enums.OwnershipSource `json:"source"`
	RedemptionToken *string               `json:"redemption_token,omitempty"`
	GrantedAt       time.Time             `json:"granted_at"`
}

// BuildOwnedPass assembles the DTO from an ownership row and its pass.
func BuildOwnedPass(own models.PassOwnership, pass models.Pass) OwnedPassDTO {
	return OwnedPassDTO{
		ID:              pass.ID,
		Name:            pass.Name,
		Category:        pass.Category,
		EventID:         pass.EventID,
		IsBundle:        pass.IsBundle(),
		Price:           pass.Price,
		Source:          own.Source,
		RedemptionToken: own.RedemptionToken,
		GrantedAt:       own.CreatedAt,
	}
}
