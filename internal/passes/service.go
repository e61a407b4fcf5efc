package passes

import (
	"context"
	"fmt"

	"github.com/festworks/festpass-backend/pkg/db/models"
	pkgerrors "github.com/festworks/festpass-backend/pkg/errors"
	"github.com/google/uuid"
)

// Service defines the read surface needed by the passes controller.
type Service interface {
	ListOwned(ctx context.Context, userID uuid.UUID) ([]OwnedPassDTO, error)
}

type repository interface {
	ListOwnershipsByUser(ctx context.Context, userID uuid.UUID) ([]models.PassOwnership, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Pass, error)
}

type service struct {
	repo repository
}

// ServiceParams bundles the dependencies required to build a passes service.
type ServiceParams struct {
	Repo repository
}

// NewService constructs a passes read service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("passes repository is required")
	}
	return &service{repo: params.Repo}, nil
}

// ListOwned returns the user's ownership join, oldest grant first.
func (s *service) ListOwned(ctx context.Context, userID uuid.UUID) ([]OwnedPassDTO, error) {
	ownerships, err := s.repo.ListOwnershipsByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list ownerships")
	}

	ids := make([]uuid.UUID, 0, len(ownerships))
	for _, own := range ownerships {
		ids = append(ids, own.PassID)
	}
	passByID, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load passes")
	}

	owned := make([]OwnedPassDTO, 0, len(ownerships))
	for _, own := range ownerships {
		pass, ok := passByID[own.PassID]
		if !ok {
			// ownership of a deleted pass; skip rather than fail the list
			continue
		}
		owned = append(owned, BuildOwnedPass(own, pass))
	}
	return owned, nil
}
