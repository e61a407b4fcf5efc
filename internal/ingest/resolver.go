package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/festworks/festpass-backend/internal/passmap"
	"github.com/festworks/festpass-backend/pkg/config"
	"github.com/festworks/festpass-backend/pkg/db/models"
	"github.com/festworks/festpass-backend/pkg/enums"
	"github.com/festworks/festpass-backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ResolutionOutcome classifies what the whitelist said about a log.
type ResolutionOutcome string

const (
	// OutcomeResolved means the log maps to a concrete pass.
	OutcomeResolved ResolutionOutcome = "resolved"
	// OutcomeUnmapped means no candidate key has a whitelist row.
	OutcomeUnmapped ResolutionOutcome = "unmapped"
	// OutcomeExplicitNull means a key is whitelisted but deliberately
	// unassigned; the log is intentionally not an entitlement.
	OutcomeExplicitNull ResolutionOutcome = "explicit_null"
)

// Resolution is the outcome of mapping one log against the whitelist.
type Resolution struct {
	Outcome         ResolutionOutcome
	Pass            *models.Pass
	MatchedKey      string
	Keys            []string
	OverrideApplied bool
}

type resolverPassRepo interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Pass, error)
	FindBundleByCategory(ctx context.Context, category enums.PassCategory) (*models.Pass, error)
	DeleteOwnership(ctx context.Context, userID, passID uuid.UUID) error
}

// Resolver maps persisted logs to internal passes, applying the declared
// user-category override for bundle-class passes.
type Resolver struct {
	passes resolverPassRepo
	cfg    config.PassesConfig
	logger *logger.Logger
}

// ResolverParams bundles the dependencies required to build a resolver.
type ResolverParams struct {
	Passes resolverPassRepo
	Config config.PassesConfig
	Logger *logger.Logger
}

// NewResolver constructs the entitlement resolver.
func NewResolver(params ResolverParams) (*Resolver, error) {
	if params.Passes == nil {
		return nil, fmt.Errorf("passes repository is required")
	}
	return &Resolver{
		passes: params.Passes,
		cfg:    params.Config,
		logger: params.Logger,
	}, nil
}

// Resolve maps a success log to a pass using the snapshot, preferring the v2
// key over the legacy key. When the upstream document declared the user's
// cohort and the naive resolution lands on the other cohort's bundle, the
// resolution is re-routed to the declared cohort's designated bundle and any
// wrong-cohort bundle ownership for this user is removed.
func (r *Resolver) Resolve(ctx context.Context, log models.PaymentLog, declared *enums.PassCategory, snapshot passmap.Snapshot, userID uuid.UUID) (*Resolution, error) {
	keys := passmap.CandidateKeys(log.Membership, log.EventName, log.EventType)

	var matchedKey string
	var passID *uuid.UUID
	found := false
	for _, key := range keys {
		if id, present := snapshot[key]; present {
			matchedKey = key
			passID = id
			found = true
			break
		}
	}

	if !found {
		return &Resolution{Outcome: OutcomeUnmapped, Keys: keys}, nil
	}
	if passID == nil {
		return &Resolution{Outcome: OutcomeExplicitNull, MatchedKey: matchedKey, Keys: keys}, nil
	}

	pass, err := r.passes.FindByID(ctx, *passID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// mapping points at a deleted pass; surface as unmapped so it
			// lands in the pending queue instead of erroring the run
			return &Resolution{Outcome: OutcomeUnmapped, MatchedKey: matchedKey, Keys: keys}, nil
		}
		return nil, err
	}

	resolution := &Resolution{
		Outcome:    OutcomeResolved,
		Pass:       pass,
		MatchedKey: matchedKey,
		Keys:       keys,
	}

	if declared != nil && pass.IsBundle() && pass.Category != *declared {
		rerouted, err := r.DesignatedBundle(ctx, *declared)
		if err != nil {
			if r.logger != nil {
				r.logger.Warn(r.logger.WithField(ctx, "category", declared.String()),
					"no designated bundle for declared category, keeping naive resolution")
			}
			return resolution, nil
		}

		if err := r.passes.DeleteOwnership(ctx, userID, pass.ID); err != nil {
			return nil, fmt.Errorf("cleanup wrong-category bundle: %w", err)
		}
		resolution.Pass = rerouted
		resolution.OverrideApplied = true
	}

	return resolution, nil
}

// DesignatedBundle returns the fixed bundle pass for a category: the
// configuration override when set, otherwise the storage lookup heuristic.
func (r *Resolver) DesignatedBundle(ctx context.Context, category enums.PassCategory) (*models.Pass, error) {
	if override := r.configuredBundleID(category); override != nil {
		return r.passes.FindByID(ctx, *override)
	}
	return r.passes.FindBundleByCategory(ctx, category)
}

func (r *Resolver) configuredBundleID(category enums.PassCategory) *uuid.UUID {
	var raw string
	switch category {
	case enums.PassCategoryPrimary:
		raw = r.cfg.PrimaryBundleID
	case enums.PassCategorySecondary:
		raw = r.cfg.SecondaryBundleID
	}
	if raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &id
}
