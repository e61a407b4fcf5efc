package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/festworks/festpass-backend/pkg/db"
	"github.com/festworks/festpass-backend/pkg/db/models"
	"github.com/festworks/festpass-backend/pkg/enums"
	"github.com/festworks/festpass-backend/pkg/logger"
	"github.com/festworks/festpass-backend/pkg/metrics"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type granterRepo interface {
	UpsertOwnership(ctx context.Context, own *models.PassOwnership, omit []string) (bool, error)
	CreateOwnership(ctx context.Context, own *models.PassOwnership, omit []string) error
	OwnershipExists(ctx context.Context, userID, passID uuid.UUID) (bool, error)
}

type designatedBundleFinder interface {
	DesignatedBundle(ctx context.Context, category enums.PassCategory) (*models.Pass, error)
}

// Granter writes pass ownerships. It prefers an atomic conflict-ignore upsert
// and degrades, stickily, to check-then-insert when the conflict target is
// unsupported, and to narrower column sets when optional columns are
// rejected.
type Granter struct {
	passes   granterRepo
	resolver designatedBundleFinder
	caps     *StorageCapabilities
	logger   *logger.Logger
	metrics  *metrics.IngestMetrics
	newToken func() string
}

// GranterParams bundles the dependencies required to build a granter.
type GranterParams struct {
	Passes       granterRepo
	Resolver     designatedBundleFinder
	Capabilities *StorageCapabilities
	Logger       *logger.Logger
	Metrics      *metrics.IngestMetrics
	NewToken     func() string
}

// NewGranter constructs the ownership granter.
func NewGranter(params GranterParams) (*Granter, error) {
	if params.Passes == nil {
		return nil, fmt.Errorf("passes repository is required")
	}
	if params.Resolver == nil {
		return nil, fmt.Errorf("resolver is required")
	}
	if params.Capabilities == nil {
		return nil, fmt.Errorf("storage capabilities are required")
	}
	newToken := params.NewToken
	if newToken == nil {
		newToken = uuid.NewString
	}
	return &Granter{
		passes:   params.Passes,
		resolver: params.Resolver,
		caps:     params.Capabilities,
		logger:   params.Logger,
		metrics:  params.Metrics,
		newToken: newToken,
	}, nil
}

// GrantRequest describes one ownership write.
type GrantRequest struct {
	UserID     uuid.UUID
	Phone      string
	TrackingID *string
	Pass       *models.Pass
	Source     enums.OwnershipSource
}

// Grant idempotently grants the pass, recording it in the run's granted set.
// Returns true when a new ownership row was created. Granting the
// primary-cohort bundle for the first time in a run also auto-grants the
// complementary secondary bundle as a derived entitlement.
func (g *Granter) Grant(ctx context.Context, run *RunState, req GrantRequest) (bool, error) {
	if req.Pass == nil {
		return false, fmt.Errorf("pass is required")
	}
	if run.Granted(req.Pass.ID) {
		return false, nil
	}

	created, err := g.write(ctx, req)
	if err != nil {
		return false, err
	}
	run.MarkGranted(req.Pass.ID)
	if created {
		g.metrics.IncGrant(req.Source.String())
	}

	if req.Pass.IsBundle() && req.Pass.Category == enums.PassCategoryPrimary {
		if err := g.grantComplementaryBundle(ctx, run, req); err != nil && g.logger != nil {
			// a failed derived grant must not undo the primary grant
			g.logger.Warn(g.logger.WithField(ctx, "error", err.Error()),
				"derived secondary bundle grant failed")
		}
	}

	return created, nil
}

func (g *Granter) grantComplementaryBundle(ctx context.Context, run *RunState, req GrantRequest) error {
	secondary, err := g.resolver.DesignatedBundle(ctx, enums.PassCategorySecondary)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if run.Granted(secondary.ID) {
		return nil
	}
	owned, err := g.passes.OwnershipExists(ctx, req.UserID, secondary.ID)
	if err != nil {
		return err
	}
	if owned {
		run.MarkGranted(secondary.ID)
		return nil
	}

	_, err = g.Grant(ctx, run, GrantRequest{
		UserID: req.UserID,
		Phone:  req.Phone,
		Pass:   secondary,
		Source: enums.OwnershipSourceDerived,
	})
	return err
}

// write performs the capability-aware ownership insert.
func (g *Granter) write(ctx context.Context, req GrantRequest) (bool, error) {
	for {
		own := g.buildOwnership(req)
		omit := g.omitColumns()

		var created bool
		var err error
		if g.caps.OwnershipUpsert() {
			created, err = g.passes.UpsertOwnership(ctx, own, omit)
		} else {
			created, err = g.checkThenInsert(ctx, own, omit)
		}
		if err == nil {
			return created, nil
		}

		if g.caps.OwnershipUpsert() && db.IsInvalidConflictTarget(err) {
			g.caps.DisableOwnershipUpsert()
			if g.logger != nil {
				g.logger.Warn(ctx, "ownership conflict target unsupported, switching to check-then-insert")
			}
			continue
		}
		if g.caps.TokenColumn() && db.IsUndefinedColumn(err) {
			g.caps.DisableTokenColumn()
			if g.logger != nil {
				g.logger.Warn(ctx, "pass_ownerships has no redemption_token column, omitting it from now on")
			}
			continue
		}
		if g.caps.ProvenanceColumns() && db.IsUndefinedColumn(err) {
			g.caps.DisableProvenanceColumns()
			if g.logger != nil {
				g.logger.Warn(ctx, "pass_ownerships has no provenance columns, omitting them from now on")
			}
			continue
		}
		return false, err
	}
}

func (g *Granter) checkThenInsert(ctx context.Context, own *models.PassOwnership, omit []string) (bool, error) {
	exists, err := g.passes.OwnershipExists(ctx, own.UserID, own.PassID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if err := g.passes.CreateOwnership(ctx, own, omit); err != nil {
		// a concurrent run may have inserted between check and insert
		if db.IsUniqueViolation(err, "") {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (g *Granter) buildOwnership(req GrantRequest) *models.PassOwnership {
	own := &models.PassOwnership{
		ID:     uuid.New(),
		UserID: req.UserID,
		PassID: req.Pass.ID,
		Source: req.Source,
	}
	if g.caps.ProvenanceColumns() {
		phone := req.Phone
		own.Phone = &phone
		own.TrackingID = req.TrackingID
	}
	if g.caps.TokenColumn() {
		token := g.newToken()
		own.RedemptionToken = &token
	}
	return own
}

func (g *Granter) omitColumns() []string {
	var omit []string
	if !g.caps.TokenColumn() {
		omit = append(omit, "RedemptionToken")
	}
	if !g.caps.ProvenanceColumns() {
		omit = append(omit, "Phone", "TrackingID", "Source")
	}
	return omit
}
