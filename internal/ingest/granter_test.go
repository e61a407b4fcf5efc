package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/festworks/festpass-backend/pkg/db/models"
	"github.com/festworks/festpass-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ownCall struct {
	own  models.PassOwnership
	omit []string
}

type stubGranterRepo struct {
	upsertErr func(omit []string) error
	createErr func(omit []string) error
	existing  map[uuid.UUID]bool
	upserts   []ownCall
	creates   []ownCall
}

func (s *stubGranterRepo) UpsertOwnership(ctx context.Context, own *models.PassOwnership, omit []string) (bool, error) {
	s.upserts = append(s.upserts, ownCall{own: *own, omit: append([]string{}, omit...)})
	if s.upsertErr != nil {
		if err := s.upsertErr(omit); err != nil {
			return false, err
		}
	}
	if s.existing[own.PassID] {
		return false, nil
	}
	s.existing[own.PassID] = true
	return true, nil
}

func (s *stubGranterRepo) CreateOwnership(ctx context.Context, own *models.PassOwnership, omit []string) error {
	s.creates = append(s.creates, ownCall{own: *own, omit: append([]string{}, omit...)})
	if s.createErr != nil {
		if err := s.createErr(omit); err != nil {
			return err
		}
	}
	s.existing[own.PassID] = true
	return nil
}

func (s *stubGranterRepo) OwnershipExists(ctx context.Context, userID, passID uuid.UUID) (bool, error) {
	return s.existing[passID], nil
}

type stubBundleFinder struct {
	secondary *models.Pass
	err       error
}

func (s *stubBundleFinder) DesignatedBundle(ctx context.Context, category enums.PassCategory) (*models.Pass, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.secondary == nil || category != enums.PassCategorySecondary {
		return nil, gorm.ErrRecordNotFound
	}
	return s.secondary, nil
}

func newStubGranterRepo() *stubGranterRepo {
	return &stubGranterRepo{existing: map[uuid.UUID]bool{}}
}

func newTestGranter(t *testing.T, repo *stubGranterRepo, finder designatedBundleFinder, caps *StorageCapabilities) *Granter {
	t.Helper()
	if finder == nil {
		finder = &stubBundleFinder{}
	}
	g, err := NewGranter(GranterParams{
		Passes:       repo,
		Resolver:     finder,
		Capabilities: caps,
		NewToken:     func() string { return "token-1" },
	})
	if err != nil {
		t.Fatalf("NewGranter: %v", err)
	}
	return g
}

func eventGrantRequest(userID uuid.UUID) GrantRequest {
	eventID := uuid.New()
	tracking := "T1"
	return GrantRequest{
		UserID:     userID,
		Phone:      "9998887770",
		TrackingID: &tracking,
		Pass:       &models.Pass{ID: uuid.New(), EventID: &eventID, Category: enums.PassCategoryPrimary},
		Source:     enums.OwnershipSourceSync,
	}
}

func TestGranterCreatesOwnershipWithProvenance(t *testing.T) {
	repo := newStubGranterRepo()
	g := newTestGranter(t, repo, nil, NewStorageCapabilities(nil))
	run := NewRunState()

	req := eventGrantRequest(uuid.New())
	created, err := g.Grant(context.Background(), run, req)
	if err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if !created {
		t.Fatal("expected a new ownership row")
	}
	if len(repo.upserts) != 1 {
		t.Fatalf("upsert calls = %d", len(repo.upserts))
	}
	own := repo.upserts[0].own
	if own.Phone == nil || *own.Phone != "9998887770" {
		t.Fatalf("phone = %v", own.Phone)
	}
	if own.TrackingID == nil || *own.TrackingID != "T1" {
		t.Fatalf("tracking id = %v", own.TrackingID)
	}
	if own.RedemptionToken == nil || *own.RedemptionToken != "token-1" {
		t.Fatalf("token = %v", own.RedemptionToken)
	}
	if own.Source != enums.OwnershipSourceSync {
		t.Fatalf("source = %q", own.Source)
	}
	if !run.Granted(req.Pass.ID) {
		t.Fatal("pass must be in the run's granted set")
	}
}

func TestGranterSkipsPassAlreadyGrantedThisRun(t *testing.T) {
	repo := newStubGranterRepo()
	g := newTestGranter(t, repo, nil, NewStorageCapabilities(nil))
	run := NewRunState()

	req := eventGrantRequest(uuid.New())
	if _, err := g.Grant(context.Background(), run, req); err != nil {
		t.Fatalf("Grant: %v", err)
	}
	created, err := g.Grant(context.Background(), run, req)
	if err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if created {
		t.Fatal("expected no second grant")
	}
	if len(repo.upserts) != 1 {
		t.Fatalf("expected one storage write, got %d", len(repo.upserts))
	}
}

func TestGranterFallsBackToCheckThenInsert(t *testing.T) {
	repo := newStubGranterRepo()
	repo.upsertErr = func([]string) error {
		return errors.New("SQL logic error: ON CONFLICT clause does not match any PRIMARY KEY or UNIQUE constraint / no unique or exclusion constraint matching the ON CONFLICT specification")
	}
	caps := NewStorageCapabilities(nil)
	g := newTestGranter(t, repo, nil, caps)

	created, err := g.Grant(context.Background(), NewRunState(), eventGrantRequest(uuid.New()))
	if err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if !created {
		t.Fatal("check-then-insert path should have created the row")
	}
	if caps.OwnershipUpsert() {
		t.Fatal("upsert capability should be off")
	}
	if len(repo.creates) != 1 {
		t.Fatalf("create calls = %d", len(repo.creates))
	}

	// the next grant never attempts the upsert again
	upsertsBefore := len(repo.upserts)
	if _, err := g.Grant(context.Background(), NewRunState(), eventGrantRequest(uuid.New())); err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if len(repo.upserts) != upsertsBefore {
		t.Fatal("degraded granter must not retry the upsert path")
	}
}

func TestGranterDegradesTokenThenProvenanceColumns(t *testing.T) {
	repo := newStubGranterRepo()
	repo.upsertErr = func(omit []string) error {
		for _, col := range omit {
			if col == "Phone" {
				return nil
			}
		}
		return errors.New("no such column: redemption_token")
	}
	caps := NewStorageCapabilities(nil)
	g := newTestGranter(t, repo, nil, caps)

	created, err := g.Grant(context.Background(), NewRunState(), eventGrantRequest(uuid.New()))
	if err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if !created {
		t.Fatal("expected the minimal-column write to succeed")
	}
	if caps.TokenColumn() || caps.ProvenanceColumns() {
		t.Fatal("both optional column sets should be disabled")
	}
	if len(repo.upserts) != 3 {
		t.Fatalf("expected 3 attempts (full, no-token, minimal), got %d", len(repo.upserts))
	}
	final := repo.upserts[2].own
	if final.Phone != nil || final.TrackingID != nil || final.RedemptionToken != nil {
		t.Fatalf("minimal write still carries optional fields: %+v", final)
	}
}

func TestGranterCheckThenInsertToleratesRace(t *testing.T) {
	repo := newStubGranterRepo()
	repo.createErr = func([]string) error {
		return errors.New("UNIQUE constraint failed: pass_ownerships.user_id, pass_ownerships.pass_id")
	}
	caps := NewStorageCapabilities(nil)
	caps.DisableOwnershipUpsert()
	g := newTestGranter(t, repo, nil, caps)

	created, err := g.Grant(context.Background(), NewRunState(), eventGrantRequest(uuid.New()))
	if err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if created {
		t.Fatal("a lost insert race means the row already exists")
	}
}

func TestGranterDerivesSecondaryBundleFromPrimary(t *testing.T) {
	secondary := bundlePass(enums.PassCategorySecondary)
	repo := newStubGranterRepo()
	g := newTestGranter(t, repo, &stubBundleFinder{secondary: secondary}, NewStorageCapabilities(nil))
	run := NewRunState()

	primary := bundlePass(enums.PassCategoryPrimary)
	tracking := "T1"
	created, err := g.Grant(context.Background(), run, GrantRequest{
		UserID:     uuid.New(),
		Phone:      "9998887770",
		TrackingID: &tracking,
		Pass:       primary,
		Source:     enums.OwnershipSourceSync,
	})
	if err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if !created {
		t.Fatal("primary grant should create a row")
	}
	if len(repo.upserts) != 2 {
		t.Fatalf("expected primary + derived writes, got %d", len(repo.upserts))
	}
	derived := repo.upserts[1].own
	if derived.PassID != secondary.ID {
		t.Fatal("derived write should target the secondary bundle")
	}
	if derived.Source != enums.OwnershipSourceDerived {
		t.Fatalf("derived source = %q", derived.Source)
	}
	if !run.Granted(secondary.ID) {
		t.Fatal("derived grant must join the run's granted set")
	}
}

func TestGranterDerivedFailureDoesNotUndoPrimary(t *testing.T) {
	repo := newStubGranterRepo()
	finder := &stubBundleFinder{err: errors.New("lookup timeout")}
	g := newTestGranter(t, repo, finder, NewStorageCapabilities(nil))
	run := NewRunState()

	primary := bundlePass(enums.PassCategoryPrimary)
	created, err := g.Grant(context.Background(), run, GrantRequest{
		UserID: uuid.New(),
		Phone:  "9998887770",
		Pass:   primary,
		Source: enums.OwnershipSourceSync,
	})
	if err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if !created || !run.Granted(primary.ID) {
		t.Fatal("primary grant must survive a derived-grant failure")
	}
}

func TestGranterSecondaryBundleDoesNotDerive(t *testing.T) {
	repo := newStubGranterRepo()
	g := newTestGranter(t, repo, &stubBundleFinder{secondary: bundlePass(enums.PassCategorySecondary)}, NewStorageCapabilities(nil))

	if _, err := g.Grant(context.Background(), NewRunState(), GrantRequest{
		UserID: uuid.New(),
		Phone:  "9998887770",
		Pass:   bundlePass(enums.PassCategorySecondary),
		Source: enums.OwnershipSourceSync,
	}); err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if len(repo.upserts) != 1 {
		t.Fatalf("secondary bundle grant must not cascade, got %d writes", len(repo.upserts))
	}
}
