package ingest

import (
	"context"
	"testing"

	"github.com/festworks/festpass-backend/pkg/db/models"
	"github.com/festworks/festpass-backend/pkg/enums"
	"github.com/google/uuid"
)

type stubGuardRepo struct {
	blocked bool
	calls   int
}

func (s *stubGuardRepo) ExistsBundleOwnershipForOtherUser(ctx context.Context, phone string, userID uuid.UUID) (bool, error) {
	s.calls++
	return s.blocked, nil
}

func TestGuardAllowsNonBundles(t *testing.T) {
	repo := &stubGuardRepo{blocked: true}
	guard := NewPhoneBundleGuard(repo)

	eventID := uuid.New()
	eventPass := &models.Pass{ID: uuid.New(), EventID: &eventID, Category: enums.PassCategoryPrimary}
	allowed, err := guard.Allow(context.Background(), "9998887770", uuid.New(), eventPass)
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if !allowed {
		t.Fatal("single-event passes must always pass the guard")
	}
	if repo.calls != 0 {
		t.Fatal("non-bundle passes must not hit storage")
	}
}

func TestGuardBlocksWhenOtherAccountOwnsBundle(t *testing.T) {
	repo := &stubGuardRepo{blocked: true}
	guard := NewPhoneBundleGuard(repo)

	bundle := &models.Pass{ID: uuid.New(), Category: enums.PassCategoryPrimary}
	allowed, err := guard.Allow(context.Background(), "9998887770", uuid.New(), bundle)
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if allowed {
		t.Fatal("expected cross-account bundle block")
	}
}

func TestGuardBlocksConsumedPhoneWithinRun(t *testing.T) {
	repo := &stubGuardRepo{}
	guard := NewPhoneBundleGuard(repo)
	bundle := &models.Pass{ID: uuid.New(), Category: enums.PassCategoryPrimary}

	allowed, err := guard.Allow(context.Background(), "9998887770", uuid.New(), bundle)
	if err != nil || !allowed {
		t.Fatalf("first grant should pass: allowed=%v err=%v", allowed, err)
	}
	guard.MarkConsumed("9998887770")

	allowed, err = guard.Allow(context.Background(), "9998887770", uuid.New(), bundle)
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if allowed {
		t.Fatal("consumed phone must be blocked for the rest of the run")
	}

	// a different phone in the same run is unaffected
	allowed, _ = guard.Allow(context.Background(), "8887776660", uuid.New(), bundle)
	if !allowed {
		t.Fatal("other phones must not be affected")
	}
}
