package ingest

import (
	"context"

	"github.com/festworks/festpass-backend/pkg/db/models"
	"github.com/google/uuid"
)

type guardRepo interface {
	ExistsBundleOwnershipForOtherUser(ctx context.Context, phone string, userID uuid.UUID) (bool, error)
}

// PhoneBundleGuard stops one phone number's single real-world purchase from
// fanning out into bundle grants on multiple accounts. One guard instance
// lives for exactly one ingestion run.
type PhoneBundleGuard struct {
	passes   guardRepo
	consumed map[string]bool
}

// NewPhoneBundleGuard constructs a fresh guard for one run.
func NewPhoneBundleGuard(passes guardRepo) *PhoneBundleGuard {
	return &PhoneBundleGuard{
		passes:   passes,
		consumed: map[string]bool{},
	}
}

// Allow reports whether a grant of pass may proceed for this user and phone.
// Non-bundle passes always pass through. A bundle grant is blocked when the
// phone was already consumed this run, or when a different account on the
// same phone already owns a bundle-class pass.
func (g *PhoneBundleGuard) Allow(ctx context.Context, phone string, userID uuid.UUID, pass *models.Pass) (bool, error) {
	if pass == nil || !pass.IsBundle() {
		return true, nil
	}
	if g.consumed[phone] {
		return false, nil
	}
	blocked, err := g.passes.ExistsBundleOwnershipForOtherUser(ctx, phone, userID)
	if err != nil {
		return false, err
	}
	return !blocked, nil
}

// MarkConsumed records that a bundle grant succeeded for this phone within
// the current run.
func (g *PhoneBundleGuard) MarkConsumed(phone string) {
	g.consumed[phone] = true
}
