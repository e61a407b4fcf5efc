package ingest

import (
	"time"

	"github.com/festworks/festpass-backend/pkg/enums"
	"github.com/google/uuid"
)

// RunState carries the per-run memory shared by the pipeline stages: passes
// already granted (or confirmed owned) this run, and which log rows were
// persisted by the current batch rather than recovered by backfill.
type RunState struct {
	granted   map[uuid.UUID]bool
	persisted map[uuid.UUID]bool
}

// NewRunState returns empty state for one ingestion run.
func NewRunState() *RunState {
	return &RunState{
		granted:   map[uuid.UUID]bool{},
		persisted: map[uuid.UUID]bool{},
	}
}

// Granted reports whether the pass was already handled this run.
func (r *RunState) Granted(passID uuid.UUID) bool {
	return r.granted[passID]
}

// MarkGranted records the pass in the in-run granted set.
func (r *RunState) MarkGranted(passID uuid.UUID) {
	r.granted[passID] = true
}

// MarkPersisted records that the log row came from the current batch.
func (r *RunState) MarkPersisted(logID uuid.UUID) {
	r.persisted[logID] = true
}

// PersistedThisRun reports whether the log row came from the current batch.
func (r *RunState) PersistedThisRun(logID uuid.UUID) bool {
	return r.persisted[logID]
}

// PendingItem is one successful payment that has not produced an owned pass.
type PendingItem struct {
	LogID      uuid.UUID           `json:"log_id"`
	TrackingID string              `json:"tracking_id"`
	Key        string              `json:"key"`
	EventName  string              `json:"event_name,omitempty"`
	Reason     enums.PendingReason `json:"reason"`
}

// AdminPendingItem is a PendingItem enriched for the admin queue.
type AdminPendingItem struct {
	PendingItem
	UserID    uuid.UUID `json:"user_id"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}
