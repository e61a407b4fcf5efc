package enums

// PendingReason explains why a successful payment log has not yet produced a
// pass ownership.
type PendingReason string

const (
	// PendingReasonUnmapped means no mapping row exists for any candidate key.
	PendingReasonUnmapped PendingReason = "unmapped"
	// PendingReasonOwnershipPending means the log resolved to a pass the user
	// does not own yet, e.g. because the phone-scoped guard suppressed the
	// grant or the write failed and will be retried by a later run.
	PendingReasonOwnershipPending PendingReason = "ownership_pending"
)

// String implements fmt.Stringer.
func (p PendingReason) String() string {
	return string(p)
}
