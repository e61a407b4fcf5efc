package ingest

import (
	"sync"

	"github.com/festworks/festpass-backend/pkg/metrics"
)

// StorageCapabilities tracks which optional storage features the live schema
// supports. Each flag starts optimistic and is flipped off the first time the
// database rejects the feature; the decision then holds for the rest of the
// process, so a degraded schema costs one failed statement, not one per call.
type StorageCapabilities struct {
	mu sync.Mutex

	ownershipUpsert    bool
	provenanceColumns  bool
	tokenColumn        bool
	logEventTypeColumn bool

	metrics *metrics.IngestMetrics
}

// NewStorageCapabilities returns a capability set with every feature assumed
// present.
func NewStorageCapabilities(m *metrics.IngestMetrics) *StorageCapabilities {
	return &StorageCapabilities{
		ownershipUpsert:    true,
		provenanceColumns:  true,
		tokenColumn:        true,
		logEventTypeColumn: true,
		metrics:            m,
	}
}

// OwnershipUpsert reports whether ON CONFLICT grants are attempted.
func (c *StorageCapabilities) OwnershipUpsert() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ownershipUpsert
}

// DisableOwnershipUpsert switches grants to the check-then-insert path.
func (c *StorageCapabilities) DisableOwnershipUpsert() {
	c.disable(&c.ownershipUpsert, "ownership_upsert")
}

// ProvenanceColumns reports whether ownership writes carry phone/tracking/source.
func (c *StorageCapabilities) ProvenanceColumns() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.provenanceColumns
}

// DisableProvenanceColumns drops provenance columns from ownership writes.
func (c *StorageCapabilities) DisableProvenanceColumns() {
	c.disable(&c.provenanceColumns, "provenance_columns")
}

// TokenColumn reports whether ownership writes carry a redemption token.
func (c *StorageCapabilities) TokenColumn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokenColumn
}

// DisableTokenColumn drops the redemption token from ownership writes.
func (c *StorageCapabilities) DisableTokenColumn() {
	c.disable(&c.tokenColumn, "token_column")
}

// LogEventTypeColumn reports whether payment log writes carry event_type.
func (c *StorageCapabilities) LogEventTypeColumn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.logEventTypeColumn
}

// DisableLogEventTypeColumn drops event_type from payment log writes.
func (c *StorageCapabilities) DisableLogEventTypeColumn() {
	c.disable(&c.logEventTypeColumn, "log_event_type_column")
}

func (c *StorageCapabilities) disable(flag *bool, name string) {
	c.mu.Lock()
	changed := *flag
	*flag = false
	c.mu.Unlock()
	if changed {
		c.metrics.IncCapabilityDisabled(name)
	}
}
