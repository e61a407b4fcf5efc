package ingest

import (
	"context"
	"fmt"

	"github.com/festworks/festpass-backend/pkg/db"
	"github.com/festworks/festpass-backend/pkg/db/models"
	"github.com/festworks/festpass-backend/pkg/logger"
	"github.com/google/uuid"
)

type logInserter interface {
	Insert(ctx context.Context, log *models.PaymentLog, omit []string) (*models.PaymentLog, bool, error)
}

// Persister writes validated documents into the payment audit trail.
type Persister struct {
	logs   logInserter
	caps   *StorageCapabilities
	logger *logger.Logger
}

// PersisterParams bundles the dependencies required to build a persister.
type PersisterParams struct {
	Logs         logInserter
	Capabilities *StorageCapabilities
	Logger       *logger.Logger
}

// NewPersister constructs the log persister.
func NewPersister(params PersisterParams) (*Persister, error) {
	if params.Logs == nil {
		return nil, fmt.Errorf("payment log repository is required")
	}
	if params.Capabilities == nil {
		return nil, fmt.Errorf("storage capabilities are required")
	}
	return &Persister{
		logs:   params.Logs,
		caps:   params.Capabilities,
		logger: params.Logger,
	}, nil
}

// Persist idempotently stores one normalized document. On duplicate the
// existing row is returned with created=false. If the schema rejects the
// optional event-type column, the write retries without it and the column is
// skipped for the remainder of the process.
func (p *Persister) Persist(ctx context.Context, userID uuid.UUID, phone string, doc *NormalizedDoc) (*models.PaymentLog, bool, error) {
	log := &models.PaymentLog{
		ID:                uuid.New(),
		TrackingID:        doc.TrackingID,
		Phone:             phone,
		UserID:            userID,
		Status:            doc.Status,
		Membership:        doc.Membership,
		EventName:         doc.EventName,
		EventType:         doc.EventType,
		Amount:            doc.Amount,
		ExternalCreatedAt: doc.ExternalCreatedAt,
		RawDocument:       doc.Raw,
	}

	omit := p.omitColumns()
	row, created, err := p.logs.Insert(ctx, log, omit)
	if err == nil {
		return row, created, nil
	}

	if len(omit) == 0 && db.IsUndefinedColumn(err) {
		p.caps.DisableLogEventTypeColumn()
		if p.logger != nil {
			p.logger.Warn(ctx, "payment_logs has no event_type column, omitting it from now on")
		}
		log.ID = uuid.New()
		return p.logs.Insert(ctx, log, p.omitColumns())
	}
	return nil, false, err
}

func (p *Persister) omitColumns() []string {
	if p.caps.LogEventTypeColumn() {
		return nil
	}
	return []string{"EventType"}
}
