package ingest

import (
	"context"

	"github.com/festworks/festpass-backend/pkg/db/models"
	"github.com/festworks/festpass-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PaymentLogRepository persists and queries the payment audit trail.
type PaymentLogRepository struct {
	db *gorm.DB
}

// NewPaymentLogRepository constructs a repo bound to the provided GORM DB.
func NewPaymentLogRepository(db *gorm.DB) *PaymentLogRepository {
	return &PaymentLogRepository{db: db}
}

// Insert writes the log with conflict-ignore semantics on (phone,
// tracking_id). Returns the persisted row (existing on duplicate) and whether
// a new row was created. Columns named in omit are excluded from the write.
func (r *PaymentLogRepository) Insert(ctx context.Context, log *models.PaymentLog, omit []string) (*models.PaymentLog, bool, error) {
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "phone"}, {Name: "tracking_id"}},
		DoNothing: true,
	})
	if len(omit) > 0 {
		tx = tx.Omit(omit...)
	}
	result := tx.Create(log)
	if result.Error != nil {
		return nil, false, result.Error
	}
	if result.RowsAffected > 0 {
		return log, true, nil
	}

	var existing models.PaymentLog
	err := r.db.WithContext(ctx).
		Where("phone = ? AND tracking_id = ?", log.Phone, log.TrackingID).
		First(&existing).Error
	if err != nil {
		return nil, false, err
	}
	return &existing, false, nil
}

// ListSuccessByUser returns every canonical-success log for the user, oldest
// first. Callers normalize legacy spellings before relying on this.
func (r *PaymentLogRepository) ListSuccessByUser(ctx context.Context, userID uuid.UUID) ([]models.PaymentLog, error) {
	var rows []models.PaymentLog
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, enums.PaymentStatusSuccess).
		Order("created_at asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListSuccessPage returns a keyset page of success logs across all users,
// newest first, for the admin pending queue.
func (r *PaymentLogRepository) ListSuccessPage(ctx context.Context, limit int, before *models.PaymentLog) ([]models.PaymentLog, error) {
	tx := r.db.WithContext(ctx).
		Where("status = ?", enums.PaymentStatusSuccess).
		Order("created_at desc, id desc").
		Limit(limit)
	if before != nil {
		tx = tx.Where("(created_at, id) < (?, ?)", before.CreatedAt, before.ID)
	}
	var rows []models.PaymentLog
	if err := tx.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// FindByID loads one payment log.
func (r *PaymentLogRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentLog, error) {
	var row models.PaymentLog
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// NormalizeLegacyStatusesForUser rewrites any accepted legacy success
// spelling still stored for this user to the canonical status. Returns the
// number of repaired rows.
func (r *PaymentLogRepository) NormalizeLegacyStatusesForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.PaymentLog{}).
		Where("user_id = ? AND status <> ? AND lower(status) IN ?", userID, enums.PaymentStatusSuccess, enums.AcceptedSuccessSpellings()).
		Update("status", enums.PaymentStatusSuccess)
	return result.RowsAffected, result.Error
}

// NormalizeLegacyStatuses is the fleet-wide variant used by the nightly
// maintenance job.
func (r *PaymentLogRepository) NormalizeLegacyStatuses(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.PaymentLog{}).
		Where("status <> ? AND lower(status) IN ?", enums.PaymentStatusSuccess, enums.AcceptedSuccessSpellings()).
		Update("status", enums.PaymentStatusSuccess)
	return result.RowsAffected, result.Error
}
