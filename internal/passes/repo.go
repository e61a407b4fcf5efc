package passes

import (
	"context"

	"github.com/festworks/festpass-backend/pkg/db/models"
	"github.com/festworks/festpass-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository exposes pass and ownership persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a passes repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByID loads a pass by its UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Pass, error) {
	var pass models.Pass
	if err := r.db.WithContext(ctx).First(&pass, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &pass, nil
}

// FindByIDs loads the passes for the given ids, keyed by id.
func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Pass, error) {
	result := make(map[uuid.UUID]models.Pass, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var rows []models.Pass
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		result[row.ID] = row
	}
	return result, nil
}

// FindBundleByCategory returns the designated bundle pass for a category: the
// oldest active pass in that category with no event association.
func (r *Repository) FindBundleByCategory(ctx context.Context, category enums.PassCategory) (*models.Pass, error) {
	var pass models.Pass
	err := r.db.WithContext(ctx).
		Where("category = ? AND event_id IS NULL AND is_active = ?", category, true).
		Order("created_at asc").
		First(&pass).Error
	if err != nil {
		return nil, err
	}
	return &pass, nil
}

// ListOwnershipsByUser returns all ownership rows for a user.
func (r *Repository) ListOwnershipsByUser(ctx context.Context, userID uuid.UUID) ([]models.PassOwnership, error) {
	var rows []models.PassOwnership
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// OwnershipExists reports whether the user already holds the pass.
func (r *Repository) OwnershipExists(ctx context.Context, userID, passID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PassOwnership{}).
		Where("user_id = ? AND pass_id = ?", userID, passID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpsertOwnership inserts the ownership with conflict-ignore semantics on
// (user_id, pass_id). Returns true when a new row was created. Columns named
// in omit are excluded from the write.
func (r *Repository) UpsertOwnership(ctx context.Context, own *models.PassOwnership, omit []string) (bool, error) {
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "pass_id"}},
		DoNothing: true,
	})
	if len(omit) > 0 {
		tx = tx.Omit(omit...)
	}
	result := tx.Create(own)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// CreateOwnership performs a plain insert, excluding any columns named in omit.
func (r *Repository) CreateOwnership(ctx context.Context, own *models.PassOwnership, omit []string) error {
	tx := r.db.WithContext(ctx)
	if len(omit) > 0 {
		tx = tx.Omit(omit...)
	}
	return tx.Create(own).Error
}

// DeleteOwnership removes the user's ownership of a pass.
func (r *Repository) DeleteOwnership(ctx context.Context, userID, passID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND pass_id = ?", userID, passID).
		Delete(&models.PassOwnership{}).Error
}

// ExistsBundleOwnershipForOtherUser reports whether a different account
// registered under the same phone number already holds any bundle-class pass.
func (r *Repository) ExistsBundleOwnershipForOtherUser(ctx context.Context, phone string, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PassOwnership{}).
		Joins("JOIN users ON users.id = pass_ownerships.user_id").
		Joins("JOIN passes ON passes.id = pass_ownerships.pass_id").
		Where("users.phone = ? AND pass_ownerships.user_id <> ? AND passes.event_id IS NULL", phone, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
