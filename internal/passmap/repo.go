package passmap

import (
	"context"
	"sync"

	"github.com/festworks/festpass-backend/pkg/db"
	"github.com/festworks/festpass-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Snapshot is the merged whitelist: every legacy and v2 key in one namespace.
// A key mapping to nil is explicitly whitelisted but unassigned.
type Snapshot map[string]*uuid.UUID

// Repository loads the external pass whitelist.
type Repository struct {
	db *gorm.DB

	mu          sync.Mutex
	v2Supported bool
}

// NewRepository constructs a pass-map repo bound to the provided GORM DB.
func NewRepository(conn *gorm.DB) *Repository {
	return &Repository{db: conn, v2Supported: true}
}

// LoadAll reads every active mapping row and merges legacy and v2 keys into
// one namespace. If the newer columns (v2 key, active flag) do not exist in
// this schema, the load degrades to legacy-only, unfiltered reads and
// remembers that for the process lifetime.
func (r *Repository) LoadAll(ctx context.Context) (Snapshot, error) {
	rows, err := r.fetch(ctx)
	if err != nil {
		return nil, err
	}

	snapshot := make(Snapshot, len(rows)*2)
	for _, row := range rows {
		snapshot[row.ItemKey] = row.PassID
		if row.ItemKeyV2 != nil && *row.ItemKeyV2 != "" {
			snapshot[*row.ItemKeyV2] = row.PassID
		}
	}
	return snapshot, nil
}

func (r *Repository) fetch(ctx context.Context) ([]models.ExternalPassMap, error) {
	var rows []models.ExternalPassMap

	if r.hasV2Column() {
		err := r.db.WithContext(ctx).
			Model(&models.ExternalPassMap{}).
			Select("id", "item_key", "item_key_v2", "pass_id", "is_active").
			Where("is_active = ?", true).
			Find(&rows).Error
		if err == nil {
			return rows, nil
		}
		if !db.IsUndefinedColumn(err) {
			return nil, err
		}
		r.disableV2Column()
		rows = nil
	}

	err := r.db.WithContext(ctx).
		Model(&models.ExternalPassMap{}).
		Select("id", "item_key", "pass_id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) hasV2Column() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.v2Supported
}

func (r *Repository) disableV2Column() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.v2Supported = false
}
