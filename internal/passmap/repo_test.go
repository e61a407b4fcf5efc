package passmap

import (
	"context"
	"testing"

	"github.com/festworks/festpass-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const mapDDL = `
CREATE TABLE IF NOT EXISTS external_pass_map (
  id TEXT PRIMARY KEY,
  item_key TEXT NOT NULL UNIQUE,
  item_key_v2 TEXT UNIQUE,
  pass_id TEXT,
  is_active INTEGER NOT NULL DEFAULT 1,
  notes TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`

// legacyMapDDL mimics a deployment that predates the v2 key and active flag.
const legacyMapDDL = `
CREATE TABLE IF NOT EXISTS external_pass_map (
  id TEXT PRIMARY KEY,
  item_key TEXT NOT NULL UNIQUE,
  pass_id TEXT,
  notes TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`

func newMapDB(t *testing.T, ddl string) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.Exec(ddl).Error; err != nil {
		t.Fatalf("create table: %v", err)
	}
	return conn
}

func TestLoadAllMergesLegacyAndV2Keys(t *testing.T) {
	conn := newMapDB(t, mapDDL)
	repo := NewRepository(conn)
	ctx := context.Background()

	passID := uuid.New()
	v2 := "bundle|fest pass"
	rows := []models.ExternalPassMap{
		{ID: uuid.New(), ItemKey: "gold|fest pass", ItemKeyV2: &v2, PassID: &passID, IsActive: true},
		{ID: uuid.New(), ItemKey: "merch|t-shirt", PassID: nil, IsActive: true},
	}
	if err := conn.Create(&rows).Error; err != nil {
		t.Fatalf("seed rows: %v", err)
	}

	snapshot, err := repo.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(snapshot) != 3 {
		t.Fatalf("expected 3 merged keys, got %d", len(snapshot))
	}
	if got := snapshot["gold|fest pass"]; got == nil || *got != passID {
		t.Fatalf("legacy key entry = %v, want %s", got, passID)
	}
	if got := snapshot["bundle|fest pass"]; got == nil || *got != passID {
		t.Fatalf("v2 key entry = %v, want %s", got, passID)
	}
	if got, found := snapshot["merch|t-shirt"]; !found || got != nil {
		t.Fatalf("explicit-null entry = %v (found %t), want present nil", got, found)
	}
}

func TestLoadAllSkipsDeactivatedRows(t *testing.T) {
	conn := newMapDB(t, mapDDL)
	repo := NewRepository(conn)
	ctx := context.Background()

	passID := uuid.New()
	if err := conn.Exec(
		"INSERT INTO external_pass_map (id, item_key, pass_id, is_active) VALUES (?, ?, ?, 1), (?, ?, ?, 0)",
		uuid.NewString(), "gold|fest pass", passID.String(),
		uuid.NewString(), "retired|old pass", passID.String(),
	).Error; err != nil {
		t.Fatalf("seed rows: %v", err)
	}

	snapshot, err := repo.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if _, found := snapshot["retired|old pass"]; found {
		t.Fatal("deactivated mapping must not load")
	}
	if got := snapshot["gold|fest pass"]; got == nil || *got != passID {
		t.Fatalf("active entry = %v, want %s", got, passID)
	}
}

func TestLoadAllDegradesOnLegacySchema(t *testing.T) {
	conn := newMapDB(t, legacyMapDDL)
	repo := NewRepository(conn)
	ctx := context.Background()

	passID := uuid.New()
	if err := conn.Exec(
		"INSERT INTO external_pass_map (id, item_key, pass_id) VALUES (?, ?, ?)",
		uuid.NewString(), "gold|fest pass", passID.String(),
	).Error; err != nil {
		t.Fatalf("seed row: %v", err)
	}

	snapshot, err := repo.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll should degrade, got error: %v", err)
	}
	if got := snapshot["gold|fest pass"]; got == nil || *got != passID {
		t.Fatalf("legacy entry = %v, want %s", got, passID)
	}
	if repo.hasV2Column() {
		t.Fatal("expected v2 support flag to stay off after degradation")
	}

	// flag is sticky; the next load goes straight to the legacy query
	if _, err := repo.LoadAll(ctx); err != nil {
		t.Fatalf("second LoadAll: %v", err)
	}
}
