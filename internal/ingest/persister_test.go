package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/festworks/festpass-backend/pkg/db/models"
	"github.com/google/uuid"
)

type stubLogInserter struct {
	calls     []insertCall
	failUntil func(omit []string) error
	existing  *models.PaymentLog
}

type insertCall struct {
	log  models.PaymentLog
	omit []string
}

func (s *stubLogInserter) Insert(ctx context.Context, log *models.PaymentLog, omit []string) (*models.PaymentLog, bool, error) {
	s.calls = append(s.calls, insertCall{log: *log, omit: append([]string{}, omit...)})
	if s.failUntil != nil {
		if err := s.failUntil(omit); err != nil {
			return nil, false, err
		}
	}
	if s.existing != nil {
		return s.existing, false, nil
	}
	return log, true, nil
}

func newTestPersister(t *testing.T, logs *stubLogInserter, caps *StorageCapabilities) *Persister {
	t.Helper()
	p, err := NewPersister(PersisterParams{Logs: logs, Capabilities: caps})
	if err != nil {
		t.Fatalf("NewPersister: %v", err)
	}
	return p
}

func TestPersisterCreatesRow(t *testing.T) {
	logs := &stubLogInserter{}
	p := newTestPersister(t, logs, NewStorageCapabilities(nil))

	eventType := "Gold"
	doc := &NormalizedDoc{TrackingID: "T1", Membership: "Gold", EventName: "Fest Pass", EventType: &eventType}
	row, created, err := p.Persist(context.Background(), uuid.New(), "9998887770", doc)
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if !created {
		t.Fatal("expected created=true")
	}
	if row.TrackingID != "T1" || row.Phone != "9998887770" {
		t.Fatalf("unexpected row: %+v", row)
	}
	if len(logs.calls[0].omit) != 0 {
		t.Fatalf("expected no omitted columns, got %v", logs.calls[0].omit)
	}
}

func TestPersisterReturnsExistingOnDuplicate(t *testing.T) {
	existing := &models.PaymentLog{ID: uuid.New(), TrackingID: "T1"}
	logs := &stubLogInserter{existing: existing}
	p := newTestPersister(t, logs, NewStorageCapabilities(nil))

	row, created, err := p.Persist(context.Background(), uuid.New(), "9998887770", &NormalizedDoc{TrackingID: "T1"})
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if created {
		t.Fatal("expected created=false for duplicate")
	}
	if row.ID != existing.ID {
		t.Fatal("expected the existing row back")
	}
}

func TestPersisterDegradesEventTypeColumn(t *testing.T) {
	logs := &stubLogInserter{
		failUntil: func(omit []string) error {
			if len(omit) == 0 {
				return errors.New("no such column: event_type")
			}
			return nil
		},
	}
	caps := NewStorageCapabilities(nil)
	p := newTestPersister(t, logs, caps)

	eventType := "Gold"
	doc := &NormalizedDoc{TrackingID: "T1", EventType: &eventType}
	_, created, err := p.Persist(context.Background(), uuid.New(), "9998887770", doc)
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if !created {
		t.Fatal("expected retry to create the row")
	}
	if len(logs.calls) != 2 {
		t.Fatalf("expected 2 insert attempts, got %d", len(logs.calls))
	}
	if len(logs.calls[1].omit) != 1 || logs.calls[1].omit[0] != "EventType" {
		t.Fatalf("retry omit = %v", logs.calls[1].omit)
	}
	if caps.LogEventTypeColumn() {
		t.Fatal("capability flag should be off after degradation")
	}

	// subsequent writes skip the column without a failed attempt first
	logs.calls = nil
	if _, _, err := p.Persist(context.Background(), uuid.New(), "9998887770", doc); err != nil {
		t.Fatalf("Persist after degradation: %v", err)
	}
	if len(logs.calls) != 1 || len(logs.calls[0].omit) != 1 {
		t.Fatalf("expected single omitting insert, got %+v", logs.calls)
	}
}

func TestPersisterPropagatesOtherErrors(t *testing.T) {
	logs := &stubLogInserter{
		failUntil: func([]string) error { return errors.New("connection refused") },
	}
	p := newTestPersister(t, logs, NewStorageCapabilities(nil))

	_, _, err := p.Persist(context.Background(), uuid.New(), "9998887770", &NormalizedDoc{TrackingID: "T1"})
	if err == nil {
		t.Fatal("expected error")
	}
}
