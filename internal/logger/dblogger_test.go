package logger

import (
	"context"
	"testing"
)

type captureCreator struct {
	entries []Entry
}

func (c *captureCreator) CreateLog(_ context.Context, entry Entry) error {
	c.entries = append(c.entries, entry)
	return nil
}

func TestDatabaseLoggerFieldRouting(t *testing.T) {
	cap := &captureCreator{}
	l := NewDatabaseLogger(context.Background(), cap, "worker-1", nil)

	l.Error("load failed", "store_id", int64(42), "source", "cards_list", "attempt", 3)

	if len(cap.entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(cap.entries))
	}
	e := cap.entries[0]
	if e.Level != "ERROR" || e.Service != "worker-1" || e.Message != "load failed" {
		t.Fatalf("unexpected entry: %+v", e)
	}
	if e.StoreID != 42 {
		t.Fatalf("store_id = %d, want 42", e.StoreID)
	}
	if e.Source != "cards_list" {
		t.Fatalf("source = %q", e.Source)
	}
	if got, ok := e.Metadata["attempt"]; !ok || got != 3 {
		t.Fatalf("metadata attempt = %v", got)
	}
}

func TestDatabaseLoggerIntStoreID(t *testing.T) {
	cap := &captureCreator{}
	l := NewDatabaseLogger(context.Background(), cap, "worker-1", nil)

	l.Info("ok", "store_id", 7)

	if cap.entries[0].StoreID != 7 {
		t.Fatalf("store_id = %d, want 7", cap.entries[0].StoreID)
	}
}

func TestDatabaseLoggerOddPairs(t *testing.T) {
	cap := &captureCreator{}
	l := NewDatabaseLogger(context.Background(), cap, "w", nil)

	l.Warn("odd", "dangling")

	if len(cap.entries) != 1 || cap.entries[0].Metadata != nil {
		t.Fatalf("dangling key should be dropped: %+v", cap.entries[0])
	}
}
