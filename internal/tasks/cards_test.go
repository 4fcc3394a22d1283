package tasks

import (
	"context"
	"testing"

	"github.com/user/storefleet/internal/engine"
	"github.com/user/storefleet/internal/marketplace"
	"github.com/user/storefleet/internal/storage/postgres"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

type fakeCardsStore struct {
	actual, total int64
	deleted       bool
	inserted      []postgres.CardRow
}

func (f *fakeCardsStore) CardsFreshness(ctx context.Context, storeID int64) (int64, int64, error) {
	return f.actual, f.total, nil
}

func (f *fakeCardsStore) DeleteCards(ctx context.Context, storeID int64) error {
	f.deleted = true
	return nil
}

func (f *fakeCardsStore) InsertCards(ctx context.Context, storeID int64, cards []postgres.CardRow) error {
	f.inserted = cards
	return nil
}

type fakeCardsAPI struct {
	pages []marketplace.CardsPage
	calls int
}

func (f *fakeCardsAPI) CardsPage(ctx context.Context, cursor marketplace.CardsCursor) (*marketplace.CardsPage, error) {
	page := f.pages[f.calls]
	f.calls++
	return &page, nil
}

func fullPage(n int, total int) marketplace.CardsPage {
	var p marketplace.CardsPage
	for i := 0; i < n; i++ {
		p.Cards = append(p.Cards, marketplace.Card{NmID: int64(i + 1), VendorCode: "vc", Title: "t"})
	}
	p.Cursor.Total = total
	return p
}

func TestCardsTaskFreshSnapshotFinishes(t *testing.T) {
	store := &fakeCardsStore{actual: 5, total: 5}
	task := NewCardsTask(1, store, &fakeCardsAPI{}, nopLogger{})

	if err := task.Step(context.Background()); err != nil {
		t.Fatalf("step: %v", err)
	}
	if task.Status() != engine.StatusSuccess {
		t.Fatalf("status = %v", task.Status())
	}
	if store.deleted {
		t.Fatal("fresh snapshot should not be deleted")
	}
}

func TestCardsTaskStaleSnapshotReloads(t *testing.T) {
	store := &fakeCardsStore{actual: 2, total: 5}
	api := &fakeCardsAPI{pages: []marketplace.CardsPage{fullPage(3, 3)}}
	task := NewCardsTask(1, store, api, nopLogger{})

	if err := task.Step(context.Background()); err != nil {
		t.Fatalf("step: %v", err)
	}
	if !store.deleted {
		t.Fatal("stale snapshot should be deleted first")
	}
	if len(store.inserted) != 3 {
		t.Fatalf("inserted %d cards, want 3", len(store.inserted))
	}
	if task.Status() != engine.StatusSuccess {
		t.Fatalf("status = %v", task.Status())
	}
}

func TestCardsTaskPaginatesUntilShortPage(t *testing.T) {
	store := &fakeCardsStore{}
	api := &fakeCardsAPI{pages: []marketplace.CardsPage{
		fullPage(cardsPageLimit, cardsPageLimit),
		fullPage(40, 40),
	}}
	task := NewCardsTask(1, store, api, nopLogger{})

	if err := task.Step(context.Background()); err != nil {
		t.Fatalf("step: %v", err)
	}
	if api.calls != 2 {
		t.Fatalf("api calls = %d, want 2", api.calls)
	}
	if len(store.inserted) != cardsPageLimit+40 {
		t.Fatalf("inserted %d cards", len(store.inserted))
	}
}
