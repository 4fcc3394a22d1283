package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/user/storefleet/internal/engine"
	"github.com/user/storefleet/internal/logger"
	"github.com/user/storefleet/internal/marketplace"
	"github.com/user/storefleet/internal/storage/postgres"
)

const cardsPageLimit = 100

type cardsStore interface {
	CardsFreshness(ctx context.Context, storeID int64) (actual, total int64, err error)
	DeleteCards(ctx context.Context, storeID int64) error
	InsertCards(ctx context.Context, storeID int64, cards []postgres.CardRow) error
}

type cardsAPI interface {
	CardsPage(ctx context.Context, cursor marketplace.CardsCursor) (*marketplace.CardsPage, error)
}

// CardsTask snapshots the store's product catalogue. Stale snapshots are
// dropped and reloaded whole; a fresh snapshot finishes the task immediately.
type CardsTask struct {
	base
	store cardsStore
	api   cardsAPI
}

func NewCardsTask(storeID int64, store cardsStore, api cardsAPI, log logger.Logger) *CardsTask {
	return &CardsTask{
		base:  base{storeID: storeID, log: log},
		store: store,
		api:   api,
	}
}

func (t *CardsTask) Name() string { return "cards_list" }

func (t *CardsTask) Step(ctx context.Context) error {
	actual, total, err := t.store.CardsFreshness(ctx, t.storeID)
	if err != nil {
		return t.fail(t.Name(), err)
	}

	switch {
	case total == 0:
		// Nothing yet, first load.
	case actual != total:
		t.log.Info("stale card snapshot, reloading",
			"source", t.Name(), "store_id", t.storeID)
		if err := t.store.DeleteCards(ctx, t.storeID); err != nil {
			return t.fail(t.Name(), err)
		}
	default:
		t.status = engine.StatusSuccess
		return nil
	}

	cards, err := t.fetchAll(ctx)
	if err != nil {
		return t.fail(t.Name(), err)
	}
	if len(cards) == 0 {
		return t.fail(t.Name(), errors.New("catalogue is empty"))
	}

	rows := make([]postgres.CardRow, 0, len(cards))
	for _, c := range cards {
		rows = append(rows, postgres.CardRow{
			NmID:       c.NmID,
			VendorCode: c.VendorCode,
			Title:      c.Title,
		})
	}
	if err := t.store.InsertCards(ctx, t.storeID, rows); err != nil {
		return t.fail(t.Name(), err)
	}
	t.status = engine.StatusSuccess
	return nil
}

// fetchAll walks the cursor until a short page signals the end.
func (t *CardsTask) fetchAll(ctx context.Context) ([]marketplace.Card, error) {
	cursor := marketplace.CardsCursor{Limit: cardsPageLimit}
	var cards []marketplace.Card
	for {
		page, err := t.api.CardsPage(ctx, cursor)
		if err != nil {
			return nil, fmt.Errorf("cards page: %w", err)
		}
		cards = append(cards, page.Cards...)
		if page.Cursor.Total < cardsPageLimit {
			return cards, nil
		}
		cursor.UpdatedAt = page.Cursor.UpdatedAt
		cursor.NmID = page.Cursor.NmID
	}
}
