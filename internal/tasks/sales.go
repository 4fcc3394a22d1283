package tasks

import (
	"context"
	"errors"

	"github.com/user/storefleet/internal/engine"
	"github.com/user/storefleet/internal/logger"
	"github.com/user/storefleet/internal/marketplace"
	"github.com/user/storefleet/internal/storage/postgres"
)

// Feed position used when a store has never been pulled.
const salesInitialCursor = "2025-01-01T00:00:00"

type salesStore interface {
	SalesStatus(ctx context.Context, storeID int64) (needLoad bool, lastChangeDate string, err error)
	UpsertSales(ctx context.Context, storeID int64, sales []postgres.SaleRow) error
	UpsertSalesCursor(ctx context.Context, storeID int64, lastChangeDate string, isFinal bool) error
}

type salesAPI interface {
	Sales(ctx context.Context, dateFrom string) ([]marketplace.Sale, error)
}

// SalesTask drains the supplier sales feed. Each step pulls one chunk from the
// stored cursor; an empty chunk marks the cursor final for today.
type SalesTask struct {
	base
	store salesStore
	api   salesAPI
}

func NewSalesTask(storeID int64, store salesStore, api salesAPI, log logger.Logger) *SalesTask {
	return &SalesTask{
		base:  base{storeID: storeID, log: log},
		store: store,
		api:   api,
	}
}

func (t *SalesTask) Name() string { return "fact_sales" }

func (t *SalesTask) Step(ctx context.Context) error {
	needLoad, lastChange, err := t.store.SalesStatus(ctx, t.storeID)
	if err != nil {
		return t.fail(t.Name(), err)
	}
	if !needLoad {
		t.status = engine.StatusSuccess
		return nil
	}

	dateFrom := salesInitialCursor
	if lastChange != "" {
		dateFrom = lastChange
	}

	sales, err := t.api.Sales(ctx, dateFrom)
	if err != nil && !errors.Is(err, marketplace.ErrNoData) {
		return t.fail(t.Name(), err)
	}
	if len(sales) == 0 {
		if err := t.store.UpsertSalesCursor(ctx, t.storeID, dateFrom, true); err != nil {
			return t.fail(t.Name(), err)
		}
		t.status = engine.StatusSuccess
		return nil
	}

	rows := make([]postgres.SaleRow, 0, len(sales))
	for _, sale := range sales {
		saleType := ""
		if sale.SaleID != "" {
			saleType = sale.SaleID[:1]
		}
		date := sale.Date
		if len(date) > 10 {
			date = date[:10]
		}
		rows = append(rows, postgres.SaleRow{
			SaleID:         sale.SaleID,
			NmID:           sale.NmID,
			SaleType:       saleType,
			Date:           date,
			LastChangeDate: sale.LastChangeDate,
			PriceWithDisc:  sale.PriceWithDisc,
		})
	}
	if err := t.store.UpsertSales(ctx, t.storeID, rows); err != nil {
		return t.fail(t.Name(), err)
	}
	// Advance the cursor to the newest change seen; the next step pulls from
	// there until the feed runs dry.
	cursor := rows[len(rows)-1].LastChangeDate
	if err := t.store.UpsertSalesCursor(ctx, t.storeID, cursor, false); err != nil {
		return t.fail(t.Name(), err)
	}
	return nil
}
