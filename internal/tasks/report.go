package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/user/storefleet/internal/engine"
	"github.com/user/storefleet/internal/logger"
	"github.com/user/storefleet/internal/marketplace"
	"github.com/user/storefleet/internal/storage/postgres"
)

const rateLimitPause = 60 * time.Second

type reportStore interface {
	NextReportDate(ctx context.Context, storeID int64) (*postgres.ReportCursor, error)
	DeleteReportDay(ctx context.Context, storeID int64, day time.Time) error
	InsertReportRows(ctx context.Context, storeID int64, rows []postgres.ReportRow) error
	InsertReportProgress(ctx context.Context, storeID int64, day time.Time, page int, isNextPage bool) error
	UpdateReportProgress(ctx context.Context, infoID int64, page int, isNextPage bool) error
}

type reportAPI interface {
	NmReportPage(ctx context.Context, date time.Time, page int) (*marketplace.NmReportPage, error)
}

// ReportTask fills the 90-day per-product statistics grid, one page per step.
// Progress rows remember the pagination position per date, so an interrupted
// store resumes mid-date.
type ReportTask struct {
	base
	store   reportStore
	api     reportAPI
	limiter *marketplace.Limiter
}

func NewReportTask(storeID int64, store reportStore, api reportAPI, log logger.Logger) *ReportTask {
	return &ReportTask{
		base:    base{storeID: storeID, log: log},
		store:   store,
		api:     api,
		limiter: marketplace.NewLimiter(3, time.Minute),
	}
}

func (t *ReportTask) Name() string { return "nm_report_detail" }

func (t *ReportTask) Step(ctx context.Context) error {
	cursor, err := t.store.NextReportDate(ctx, t.storeID)
	if err != nil {
		return t.fail(t.Name(), err)
	}
	if cursor == nil {
		t.status = engine.StatusSuccess
		return nil
	}

	if cursor.IsNextPage == nil {
		// Fresh date: drop any partial rows from an aborted pass, load page 1.
		if err := t.store.DeleteReportDay(ctx, t.storeID, cursor.TargetDate); err != nil {
			return t.fail(t.Name(), err)
		}
		page, err := t.fetchPage(ctx, cursor.TargetDate, 1)
		if err != nil || page == nil {
			return err
		}
		if err := t.insertPage(ctx, cursor.TargetDate, page); err != nil {
			return t.fail(t.Name(), err)
		}
		if err := t.store.InsertReportProgress(ctx, t.storeID, cursor.TargetDate, 1, page.Data.IsNextPage); err != nil {
			return t.fail(t.Name(), err)
		}
		return nil
	}

	if *cursor.IsNextPage {
		next := *cursor.Page + 1
		page, err := t.fetchPage(ctx, cursor.TargetDate, next)
		if err != nil || page == nil {
			return err
		}
		if err := t.insertPage(ctx, cursor.TargetDate, page); err != nil {
			return t.fail(t.Name(), err)
		}
		if err := t.store.UpdateReportProgress(ctx, *cursor.InfoID, next, page.Data.IsNextPage); err != nil {
			return t.fail(t.Name(), err)
		}
	}
	return nil
}

// fetchPage honors the endpoint quota. A nil page without error means the
// limiter refused the request and the step should be retried later. A date
// with no data comes back as an empty final page so the caller still records
// progress and the grid moves on.
func (t *ReportTask) fetchPage(ctx context.Context, date time.Time, page int) (*marketplace.NmReportPage, error) {
	if !t.limiter.Allow() {
		return nil, nil
	}
	out, err := t.api.NmReportPage(ctx, date, page)
	switch {
	case errors.Is(err, marketplace.ErrNoData):
		t.log.Info("report date has no data",
			"source", t.Name(), "store_id", t.storeID, "date", date.Format("2006-01-02"))
		return &marketplace.NmReportPage{}, nil
	case errors.Is(err, marketplace.ErrTooManyRequests):
		t.limiter.BlockFor(rateLimitPause)
		t.log.Warn("report endpoint rate limited",
			"source", t.Name(), "store_id", t.storeID)
		return nil, nil
	case err != nil:
		return nil, t.fail(t.Name(), err)
	}
	return out, nil
}

func (t *ReportTask) insertPage(ctx context.Context, date time.Time, page *marketplace.NmReportPage) error {
	if len(page.Data.Cards) == 0 {
		return nil
	}
	rows := make([]postgres.ReportRow, 0, len(page.Data.Cards))
	for _, c := range page.Data.Cards {
		p := c.Statistics.SelectedPeriod
		rows = append(rows, postgres.ReportRow{
			Date:           date,
			NmID:           c.NmID,
			OpenCardCount:  p.OpenCardCount,
			AddToCartCount: p.AddToCartCount,
			OrdersCount:    p.OrdersCount,
			OrdersSumRub:   p.OrdersSumRub,
			BuyoutsCount:   p.BuyoutsCount,
			BuyoutsSumRub:  p.BuyoutsSumRub,
			CancelCount:    p.CancelCount,
			CancelSumRub:   p.CancelSumRub,
			AvgPriceRub:    p.AvgPriceRub,
		})
	}
	return t.store.InsertReportRows(ctx, t.storeID, rows)
}
