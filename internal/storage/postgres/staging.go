package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Staging writes share one shape: bulk rows go through a temp table via COPY,
// then merge into the staging table in the same transaction.

// CardRow is one product card in staging.
type CardRow struct {
	NmID       int64
	VendorCode string
	Title      string
}

// CardsFreshness counts the store's card rows and how many of them were
// written within the current load schedule.
func (s *Store) CardsFreshness(ctx context.Context, storeID int64) (actual, total int64, err error) {
	query := fmt.Sprintf(`
		SELECT
			COUNT(CASE WHEN (cl.created_at)::DATE >= (CURRENT_TIMESTAMP - INTERVAL '%s')::DATE THEN 1 END) AS actual,
			COUNT(*) AS count_all
		FROM %s.%s cl
		WHERE cl.store_id = $1`, loadSchedule, stgSchema, cardsListTable)

	if err := s.conn.QueryRow(ctx, query, storeID).Scan(&actual, &total); err != nil {
		return 0, 0, fmt.Errorf("failed to check cards freshness: %w", err)
	}
	return actual, total, nil
}

// DeleteCards drops the store's card rows before a full reload.
func (s *Store) DeleteCards(ctx context.Context, storeID int64) error {
	query := fmt.Sprintf(`DELETE FROM %s.%s WHERE store_id = $1`, stgSchema, cardsListTable)
	if _, err := s.conn.Exec(ctx, query, storeID); err != nil {
		return fmt.Errorf("failed to delete cards for store %d: %w", storeID, err)
	}
	return nil
}

// InsertCards bulk-loads a full card snapshot.
func (s *Store) InsertCards(ctx context.Context, storeID int64, cards []CardRow) error {
	if len(cards) == 0 {
		return nil
	}
	rows := make([][]interface{}, 0, len(cards))
	for _, c := range cards {
		rows = append(rows, []interface{}{c.NmID, storeID, c.VendorCode, c.Title})
	}
	_, err := s.conn.CopyFrom(ctx,
		pgx.Identifier{stgSchema, cardsListTable},
		[]string{"nm_id", "store_id", "vendor_code", "title"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to insert cards for store %d: %w", storeID, err)
	}
	return nil
}

// ReportCursor says which report date to load next and where its paging stands.
// InfoID is nil when the date has no progress row yet.
type ReportCursor struct {
	TargetDate time.Time
	InfoID     *int64
	Page       *int
	IsNextPage *bool
}

// NextReportDate joins the 90-day target grid against the store's progress
// rows and returns the first date that is unstarted or mid-pagination.
// Returns nil when every target date is finished.
func (s *Store) NextReportDate(ctx context.Context, storeID int64) (*ReportCursor, error) {
	query := fmt.Sprintf(`
		SELECT m.target_date, m.id, m.page, m.is_next_page FROM
		(WITH target_dates AS (
			SELECT
				(DATE_TRUNC('day', generate_series(
					((CURRENT_TIMESTAMP - INTERVAL '%[1]s') - INTERVAL '90 days')::date,
					((CURRENT_TIMESTAMP - INTERVAL '%[1]s') - INTERVAL '1 days')::date,
					INTERVAL '1 day'
				)))::date AS target_date
		),
		store_info AS (
			SELECT id, fact_date, page, is_next_page
			FROM %[2]s.%[3]s
			WHERE store_id = $1
		)
		SELECT
			td.target_date,
			si.id,
			si.page,
			si.is_next_page
		FROM target_dates td
		LEFT JOIN store_info si ON td.target_date = si.fact_date) m
		WHERE m.is_next_page = TRUE OR m.is_next_page IS NULL
		LIMIT 1`, loadSchedule, stgSchema, nmReportDetailInfoTable)

	var cursor ReportCursor
	err := s.conn.QueryRow(ctx, query, storeID).
		Scan(&cursor.TargetDate, &cursor.InfoID, &cursor.Page, &cursor.IsNextPage)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find next report date: %w", err)
	}
	return &cursor, nil
}

// DeleteReportDay clears one date before its first page loads, so a reload
// never leaves rows from a previous partial pass.
func (s *Store) DeleteReportDay(ctx context.Context, storeID int64, day time.Time) error {
	query := fmt.Sprintf(`DELETE FROM %s.%s WHERE store_id = $1 AND date = $2`,
		stgSchema, nmReportDetailTable)
	if _, err := s.conn.Exec(ctx, query, storeID, day); err != nil {
		return fmt.Errorf("failed to clear report day: %w", err)
	}
	return nil
}

// ReportRow is one product's statistics for one report date.
type ReportRow struct {
	Date           time.Time
	NmID           int64
	OpenCardCount  int64
	AddToCartCount int64
	OrdersCount    int64
	OrdersSumRub   float64
	BuyoutsCount   int64
	BuyoutsSumRub  float64
	CancelCount    int64
	CancelSumRub   float64
	AvgPriceRub    float64
}

// InsertReportRows merges report rows, keeping existing rows on conflict.
func (s *Store) InsertReportRows(ctx context.Context, storeID int64, reportRows []ReportRow) error {
	if len(reportRows) == 0 {
		return nil
	}
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		CREATE TEMP TABLE temp_nm_report_detail (
			date DATE,
			store_id INTEGER,
			nm_id INTEGER,
			open_card_count INTEGER,
			add_to_cart_count INTEGER,
			orders_count INTEGER,
			orders_sum_rub INTEGER,
			buyouts_count INTEGER,
			buyouts_sum_rub INTEGER,
			cancel_count INTEGER,
			cancel_sum_rub INTEGER,
			avg_price_rub INTEGER
		) ON COMMIT DROP`)
	if err != nil {
		return fmt.Errorf("failed to create report temp table: %w", err)
	}

	rows := make([][]interface{}, 0, len(reportRows))
	for _, r := range reportRows {
		rows = append(rows, []interface{}{
			r.Date, storeID, r.NmID,
			r.OpenCardCount, r.AddToCartCount, r.OrdersCount, int64(r.OrdersSumRub),
			r.BuyoutsCount, int64(r.BuyoutsSumRub), r.CancelCount, int64(r.CancelSumRub),
			int64(r.AvgPriceRub),
		})
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"temp_nm_report_detail"},
		[]string{
			"date", "store_id", "nm_id", "open_card_count", "add_to_cart_count",
			"orders_count", "orders_sum_rub", "buyouts_count", "buyouts_sum_rub",
			"cancel_count", "cancel_sum_rub", "avg_price_rub",
		},
		pgx.CopyFromRows(rows),
	); err != nil {
		return fmt.Errorf("failed to copy report rows: %w", err)
	}

	_, err = tx.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s.%s (
			date, store_id, nm_id, open_card_count, add_to_cart_count,
			orders_count, orders_sum_rub, buyouts_count, buyouts_sum_rub,
			cancel_count, cancel_sum_rub, avg_price_rub
		)
		SELECT
			date, store_id, nm_id, open_card_count, add_to_cart_count,
			orders_count, orders_sum_rub, buyouts_count, buyouts_sum_rub,
			cancel_count, cancel_sum_rub, avg_price_rub
		FROM temp_nm_report_detail
		ON CONFLICT (date, store_id, nm_id) DO NOTHING`,
		stgSchema, nmReportDetailTable))
	if err != nil {
		return fmt.Errorf("failed to merge report rows: %w", err)
	}
	return tx.Commit(ctx)
}

// InsertReportProgress records the first loaded page of a report date.
func (s *Store) InsertReportProgress(ctx context.Context, storeID int64, day time.Time, page int, isNextPage bool) error {
	query := fmt.Sprintf(`
		INSERT INTO %s.%s (store_id, page, is_next_page, cant_be_load, fact_date, created_at)
		VALUES ($1, $2, $3, FALSE, $4, CURRENT_TIMESTAMP)`,
		stgSchema, nmReportDetailInfoTable)
	if _, err := s.conn.Exec(ctx, query, storeID, page, isNextPage, day); err != nil {
		return fmt.Errorf("failed to insert report progress: %w", err)
	}
	return nil
}

// UpdateReportProgress advances an existing progress row to the next page.
func (s *Store) UpdateReportProgress(ctx context.Context, infoID int64, page int, isNextPage bool) error {
	query := fmt.Sprintf(`
		UPDATE %s.%s
		SET
			page = $2,
			is_next_page = $3,
			cant_be_load = FALSE,
			created_at = CURRENT_TIMESTAMP
		WHERE id = $1`, stgSchema, nmReportDetailInfoTable)
	if _, err := s.conn.Exec(ctx, query, infoID, page, isNextPage); err != nil {
		return fmt.Errorf("failed to update report progress: %w", err)
	}
	return nil
}

// StockStatus reports whether yesterday's stock snapshot is missing, and
// which date it would cover.
func (s *Store) StockStatus(ctx context.Context, storeID int64) (needLoad bool, targetDate time.Time, err error) {
	query := fmt.Sprintf(`
		SELECT
			NOT EXISTS (
				SELECT 1
				FROM %s.%s sfs
				WHERE sfs.date = CURRENT_DATE - INTERVAL '1 day' AND store_id = $1
			) AS need_load,
			(CURRENT_DATE - INTERVAL '1 day')::date AS target_date`,
		stgSchema, factStockTable)

	if err := s.conn.QueryRow(ctx, query, storeID).Scan(&needLoad, &targetDate); err != nil {
		return false, time.Time{}, fmt.Errorf("failed to check stock status: %w", err)
	}
	return needLoad, targetDate, nil
}

// StockRow is one product's warehouse counters for one date.
type StockRow struct {
	Date            time.Time
	NmID            int64
	StockCount      int64
	ToClientCount   int64
	FromClientCount int64
}

// InsertStockRows appends a stock snapshot. No conflict handling: the status
// probe guarantees the date is loaded at most once.
func (s *Store) InsertStockRows(ctx context.Context, storeID int64, stockRows []StockRow) error {
	if len(stockRows) == 0 {
		return nil
	}
	rows := make([][]interface{}, 0, len(stockRows))
	for _, r := range stockRows {
		rows = append(rows, []interface{}{
			r.Date, storeID, r.NmID, r.StockCount, r.ToClientCount, r.FromClientCount,
		})
	}
	_, err := s.conn.CopyFrom(ctx,
		pgx.Identifier{stgSchema, factStockTable},
		[]string{"date", "store_id", "nm_id", "stock_count", "to_client_count", "from_client_count"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to insert stock rows: %w", err)
	}
	return nil
}

// SalesStatus decides whether the sales feed needs another pull. A cursor row
// marked final only counts as done while its last change stays inside the
// current schedule window.
func (s *Store) SalesStatus(ctx context.Context, storeID int64) (needLoad bool, lastChangeDate string, err error) {
	query := fmt.Sprintf(`
		SELECT
			CASE
				WHEN COUNT(*) = 0 THEN TRUE
				WHEN SUM(CASE WHEN is_final = FALSE THEN 1 ELSE 0 END) > 0 THEN TRUE
				WHEN SUM(CASE WHEN is_final = TRUE AND (last_change_date)::timestamp < (CURRENT_TIMESTAMP)::DATE + INTERVAL '%s' THEN 1 ELSE 0 END) > 0 THEN TRUE
				ELSE FALSE
			END AS need_load,
			COALESCE(MAX(last_change_date), '') AS last_change_date
		FROM %s.%s
		WHERE store_id = $1`, loadSchedule, stgSchema, factSalesInfoTable)

	if err := s.conn.QueryRow(ctx, query, storeID).Scan(&needLoad, &lastChangeDate); err != nil {
		return false, "", fmt.Errorf("failed to check sales status: %w", err)
	}
	return needLoad, lastChangeDate, nil
}

// SaleRow is one sale or return event.
type SaleRow struct {
	SaleID         string
	NmID           int64
	SaleType       string
	Date           string
	LastChangeDate string
	PriceWithDisc  float64
}

// UpsertSales merges sale events by sale_id, replaying updates the feed sends
// for already-known sales.
func (s *Store) UpsertSales(ctx context.Context, storeID int64, sales []SaleRow) error {
	if len(sales) == 0 {
		return nil
	}
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		CREATE TEMP TABLE temp_fact_sales (
			store_id INTEGER,
			sale_id TEXT,
			nm_id INTEGER,
			sale_type TEXT,
			date DATE,
			last_change_date TEXT,
			price_with_disc NUMERIC
		) ON COMMIT DROP`)
	if err != nil {
		return fmt.Errorf("failed to create sales temp table: %w", err)
	}

	rows := make([][]interface{}, 0, len(sales))
	for _, sale := range sales {
		rows = append(rows, []interface{}{
			storeID, sale.SaleID, sale.NmID, sale.SaleType,
			sale.Date, sale.LastChangeDate, sale.PriceWithDisc,
		})
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"temp_fact_sales"},
		[]string{"store_id", "sale_id", "nm_id", "sale_type", "date", "last_change_date", "price_with_disc"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return fmt.Errorf("failed to copy sales rows: %w", err)
	}

	_, err = tx.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s.%s AS target (store_id, sale_id, nm_id, sale_type, date, last_change_date, price_with_disc)
		SELECT store_id, sale_id, nm_id, sale_type, date, last_change_date, price_with_disc
		FROM temp_fact_sales
		ON CONFLICT (sale_id) DO UPDATE SET
			store_id = EXCLUDED.store_id,
			nm_id = EXCLUDED.nm_id,
			sale_type = EXCLUDED.sale_type,
			date = EXCLUDED.date,
			last_change_date = EXCLUDED.last_change_date,
			price_with_disc = EXCLUDED.price_with_disc`,
		stgSchema, factSalesTable))
	if err != nil {
		return fmt.Errorf("failed to merge sales rows: %w", err)
	}
	return tx.Commit(ctx)
}

// UpsertSalesCursor stores the feed position for the next pull.
func (s *Store) UpsertSalesCursor(ctx context.Context, storeID int64, lastChangeDate string, isFinal bool) error {
	query := fmt.Sprintf(`
		INSERT INTO %s.%s (store_id, last_change_date, is_final)
		VALUES ($1, $2, $3)
		ON CONFLICT (store_id)
		DO UPDATE SET
			last_change_date = EXCLUDED.last_change_date,
			is_final = EXCLUDED.is_final`,
		stgSchema, factSalesInfoTable)
	if _, err := s.conn.Exec(ctx, query, storeID, lastChangeDate, isFinal); err != nil {
		return fmt.Errorf("failed to upsert sales cursor: %w", err)
	}
	return nil
}
