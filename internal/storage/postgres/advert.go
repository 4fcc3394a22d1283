package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

const advertDaysToLoad = 90

// AdvertRef ties a campaign id to its bucket type.
type AdvertRef struct {
	AdvertID   int64
	AdvertType int
}

// AdvertListFreshness counts the store's campaign rows and how many were
// rewritten within the current schedule.
func (s *Store) AdvertListFreshness(ctx context.Context, storeID int64) (actual, total int64, err error) {
	query := fmt.Sprintf(`
		SELECT
			COUNT(CASE WHEN (al.created_at)::DATE >= (CURRENT_TIMESTAMP - INTERVAL '%s')::DATE THEN 1 END) AS actual,
			COUNT(*) AS count_all
		FROM %s.%s al
		WHERE al.store_id = $1`, loadSchedule, stgSchema, advertInfoTable)

	if err := s.conn.QueryRow(ctx, query, storeID).Scan(&actual, &total); err != nil {
		return 0, 0, fmt.Errorf("failed to check advert list freshness: %w", err)
	}
	return actual, total, nil
}

// AdvertInfoFreshness reports detail enrichment progress: rows never enriched,
// rows enriched within the schedule, and the total.
func (s *Store) AdvertInfoFreshness(ctx context.Context, storeID int64) (nullCount, actual, total int64, err error) {
	query := fmt.Sprintf(`
		SELECT
			COUNT(CASE WHEN last_info_update_time IS NULL THEN 1 END) AS null_count,
			COUNT(CASE WHEN last_info_update_time >= (CURRENT_TIMESTAMP - INTERVAL '%s') THEN 1 END) AS actual_count,
			COUNT(*) AS total_count
		FROM %s.%s
		WHERE store_id = $1`, loadSchedule, stgSchema, advertInfoTable)

	if err := s.conn.QueryRow(ctx, query, storeID).Scan(&nullCount, &actual, &total); err != nil {
		return 0, 0, 0, fmt.Errorf("failed to check advert info freshness: %w", err)
	}
	return nullCount, actual, total, nil
}

// DeleteAdvertList drops the store's campaign rows before a list reload.
func (s *Store) DeleteAdvertList(ctx context.Context, storeID int64) error {
	query := fmt.Sprintf(`DELETE FROM %s.%s WHERE store_id = $1`, stgSchema, advertInfoTable)
	if _, err := s.conn.Exec(ctx, query, storeID); err != nil {
		return fmt.Errorf("failed to delete advert list for store %d: %w", storeID, err)
	}
	return nil
}

// InsertAdvertList merges the campaign list, updating the type of campaigns
// that moved buckets.
func (s *Store) InsertAdvertList(ctx context.Context, storeID int64, refs []AdvertRef) error {
	if len(refs) == 0 {
		return nil
	}
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		CREATE TEMP TABLE temp_advert_list (
			store_id INTEGER,
			advert_id INTEGER,
			advert_type INTEGER
		) ON COMMIT DROP`)
	if err != nil {
		return fmt.Errorf("failed to create advert list temp table: %w", err)
	}

	rows := make([][]interface{}, 0, len(refs))
	for _, ref := range refs {
		rows = append(rows, []interface{}{storeID, ref.AdvertID, ref.AdvertType})
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"temp_advert_list"},
		[]string{"store_id", "advert_id", "advert_type"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return fmt.Errorf("failed to copy advert list: %w", err)
	}

	_, err = tx.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s.%s AS target (store_id, advert_id, advert_type)
		SELECT store_id, advert_id, advert_type
		FROM temp_advert_list
		ON CONFLICT (store_id, advert_id)
		DO UPDATE SET advert_type = EXCLUDED.advert_type`,
		stgSchema, advertInfoTable))
	if err != nil {
		return fmt.Errorf("failed to merge advert list: %w", err)
	}
	return tx.Commit(ctx)
}

// AdvertIDs lists the store's campaign ids in stable order for batching.
func (s *Store) AdvertIDs(ctx context.Context, storeID int64) ([]int64, error) {
	query := fmt.Sprintf(`
		SELECT advert_id
		FROM %s.%s
		WHERE store_id = $1
		ORDER BY advert_id`, stgSchema, advertInfoTable)

	rows, err := s.conn.Query(ctx, query, storeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list advert ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AdvertDetailRow carries a campaign's lifecycle timestamps.
type AdvertDetailRow struct {
	AdvertID   int64
	StartTime  *time.Time
	EndTime    *time.Time
	CreateTime *time.Time
	ChangeTime *time.Time
}

// UpdateAdvertDetails enriches existing campaign rows with detail timestamps
// and stamps last_info_update_time.
func (s *Store) UpdateAdvertDetails(ctx context.Context, storeID int64, details []AdvertDetailRow) error {
	if len(details) == 0 {
		return nil
	}
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		CREATE TEMP TABLE temp_advert_details (
			store_id INTEGER,
			advert_id INTEGER,
			start_time TIMESTAMPTZ,
			end_time TIMESTAMPTZ,
			create_time TIMESTAMPTZ,
			change_time TIMESTAMPTZ
		) ON COMMIT DROP`)
	if err != nil {
		return fmt.Errorf("failed to create advert detail temp table: %w", err)
	}

	rows := make([][]interface{}, 0, len(details))
	for _, d := range details {
		rows = append(rows, []interface{}{
			storeID, d.AdvertID, d.StartTime, d.EndTime, d.CreateTime, d.ChangeTime,
		})
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"temp_advert_details"},
		[]string{"store_id", "advert_id", "start_time", "end_time", "create_time", "change_time"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return fmt.Errorf("failed to copy advert details: %w", err)
	}

	_, err = tx.Exec(ctx, fmt.Sprintf(`
		UPDATE %s.%s AS target
		SET
			start_time = temp.start_time,
			end_time = temp.end_time,
			create_time = temp.create_time,
			change_time = temp.change_time,
			last_info_update_time = CURRENT_TIMESTAMP
		FROM temp_advert_details AS temp
		WHERE target.store_id = temp.store_id
			AND target.advert_id = temp.advert_id`,
		stgSchema, advertInfoTable))
	if err != nil {
		return fmt.Errorf("failed to apply advert details: %w", err)
	}
	return tx.Commit(ctx)
}

// RegenerateAdvertLoadGrid rebuilds the campaign×date load grid: every
// campaign still active inside the window crossed with every day of it.
func (s *Store) RegenerateAdvertLoadGrid(ctx context.Context, storeID int64) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	delQuery := fmt.Sprintf(`DELETE FROM %s.%s WHERE store_id = $1`, stgSchema, advertLoadInfoTable)
	if _, err := tx.Exec(ctx, delQuery, storeID); err != nil {
		return fmt.Errorf("failed to clear advert load grid: %w", err)
	}

	insQuery := fmt.Sprintf(`
		INSERT INTO %[1]s.%[2]s (store_id, advert_id, date, loaded)
		WITH
			filtered_ids AS (
				SELECT advert_id
				FROM %[1]s.%[3]s
				WHERE store_id = $1
				AND end_time >= (NOW() - INTERVAL '%[4]d days')
			),
			date_series AS (
				SELECT generate_series(
					date_trunc('day', NOW() - INTERVAL '%[4]d days'),
					date_trunc('day', NOW()),
					INTERVAL '1 day'
				)::date AS report_date
			)
		SELECT
			$1 AS store_id,
			fi.advert_id,
			ds.report_date,
			FALSE AS loaded
		FROM filtered_ids fi
		CROSS JOIN date_series ds`,
		stgSchema, advertLoadInfoTable, advertInfoTable, advertDaysToLoad)
	if _, err := tx.Exec(ctx, insQuery, storeID); err != nil {
		return fmt.Errorf("failed to regenerate advert load grid: %w", err)
	}
	return tx.Commit(ctx)
}

// AdvertLoadReport summarises the load grid against the campaign list.
type AdvertLoadReport struct {
	Actual          int64
	Loaded          int64
	Total           int64
	GridAdvertIDs   int64
	InfoAdvertIDs   int64
	DifferenceCount int64
}

// AdvertLoadStatus compares the load grid with the active campaign set so the
// caller can tell whether the grid is current and how much of it is loaded.
func (s *Store) AdvertLoadStatus(ctx context.Context, storeID int64) (*AdvertLoadReport, error) {
	query := fmt.Sprintf(`
		WITH
		load_data AS (
			SELECT * FROM %[1]s.%[2]s WHERE store_id = $1
		),
		loaded_rows AS (
			SELECT * FROM load_data WHERE loaded = TRUE
		),
		info_data_filtered AS (
			SELECT advert_id
			FROM %[1]s.%[3]s
			WHERE store_id = $1
			AND end_time >= (NOW() - INTERVAL '%[4]d days')
		),
		load_ids AS (
			SELECT DISTINCT advert_id FROM load_data
		),
		info_ids AS (
			SELECT DISTINCT advert_id FROM info_data_filtered
		),
		difference_ids AS (
			SELECT advert_id FROM load_ids
			WHERE advert_id NOT IN (SELECT advert_id FROM info_ids)
			UNION
			SELECT advert_id FROM info_ids
			WHERE advert_id NOT IN (SELECT advert_id FROM load_ids)
		)
		SELECT
			COUNT(CASE
				WHEN (ld.created_at)::DATE >= (CURRENT_TIMESTAMP - INTERVAL '%[5]s')::DATE
				THEN 1 END) AS actual,
			(SELECT COUNT(*) FROM loaded_rows) AS loaded,
			COUNT(*) AS count_all,
			(SELECT COUNT(*) FROM load_ids) AS load_advert_ids,
			(SELECT COUNT(*) FROM info_ids) AS info_advert_ids,
			(SELECT COUNT(*) FROM difference_ids) AS difference_count
		FROM load_data ld`,
		stgSchema, advertLoadInfoTable, advertInfoTable, advertDaysToLoad, loadSchedule)

	var report AdvertLoadReport
	err := s.conn.QueryRow(ctx, query, storeID).Scan(
		&report.Actual, &report.Loaded, &report.Total,
		&report.GridAdvertIDs, &report.InfoAdvertIDs, &report.DifferenceCount,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read advert load status: %w", err)
	}
	return &report, nil
}

// AdvertBatch is the next fullstats payload: up to 100 campaigns, up to 31
// unloaded dates each.
type AdvertBatch struct {
	AdvertID int64
	Dates    []time.Time
}

// NextAdvertBatches picks unloaded grid cells grouped per campaign, capped to
// the fullstats payload limits.
func (s *Store) NextAdvertBatches(ctx context.Context, storeID int64) ([]AdvertBatch, error) {
	query := fmt.Sprintf(`
		WITH
		distinct_ids AS (
			SELECT DISTINCT advert_id
			FROM %[1]s.%[2]s
			WHERE loaded = FALSE AND store_id = $1
			LIMIT 100
		),
		ids_with_dates AS (
			SELECT
				li.advert_id,
				array_agg(li."date" ORDER BY li."date") AS dates_array
			FROM %[1]s.%[2]s li
			JOIN distinct_ids di ON li.advert_id = di.advert_id
			WHERE li.loaded = FALSE
			GROUP BY li.advert_id
		)
		SELECT
			advert_id,
			dates_array[1:LEAST(array_length(dates_array, 1), 31)] AS dates
		FROM ids_with_dates`,
		stgSchema, advertLoadInfoTable)

	rows, err := s.conn.Query(ctx, query, storeID)
	if err != nil {
		return nil, fmt.Errorf("failed to pick advert batches: %w", err)
	}
	defer rows.Close()

	var batches []AdvertBatch
	for rows.Next() {
		var b AdvertBatch
		if err := rows.Scan(&b.AdvertID, &b.Dates); err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// AdvertStatRow is one campaign×day×placement×product statistics cell.
type AdvertStatRow struct {
	Date     string
	AdvertID int64
	AppType  int
	NmID     int64
	Views    int64
	Clicks   int64
	CTR      float64
	CPC      float64
	Sum      float64
	Atbs     int64
	Orders   int64
	CR       float64
	Shks     int64
	SumPrice float64
}

// UpsertAdvertStats merges statistics cells, overwriting previous values for
// the same grid position.
func (s *Store) UpsertAdvertStats(ctx context.Context, storeID int64, stats []AdvertStatRow) error {
	if len(stats) == 0 {
		return nil
	}
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		CREATE TEMP TABLE temp_advert_stat (
			date DATE,
			store_id INTEGER,
			advert_id INTEGER,
			app_type INTEGER,
			nm_id INTEGER,
			views INTEGER,
			clicks INTEGER,
			ctr NUMERIC,
			cpc NUMERIC,
			sum NUMERIC,
			atbs INTEGER,
			orders INTEGER,
			cr NUMERIC,
			shks INTEGER,
			sum_price NUMERIC
		) ON COMMIT DROP`)
	if err != nil {
		return fmt.Errorf("failed to create advert stat temp table: %w", err)
	}

	rows := make([][]interface{}, 0, len(stats))
	for _, st := range stats {
		rows = append(rows, []interface{}{
			st.Date, storeID, st.AdvertID, st.AppType, st.NmID,
			st.Views, st.Clicks, st.CTR, st.CPC, st.Sum,
			st.Atbs, st.Orders, st.CR, st.Shks, st.SumPrice,
		})
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"temp_advert_stat"},
		[]string{
			"date", "store_id", "advert_id", "app_type", "nm_id",
			"views", "clicks", "ctr", "cpc", "sum", "atbs", "orders", "cr", "shks", "sum_price",
		},
		pgx.CopyFromRows(rows),
	); err != nil {
		return fmt.Errorf("failed to copy advert stats: %w", err)
	}

	_, err = tx.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s.%s (
			date, store_id, advert_id, app_type, nm_id,
			views, clicks, ctr, cpc, sum, atbs, orders, cr, shks, sum_price
		)
		SELECT
			date, store_id, advert_id, app_type, nm_id,
			views, clicks, ctr, cpc, sum, atbs, orders, cr, shks, sum_price
		FROM temp_advert_stat
		ON CONFLICT (date, store_id, advert_id, app_type, nm_id)
		DO UPDATE SET
			views = EXCLUDED.views,
			clicks = EXCLUDED.clicks,
			ctr = EXCLUDED.ctr,
			cpc = EXCLUDED.cpc,
			sum = EXCLUDED.sum,
			atbs = EXCLUDED.atbs,
			orders = EXCLUDED.orders,
			cr = EXCLUDED.cr,
			shks = EXCLUDED.shks,
			sum_price = EXCLUDED.sum_price,
			created_at = CURRENT_TIMESTAMP`,
		stgSchema, advertStatTable))
	if err != nil {
		return fmt.Errorf("failed to merge advert stats: %w", err)
	}
	return tx.Commit(ctx)
}

// MarkAdvertsLoaded flips the grid cells covered by the given batches.
func (s *Store) MarkAdvertsLoaded(ctx context.Context, storeID int64, batches []AdvertBatch) error {
	if len(batches) == 0 {
		return nil
	}
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		CREATE TEMP TABLE temp_advert_load_info (
			store_id INTEGER,
			advert_id INTEGER,
			date DATE,
			loaded BOOLEAN
		) ON COMMIT DROP`)
	if err != nil {
		return fmt.Errorf("failed to create load info temp table: %w", err)
	}

	var rows [][]interface{}
	for _, b := range batches {
		for _, d := range b.Dates {
			rows = append(rows, []interface{}{storeID, b.AdvertID, d, true})
		}
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"temp_advert_load_info"},
		[]string{"store_id", "advert_id", "date", "loaded"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return fmt.Errorf("failed to copy load info rows: %w", err)
	}

	_, err = tx.Exec(ctx, fmt.Sprintf(`
		UPDATE %s.%s AS target
		SET loaded = TRUE
		FROM temp_advert_load_info temp
		WHERE target.store_id = temp.store_id
			AND target.advert_id = temp.advert_id
			AND target.date = temp.date`,
		stgSchema, advertLoadInfoTable))
	if err != nil {
		return fmt.Errorf("failed to mark adverts loaded: %w", err)
	}
	return tx.Commit(ctx)
}
