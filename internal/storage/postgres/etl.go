package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Days of nm-report history carried into the dimensional table.
const etlWindowDays = 89

// dimColumns is the dim_tech_list insert order. The pivot select below yields
// columns in exactly this order.
var dimColumns = []string{
	"store_id", "date", "nm_id", "vendor_code",
	"open_card_count", "add_to_cart_count", "orders_count", "orders_sum_rub",
	"fact_byouts_count", "fact_byouts_sum",
	"stock_count", "to_client_count", "from_client_count",
	"views_auto", "clicks_auto", "sum_auto", "atbs_auto", "orders_auto", "shks_auto", "price_auto",
	"views_mix", "clicks_mix", "sum_mix", "atbs_mix", "orders_mix", "shks_mix", "price_mix",
	"views_search", "clicks_search", "sum_search", "atbs_search", "orders_search", "shks_search", "price_search",
	"views_cat", "clicks_cat", "sum_cat", "atbs_cat", "orders_cat", "shks_cat", "price_cat",
	"views_card", "clicks_card", "sum_card", "atbs_card", "orders_card", "shks_card", "price_card",
	"views_main", "clicks_main", "sum_main", "atbs_main", "orders_main", "shks_main", "price_main",
}

// advertPivot expands one campaign-type bucket into the seven pivoted
// aggregates the dimensional table carries per bucket.
func advertPivot(advertType int, suffix string) string {
	metrics := []struct{ src, dst string }{
		{"views", "views"},
		{"clicks", "clicks"},
		{"sum", "sum"},
		{"atbs", "atbs"},
		{"orders", "orders"},
		{"shks", "shks"},
		{"sum_price", "price"},
	}
	parts := make([]string, 0, len(metrics))
	for _, m := range metrics {
		parts = append(parts, fmt.Sprintf(
			"SUM(%s) FILTER (WHERE advert_type = %d) AS %s_%s",
			m.src, advertType, m.dst, suffix))
	}
	return strings.Join(parts, ",\n\t\t\t")
}

// dimensionalSelect is the per-store pivot: nm-report days joined with sales,
// stock and campaign statistics, campaign numbers spread across one column
// group per campaign type.
func dimensionalSelect() string {
	return fmt.Sprintf(`
		WITH
		advert_base AS (
			SELECT
				sas.date,
				sas.nm_id,
				sai.advert_type AS advert_type,
				SUM(sas.views) AS views,
				SUM(sas.clicks) AS clicks,
				SUM(sas.sum) AS sum,
				SUM(sas.atbs) AS atbs,
				SUM(sas.orders) AS orders,
				SUM(sas.shks) AS shks,
				SUM(sas.sum_price) AS sum_price
			FROM %[1]s.%[2]s sas
			JOIN %[1]s.%[3]s sai
				ON sas.store_id = sai.store_id AND sas.advert_id = sai.advert_id
			WHERE sas.store_id = $1
			GROUP BY sas.date, sas.nm_id, sai.advert_type
		),
		store_nm_report AS (
			SELECT
				snrd."date",
				snrd.nm_id,
				scl.vendor_code,
				snrd.store_id,
				snrd.open_card_count,
				snrd.add_to_cart_count,
				snrd.orders_count,
				snrd.orders_sum_rub
			FROM %[1]s.%[4]s snrd
			JOIN %[1]s.%[5]s scl ON scl.nm_id = snrd.nm_id
			WHERE snrd.store_id = $1
				AND snrd."date" >= CURRENT_DATE - INTERVAL '%[8]d days'
		),
		sales_fact AS (
			SELECT
				"date",
				nm_id,
				COUNT(*) FILTER (WHERE sale_type = 'S') -
				COUNT(*) FILTER (WHERE sale_type = 'R') AS fact_byouts_count,
				SUM(price_with_disc) AS fact_byouts_sum
			FROM %[1]s.%[6]s
			WHERE store_id = $1
			GROUP BY "date", nm_id
		),
		stock_fact AS (
			SELECT * FROM %[1]s.%[7]s WHERE store_id = $1
		),
		advert_data AS (
			SELECT
				date,
				nm_id,
				%[9]s,
				%[10]s,
				%[11]s,
				%[12]s,
				%[13]s,
				%[14]s
			FROM advert_base
			GROUP BY date, nm_id
		)
		SELECT
			store_nm_report.store_id,
			store_nm_report."date",
			store_nm_report.nm_id,
			store_nm_report.vendor_code,
			store_nm_report.open_card_count,
			store_nm_report.add_to_cart_count,
			store_nm_report.orders_count,
			store_nm_report.orders_sum_rub,
			sales_fact.fact_byouts_count,
			sales_fact.fact_byouts_sum,
			stock_fact.stock_count,
			stock_fact.to_client_count,
			stock_fact.from_client_count,
			advert_data.views_auto, advert_data.clicks_auto, advert_data.sum_auto,
			advert_data.atbs_auto, advert_data.orders_auto, advert_data.shks_auto, advert_data.price_auto,
			advert_data.views_mix, advert_data.clicks_mix, advert_data.sum_mix,
			advert_data.atbs_mix, advert_data.orders_mix, advert_data.shks_mix, advert_data.price_mix,
			advert_data.views_search, advert_data.clicks_search, advert_data.sum_search,
			advert_data.atbs_search, advert_data.orders_search, advert_data.shks_search, advert_data.price_search,
			advert_data.views_cat, advert_data.clicks_cat, advert_data.sum_cat,
			advert_data.atbs_cat, advert_data.orders_cat, advert_data.shks_cat, advert_data.price_cat,
			advert_data.views_card, advert_data.clicks_card, advert_data.sum_card,
			advert_data.atbs_card, advert_data.orders_card, advert_data.shks_card, advert_data.price_card,
			advert_data.views_main, advert_data.clicks_main, advert_data.sum_main,
			advert_data.atbs_main, advert_data.orders_main, advert_data.shks_main, advert_data.price_main
		FROM store_nm_report
		LEFT JOIN sales_fact
			ON sales_fact.nm_id = store_nm_report.nm_id
			AND sales_fact."date" = store_nm_report."date"
		LEFT JOIN stock_fact
			ON stock_fact.nm_id = store_nm_report.nm_id
			AND stock_fact."date" = store_nm_report."date"
		LEFT JOIN advert_data
			ON advert_data.nm_id = store_nm_report.nm_id
			AND advert_data."date" = store_nm_report."date"
		ORDER BY store_nm_report."date", store_nm_report.nm_id`,
		stgSchema,
		advertStatTable,
		advertInfoTable,
		nmReportDetailTable,
		cardsListTable,
		factSalesTable,
		factStockTable,
		etlWindowDays,
		advertPivot(8, "auto"),
		advertPivot(9, "mix"),
		advertPivot(6, "search"),
		advertPivot(4, "cat"),
		advertPivot(5, "card"),
		advertPivot(7, "main"),
	)
}

// RunDimensionalETL rebuilds the store's dim_tech_list rows and releases the
// lease, all in one transaction. A failed pivot leaves yesterday's rows and
// the lease untouched.
func (s *Store) RunDimensionalETL(ctx context.Context, storeID int64) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	delQuery := fmt.Sprintf(`DELETE FROM %s.%s WHERE store_id = $1`, dimSchema, dimTechListTable)
	if _, err := tx.Exec(ctx, delQuery, storeID); err != nil {
		return fmt.Errorf("failed to clear dimensional rows for store %d: %w", storeID, err)
	}

	insQuery := fmt.Sprintf(`
		INSERT INTO %s.%s (%s)
		SELECT * FROM (%s) AS sub`,
		dimSchema, dimTechListTable,
		strings.Join(dimColumns, ", "),
		dimensionalSelect())
	if _, err := tx.Exec(ctx, insQuery, storeID); err != nil {
		return fmt.Errorf("failed to build dimensional rows for store %d: %w", storeID, err)
	}

	relQuery := fmt.Sprintf(`
		UPDATE %s.%s
		SET
			last_dm_etl = CURRENT_TIMESTAMP,
			running = FALSE
		WHERE store_id = $1`, coreSchema, storeProcessTable)
	if _, err := tx.Exec(ctx, relQuery, storeID); err != nil {
		return fmt.Errorf("failed to release etl lease for store %d: %w", storeID, err)
	}
	return tx.Commit(ctx)
}

// Columns never wrapped in COALESCE when exporting: empty text and dates stay
// empty rather than becoming zeros.
var sheetCoalesceIgnore = map[string]bool{
	"date":        true,
	"vendor_code": true,
	"created_at":  true,
}

// Columns left out of the export entirely.
var sheetIgnore = map[string]bool{
	"id":         true,
	"created_at": true,
}

// DimensionalSheetValues reads the store's dimensional rows in spreadsheet
// form: a header row followed by data rows, missing numbers coalesced to zero.
// The column set follows the live table definition, not a hardcoded list.
func (s *Store) DimensionalSheetValues(ctx context.Context, storeID int64) ([][]interface{}, error) {
	colQuery := `
		SELECT column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`

	rows, err := s.conn.Query(ctx, colQuery, dimSchema, dimTechListTable)
	if err != nil {
		return nil, fmt.Errorf("failed to read dimensional columns: %w", err)
	}
	var columns, types []string
	for rows.Next() {
		var name, dataType string
		if err := rows.Scan(&name, &dataType); err != nil {
			rows.Close()
			return nil, err
		}
		if !sheetIgnore[name] {
			columns = append(columns, name)
			types = append(types, dataType)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	selects := make([]string, 0, len(columns))
	for i, col := range columns {
		switch {
		case sheetCoalesceIgnore[col]:
			selects = append(selects, col)
		case types[i] == "numeric":
			// float8 scans as float64; bare numeric does not serialize.
			selects = append(selects, fmt.Sprintf("COALESCE(%[1]s, 0)::float8 AS %[1]s", col))
		default:
			selects = append(selects, fmt.Sprintf("COALESCE(%[1]s, 0) AS %[1]s", col))
		}
	}
	dataQuery := fmt.Sprintf(`
		SELECT %s
		FROM %s.%s
		WHERE store_id = $1
		ORDER BY date, nm_id`,
		strings.Join(selects, ", "), dimSchema, dimTechListTable)

	dataRows, err := s.conn.Query(ctx, dataQuery, storeID)
	if err != nil {
		return nil, fmt.Errorf("failed to read dimensional rows: %w", err)
	}
	defer dataRows.Close()

	header := make([]interface{}, len(columns))
	for i, col := range columns {
		header[i] = col
	}
	values := [][]interface{}{header}

	for dataRows.Next() {
		raw, err := dataRows.Values()
		if err != nil {
			return nil, err
		}
		row := make([]interface{}, len(raw))
		for i, v := range raw {
			row[i] = sheetValue(v)
		}
		values = append(values, row)
	}
	if err := dataRows.Err(); err != nil {
		return nil, err
	}
	if len(values) == 1 {
		return nil, nil
	}
	return values, nil
}

// sheetValue normalises a scanned cell into something the Sheets API can
// serialize.
func sheetValue(v interface{}) interface{} {
	switch t := v.(type) {
	case nil:
		return ""
	case time.Time:
		return t.Format("2006-01-02")
	case fmt.Stringer:
		return t.String()
	default:
		return v
	}
}
