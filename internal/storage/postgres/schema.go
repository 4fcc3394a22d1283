package postgres

import (
	"context"
	"fmt"
)

// CreateSchema creates every schema and table the fleet uses. Idempotent, so
// the migrate command can run against a live database.
func (s *Store) CreateSchema(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, coreSchema),
		fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, stgSchema),
		fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, dimSchema),

		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.%s (
			store_id INT PRIMARY KEY,
			store_name VARCHAR(255) NOT NULL UNIQUE,
			api_token TEXT NOT NULL UNIQUE,
			token_is_valid BOOLEAN NOT NULL,
			table_id TEXT NOT NULL UNIQUE,
			email VARCHAR(255) UNIQUE,
			phone VARCHAR(20) UNIQUE,
			secret_key TEXT NOT NULL UNIQUE,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`, coreSchema, storeTable),

		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.%s (
			store_process_id SERIAL PRIMARY KEY,
			store_id INT NOT NULL,
			running BOOLEAN NOT NULL DEFAULT FALSE,
			service TEXT,
			error TEXT,
			process_health_check TIMESTAMPTZ,
			last_worker_start TIMESTAMPTZ,
			last_worker_end TIMESTAMPTZ,
			last_data_load TIMESTAMPTZ,
			last_dm_etl TIMESTAMPTZ,
			last_client_load TIMESTAMPTZ,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`, coreSchema, storeProcessTable),

		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.%s (
			id SERIAL PRIMARY KEY,
			service_type TEXT NOT NULL,
			service_name TEXT NOT NULL,
			version TEXT,
			last_health_check TIMESTAMPTZ,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (service_type, service_name)
		)`, coreSchema, serviceHealthTable),

		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s.%[2]s (
			log_id BIGSERIAL PRIMARY KEY,
			log_level VARCHAR(10) NOT NULL,
			service TEXT,
			store_id INT,
			source VARCHAR(255) NOT NULL,
			message TEXT NOT NULL,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
			metadata JSONB
		)`, coreSchema, logTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_log_level ON %s.%s (log_level)`, coreSchema, logTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_log_source ON %s.%s (source)`, coreSchema, logTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_log_created_at ON %s.%s (created_at)`, coreSchema, logTable),

		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.%s (
			id SERIAL PRIMARY KEY,
			nm_id INTEGER NOT NULL,
			store_id INTEGER NOT NULL,
			vendor_code TEXT NOT NULL,
			title TEXT NOT NULL,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`, stgSchema, cardsListTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_product_nm_id ON %s.%s (nm_id)`, stgSchema, cardsListTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_product_store_id ON %s.%s (store_id)`, stgSchema, cardsListTable),

		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.%s (
			id SERIAL PRIMARY KEY,
			store_id INTEGER NOT NULL,
			page INTEGER NOT NULL,
			is_next_page BOOLEAN NOT NULL,
			cant_be_load BOOLEAN NOT NULL,
			fact_date DATE NOT NULL,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (store_id, fact_date)
		)`, stgSchema, nmReportDetailInfoTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_nm_report_store_id ON %s.%s (store_id)`, stgSchema, nmReportDetailInfoTable),

		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.%s (
			id SERIAL PRIMARY KEY,
			date DATE NOT NULL,
			store_id INTEGER NOT NULL,
			nm_id INTEGER NOT NULL,
			open_card_count INTEGER,
			add_to_cart_count INTEGER,
			orders_count INTEGER,
			orders_sum_rub INTEGER,
			buyouts_count INTEGER,
			buyouts_sum_rub INTEGER,
			cancel_count INTEGER,
			cancel_sum_rub INTEGER,
			avg_price_rub INTEGER,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT uniq_stock_record UNIQUE (date, store_id, nm_id)
		)`, stgSchema, nmReportDetailTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_detail_store_id ON %s.%s (store_id)`, stgSchema, nmReportDetailTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_detail_nm_id ON %s.%s (nm_id)`, stgSchema, nmReportDetailTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_detail_date ON %s.%s (date)`, stgSchema, nmReportDetailTable),

		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.%s (
			id SERIAL PRIMARY KEY,
			date DATE NOT NULL,
			store_id INTEGER NOT NULL,
			nm_id INTEGER NOT NULL,
			stock_count INTEGER,
			to_client_count INTEGER,
			from_client_count INTEGER,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`, stgSchema, factStockTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_stock_store_id ON %s.%s (store_id)`, stgSchema, factStockTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_stock_nm_id ON %s.%s (nm_id)`, stgSchema, factStockTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_stock_date ON %s.%s (date)`, stgSchema, factStockTable),

		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.%s (
			store_id INTEGER PRIMARY KEY,
			last_change_date TEXT NOT NULL,
			is_final BOOLEAN NOT NULL,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`, stgSchema, factSalesInfoTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_sales_info_store_id ON %s.%s (store_id)`, stgSchema, factSalesInfoTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_sales_info_last_change_date ON %s.%s (last_change_date)`, stgSchema, factSalesInfoTable),

		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.%s (
			id SERIAL PRIMARY KEY,
			store_id INTEGER NOT NULL,
			sale_id TEXT NOT NULL UNIQUE,
			nm_id INTEGER NOT NULL,
			sale_type TEXT,
			date DATE NOT NULL,
			last_change_date TEXT NOT NULL,
			price_with_disc NUMERIC,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`, stgSchema, factSalesTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_sales_store_id ON %s.%s (store_id)`, stgSchema, factSalesTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_sales_nm_id ON %s.%s (nm_id)`, stgSchema, factSalesTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_sales_date ON %s.%s (date)`, stgSchema, factSalesTable),

		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.%s (
			advert_type INTEGER PRIMARY KEY,
			name TEXT NOT NULL
		)`, stgSchema, advertTypeMappingTable),
		fmt.Sprintf(`
		INSERT INTO %s.%s (advert_type, name) VALUES
			(4, 'кампания в каталоге (устаревший тип)'),
			(5, 'кампания в карточке товара (устаревший тип)'),
			(6, 'кампания в поиске (устаревший тип)'),
			(7, 'кампания в рекомендациях на главной странице (устаревший тип)'),
			(8, 'Автоматическая'),
			(9, 'Поиск+Каталог')
		ON CONFLICT (advert_type) DO UPDATE SET name = EXCLUDED.name`,
			stgSchema, advertTypeMappingTable),

		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.%s (
			id SERIAL PRIMARY KEY,
			store_id INTEGER NOT NULL,
			advert_id INTEGER NOT NULL,
			advert_type INTEGER NOT NULL,
			start_time TIMESTAMPTZ,
			end_time TIMESTAMPTZ,
			create_time TIMESTAMPTZ,
			change_time TIMESTAMPTZ,
			last_info_update_time TIMESTAMPTZ,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (store_id, advert_id)
		)`, stgSchema, advertInfoTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_advert_info_store_id ON %s.%s (store_id)`, stgSchema, advertInfoTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_advert_info_advert_id ON %s.%s (advert_id)`, stgSchema, advertInfoTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_advert_info_advert_type ON %s.%s (advert_type)`, stgSchema, advertInfoTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_advert_info_time_range ON %s.%s (start_time, end_time)`, stgSchema, advertInfoTable),

		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.%s (
			store_id INTEGER,
			advert_id INTEGER,
			date DATE,
			loaded BOOLEAN,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`, stgSchema, advertLoadInfoTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_advert_load_info_store_id ON %s.%s (store_id)`, stgSchema, advertLoadInfoTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_advert_load_info_advert_id ON %s.%s (advert_id)`, stgSchema, advertLoadInfoTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_advert_load_info_date ON %s.%s (date)`, stgSchema, advertLoadInfoTable),

		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.%s (
			id SERIAL PRIMARY KEY,
			date DATE NOT NULL,
			store_id INTEGER NOT NULL,
			advert_id INTEGER NOT NULL,
			app_type INTEGER NOT NULL,
			nm_id INTEGER NOT NULL,
			views INTEGER,
			clicks INTEGER,
			ctr NUMERIC,
			cpc NUMERIC,
			sum NUMERIC,
			atbs INTEGER,
			orders INTEGER,
			cr NUMERIC,
			shks INTEGER,
			sum_price NUMERIC,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (date, store_id, advert_id, app_type, nm_id)
		)`, stgSchema, advertStatTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_advert_stat_store_id ON %s.%s (store_id)`, stgSchema, advertStatTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_advert_stat_advert_id ON %s.%s (advert_id)`, stgSchema, advertStatTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_advert_stat_app_type ON %s.%s (app_type)`, stgSchema, advertStatTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_advert_stat_nm_id ON %s.%s (nm_id)`, stgSchema, advertStatTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_advert_stat_date ON %s.%s (date)`, stgSchema, advertStatTable),

		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s.%[2]s (
			id SERIAL PRIMARY KEY,
			store_id INTEGER NOT NULL,
			date DATE NOT NULL,
			nm_id INTEGER NOT NULL,
			vendor_code TEXT,
			open_card_count INTEGER,
			add_to_cart_count INTEGER,
			orders_count INTEGER,
			orders_sum_rub NUMERIC,
			fact_byouts_count INTEGER,
			fact_byouts_sum NUMERIC,
			stock_count INTEGER,
			to_client_count INTEGER,
			from_client_count INTEGER,
			views_auto INTEGER, clicks_auto INTEGER, sum_auto NUMERIC,
			atbs_auto INTEGER, orders_auto INTEGER, shks_auto INTEGER, price_auto NUMERIC,
			views_mix INTEGER, clicks_mix INTEGER, sum_mix NUMERIC,
			atbs_mix INTEGER, orders_mix INTEGER, shks_mix INTEGER, price_mix NUMERIC,
			views_search INTEGER, clicks_search INTEGER, sum_search NUMERIC,
			atbs_search INTEGER, orders_search INTEGER, shks_search INTEGER, price_search NUMERIC,
			views_cat INTEGER, clicks_cat INTEGER, sum_cat NUMERIC,
			atbs_cat INTEGER, orders_cat INTEGER, shks_cat INTEGER, price_cat NUMERIC,
			views_card INTEGER, clicks_card INTEGER, sum_card NUMERIC,
			atbs_card INTEGER, orders_card INTEGER, shks_card INTEGER, price_card NUMERIC,
			views_main INTEGER, clicks_main INTEGER, sum_main NUMERIC,
			atbs_main INTEGER, orders_main INTEGER, shks_main INTEGER, price_main NUMERIC,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (store_id, date, nm_id)
		)`, dimSchema, dimTechListTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%[2]s_store_id ON %[1]s.%[2]s (store_id)`, dimSchema, dimTechListTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%[2]s_nm_id ON %[1]s.%[2]s (nm_id)`, dimSchema, dimTechListTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%[2]s_date ON %[1]s.%[2]s (date)`, dimSchema, dimTechListTable),
	}

	for _, stmt := range statements {
		if _, err := s.conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}
