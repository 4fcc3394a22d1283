// Package postgres is the fleet's only storage backend. Every process owns a
// single connection; all coordination happens through row locks on the shared
// store_process table.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/user/storefleet/internal/logger"
)

const (
	coreSchema = "core"
	stgSchema  = "stg"
	dimSchema  = "dim"

	storeTable         = "store"
	storeProcessTable  = "store_process"
	serviceHealthTable = "service_health"
	logTable           = "logs"

	cardsListTable          = "cards_list"
	nmReportDetailTable     = "nm_report_detail"
	nmReportDetailInfoTable = "nm_report_detail_info"
	factStockTable          = "fact_stock"
	factSalesTable          = "fact_sales"
	factSalesInfoTable      = "fact_sales_info"
	advertTypeMappingTable  = "advert_type_mapping"
	advertInfoTable         = "advert_info"
	advertLoadInfoTable     = "advert_load_info"
	advertStatTable         = "advert_stat"

	dimTechListTable = "dim_tech_list"
)

// Store wraps the process's single postgres connection.
type Store struct {
	conn *pgx.Conn
}

// Connect opens the connection and pins the session timezone so every
// CURRENT_DATE comparison runs in the marketplace's business day.
func Connect(ctx context.Context, connString string) (*Store, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if _, err := conn.Exec(ctx, "SET TIME ZONE 'Europe/Moscow'"); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to set session timezone: %w", err)
	}
	return &Store{conn: conn}, nil
}

// NewWithConn wraps an existing connection. Used by tooling and tests.
func NewWithConn(conn *pgx.Conn) *Store {
	return &Store{conn: conn}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

func (s *Store) Close(ctx context.Context) error {
	return s.conn.Close(ctx)
}

// Conn exposes the underlying connection for utilities that stream over it.
func (s *Store) Conn() *pgx.Conn {
	return s.conn
}

// CreateLog writes one row to the shared log table.
func (s *Store) CreateLog(ctx context.Context, entry logger.Entry) error {
	var storeID interface{}
	if entry.StoreID != 0 {
		storeID = entry.StoreID
	}
	_, err := s.conn.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s.%s (log_level, service, store_id, source, message, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)`, coreSchema, logTable),
		entry.Level, entry.Service, storeID, entry.Source, entry.Message, entry.Metadata,
	)
	if err != nil {
		return fmt.Errorf("failed to write log row: %w", err)
	}
	return nil
}
