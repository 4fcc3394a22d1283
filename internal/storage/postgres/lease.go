package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const (
	// Seconds after which loaded data counts as stale and the store becomes
	// eligible for another ingestion pass.
	dataStaleSeconds = 3600
	// Seconds after which a missing heartbeat lets another process reclaim
	// the lease.
	healthStaleSeconds = 1200
	// Same-day freshness cutoff used by the manager's schedule predicates.
	// Kept relative to CURRENT_TIMESTAMP's date on purpose: loads finishing
	// before 06:15 count towards the previous business day.
	loadSchedule = "6 hours 15 minutes"
)

// Lease is a claimed store_process row.
type Lease struct {
	StoreProcessID int64
	StoreID        int64
}

// StoreCredentials is what a worker needs to run a store's tasks.
type StoreCredentials struct {
	StoreName    string
	APIToken     string
	TokenIsValid bool
	SecretKey    string
}

// AcquireStore claims the oldest eligible store for ingestion. Eligible means
// data never loaded or stale, and the previous holder either stopped running
// or stopped heartbeating. Returns nil when no store is available.
func (s *Store) AcquireStore(ctx context.Context, service string) (*Lease, error) {
	query := fmt.Sprintf(`
		WITH blocked_store AS (
			SELECT sp.store_process_id
			FROM %[1]s.%[2]s sp
			WHERE
			(
				sp.last_data_load < NOW() - (%[3]d * INTERVAL '1 second')
				OR sp.last_data_load IS NULL
			)
			AND (
				(
					sp.process_health_check < NOW() - (%[4]d * INTERVAL '1 second')
					OR sp.process_health_check IS NULL
				)
				OR
				(
					sp.running = FALSE
					OR sp.running IS NULL
				)
			)
			ORDER BY sp.created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		UPDATE %[1]s.%[2]s sp
		SET
			running = TRUE,
			process_health_check = NOW(),
			last_worker_start = NOW(),
			service = $1
		FROM blocked_store
		WHERE sp.store_process_id = blocked_store.store_process_id
		RETURNING sp.store_process_id, sp.store_id`,
		coreSchema, storeProcessTable, dataStaleSeconds, healthStaleSeconds)

	var lease Lease
	err := s.conn.QueryRow(ctx, query, service).Scan(&lease.StoreProcessID, &lease.StoreID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to acquire store lease: %w", err)
	}
	return &lease, nil
}

// GetStoreCredentials fetches the store row a lease points at.
func (s *Store) GetStoreCredentials(ctx context.Context, storeID int64) (*StoreCredentials, error) {
	query := fmt.Sprintf(`
		SELECT store_name, api_token, token_is_valid, secret_key
		FROM %s.%s
		WHERE store_id = $1
		LIMIT 1`, coreSchema, storeTable)

	var creds StoreCredentials
	err := s.conn.QueryRow(ctx, query, storeID).
		Scan(&creds.StoreName, &creds.APIToken, &creds.TokenIsValid, &creds.SecretKey)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load store %d: %w", storeID, err)
	}
	return &creds, nil
}

// MarkProcessCompleted releases a lease. dataLoaded stamps last_data_load so
// the store leaves the ingestion queue until it goes stale again.
func (s *Store) MarkProcessCompleted(ctx context.Context, storeProcessID int64, dataLoaded bool) error {
	dataLoadClause := ""
	if dataLoaded {
		dataLoadClause = "last_data_load = NOW(),"
	}
	query := fmt.Sprintf(`
		UPDATE %s.%s
		SET
			running = FALSE,
			last_worker_end = NOW(),
			%s
			process_health_check = NOW()
		WHERE store_process_id = $1`,
		coreSchema, storeProcessTable, dataLoadClause)

	if _, err := s.conn.Exec(ctx, query, storeProcessID); err != nil {
		return fmt.Errorf("failed to complete store process %d: %w", storeProcessID, err)
	}
	return nil
}

// HeartbeatStores refreshes the health stamp on every held lease and returns
// the ids actually touched. Rows re-leased by someone else are skipped by the
// service guard.
func (s *Store) HeartbeatStores(ctx context.Context, service string, storeProcessIDs []int64) ([]int64, error) {
	if len(storeProcessIDs) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`
		UPDATE %s.%s
		SET process_health_check = NOW()
		WHERE store_process_id = ANY($1)
			AND service = $2
		RETURNING store_process_id`, coreSchema, storeProcessTable)

	rows, err := s.conn.Query(ctx, query, storeProcessIDs, service)
	if err != nil {
		return nil, fmt.Errorf("failed to heartbeat store processes: %w", err)
	}
	defer rows.Close()

	var updated []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		updated = append(updated, id)
	}
	return updated, rows.Err()
}

// UpsertServiceHealth records a process liveness beat. A NULL version never
// overwrites a previously reported one.
func (s *Store) UpsertServiceHealth(ctx context.Context, serviceType, serviceName, version string) error {
	query := fmt.Sprintf(`
		INSERT INTO %[1]s.%[2]s (
			service_type, service_name, version, last_health_check, updated_at
		)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (service_type, service_name)
		DO UPDATE SET
			last_health_check = NOW(),
			updated_at = NOW(),
			version = COALESCE(EXCLUDED.version, %[2]s.version)`,
		coreSchema, serviceHealthTable)

	if _, err := s.conn.Exec(ctx, query, serviceType, serviceName, version); err != nil {
		return fmt.Errorf("failed to upsert service health: %w", err)
	}
	return nil
}

// AcquireETLStore claims the oldest store whose data finished loading today
// but whose dimensional ETL has not yet run today.
func (s *Store) AcquireETLStore(ctx context.Context, service string) (*Lease, error) {
	query := fmt.Sprintf(`
		WITH next_store AS (
			SELECT store_process_id, store_id
			FROM %[1]s.%[2]s
			WHERE
				(
					last_data_load IS NOT NULL
					AND last_data_load >= (CURRENT_TIMESTAMP)::DATE + INTERVAL '%[3]s'
				)
				AND
				(
					last_dm_etl IS NULL OR last_dm_etl < (CURRENT_TIMESTAMP)::DATE + INTERVAL '%[3]s'
				)
				AND
				(
					(
						process_health_check < NOW() - (%[4]d * INTERVAL '1 second')
						OR process_health_check IS NULL
					)
					OR
					(
						running = FALSE
						OR running IS NULL
					)
				)
			ORDER BY created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		UPDATE %[1]s.%[2]s ss
		SET
			process_health_check = CURRENT_TIMESTAMP,
			service = $1,
			running = TRUE
		FROM next_store ns
		WHERE ss.store_process_id = ns.store_process_id
		RETURNING ns.store_process_id, ns.store_id`,
		coreSchema, storeProcessTable, loadSchedule, healthStaleSeconds)

	var lease Lease
	err := s.conn.QueryRow(ctx, query, service).Scan(&lease.StoreProcessID, &lease.StoreID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to acquire etl lease: %w", err)
	}
	return &lease, nil
}

// AcquireExportStore claims the oldest store whose ETL is done for today but
// whose spreadsheet has not been refreshed yet.
func (s *Store) AcquireExportStore(ctx context.Context, service string) (*Lease, error) {
	query := fmt.Sprintf(`
		WITH next_store AS (
			SELECT store_process_id, store_id
			FROM %[1]s.%[2]s
			WHERE
				(
					last_data_load IS NOT NULL
					AND last_data_load >= (CURRENT_TIMESTAMP)::DATE + INTERVAL '%[3]s'
				)
				AND
				(
					last_dm_etl IS NOT NULL AND last_dm_etl >= (CURRENT_TIMESTAMP)::DATE + INTERVAL '%[3]s'
				)
				AND
				(
					last_client_load IS NULL OR last_client_load < (CURRENT_TIMESTAMP)::DATE + INTERVAL '%[3]s'
				)
				AND
				(
					(
						process_health_check < NOW() - (%[4]d * INTERVAL '1 second')
						OR process_health_check IS NULL
					)
					OR
					(
						running = FALSE
						OR running IS NULL
					)
				)
			ORDER BY created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		UPDATE %[1]s.%[2]s ss
		SET
			process_health_check = CURRENT_TIMESTAMP,
			service = $1,
			running = TRUE
		FROM next_store ns
		WHERE ss.store_process_id = ns.store_process_id
		RETURNING ns.store_process_id, ns.store_id`,
		coreSchema, storeProcessTable, loadSchedule, healthStaleSeconds)

	var lease Lease
	err := s.conn.QueryRow(ctx, query, service).Scan(&lease.StoreProcessID, &lease.StoreID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to acquire export lease: %w", err)
	}
	return &lease, nil
}

// FinalizeExport releases an export lease after a successful upload.
func (s *Store) FinalizeExport(ctx context.Context, storeID int64) error {
	query := fmt.Sprintf(`
		UPDATE %s.%s
		SET
			running = FALSE,
			last_client_load = CURRENT_TIMESTAMP
		WHERE store_id = $1`, coreSchema, storeProcessTable)

	if _, err := s.conn.Exec(ctx, query, storeID); err != nil {
		return fmt.Errorf("failed to finalize export for store %d: %w", storeID, err)
	}
	return nil
}

// SpreadsheetID returns the store's configured workbook.
func (s *Store) SpreadsheetID(ctx context.Context, storeID int64) (string, error) {
	query := fmt.Sprintf(`
		SELECT table_id
		FROM %s.%s
		WHERE store_id = $1
		LIMIT 1`, coreSchema, storeTable)

	var id string
	if err := s.conn.QueryRow(ctx, query, storeID).Scan(&id); err != nil {
		return "", fmt.Errorf("failed to look up spreadsheet for store %d: %w", storeID, err)
	}
	return id, nil
}
