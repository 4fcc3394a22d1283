package postgres

import (
	"context"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5"
)

// knownTables guards DumpTableCSV against interpolating arbitrary input into
// a COPY statement.
var knownTables = map[string]string{
	storeTable:              coreSchema,
	storeProcessTable:       coreSchema,
	serviceHealthTable:      coreSchema,
	logTable:                coreSchema,
	cardsListTable:          stgSchema,
	nmReportDetailTable:     stgSchema,
	nmReportDetailInfoTable: stgSchema,
	factStockTable:          stgSchema,
	factSalesTable:          stgSchema,
	factSalesInfoTable:      stgSchema,
	advertTypeMappingTable:  stgSchema,
	advertInfoTable:         stgSchema,
	advertLoadInfoTable:     stgSchema,
	advertStatTable:         stgSchema,
	dimTechListTable:        dimSchema,
}

// DumpTableCSV streams a whole table as CSV with a header row. Borrows the
// connection for the duration of the copy and never closes it.
func DumpTableCSV(ctx context.Context, conn *pgx.Conn, table string, w io.Writer) error {
	schema, ok := knownTables[table]
	if !ok {
		return fmt.Errorf("unknown table %q", table)
	}
	copySQL := fmt.Sprintf(`COPY %s.%s TO STDOUT WITH CSV HEADER`, schema, table)
	if _, err := conn.PgConn().CopyTo(ctx, w, copySQL); err != nil {
		return fmt.Errorf("failed to dump %s.%s: %w", schema, table, err)
	}
	return nil
}

// TableNames lists the tables DumpTableCSV accepts.
func TableNames() []string {
	names := make([]string, 0, len(knownTables))
	for name := range knownTables {
		names = append(names, name)
	}
	return names
}
