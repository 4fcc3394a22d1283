package postgres

import (
	"strings"
	"testing"
	"time"
)

func TestDimColumnsMatchPivotOutput(t *testing.T) {
	// 13 base columns plus 7 metrics for each of the 6 campaign types.
	if len(dimColumns) != 13+6*7 {
		t.Fatalf("dim column count = %d", len(dimColumns))
	}
	query := dimensionalSelect()
	for _, col := range dimColumns[4:] {
		if !strings.Contains(query, col) {
			t.Fatalf("pivot select missing column %q", col)
		}
	}
}

func TestAdvertPivotBuckets(t *testing.T) {
	query := dimensionalSelect()
	for _, want := range []string{
		"FILTER (WHERE advert_type = 8) AS views_auto",
		"FILTER (WHERE advert_type = 9) AS views_mix",
		"FILTER (WHERE advert_type = 6) AS views_search",
		"FILTER (WHERE advert_type = 4) AS views_cat",
		"FILTER (WHERE advert_type = 5) AS views_card",
		"FILTER (WHERE advert_type = 7) AS views_main",
		"FILTER (WHERE sale_type = 'S')",
		"FILTER (WHERE sale_type = 'R')",
	} {
		if !strings.Contains(query, want) {
			t.Fatalf("pivot select missing %q", want)
		}
	}
}

func TestSheetValue(t *testing.T) {
	if got := sheetValue(nil); got != "" {
		t.Fatalf("nil -> %v", got)
	}
	d := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	if got := sheetValue(d); got != "2026-08-20" {
		t.Fatalf("date -> %v", got)
	}
	if got := sheetValue(int32(7)); got != int32(7) {
		t.Fatalf("int -> %v", got)
	}
}

func TestDumpTableRejectsUnknownTable(t *testing.T) {
	if err := DumpTableCSV(nil, nil, "store; DROP TABLE x", nil); err == nil {
		t.Fatal("expected unknown table error")
	}
}

func TestKnownTablesCoverConstants(t *testing.T) {
	for _, name := range []string{
		storeTable, storeProcessTable, serviceHealthTable, logTable,
		cardsListTable, nmReportDetailTable, nmReportDetailInfoTable,
		factStockTable, factSalesTable, factSalesInfoTable,
		advertTypeMappingTable, advertInfoTable, advertLoadInfoTable,
		advertStatTable, dimTechListTable,
	} {
		if _, ok := knownTables[name]; !ok {
			t.Fatalf("table %q not dumpable", name)
		}
	}
}
