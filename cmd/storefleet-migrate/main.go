// storefleet-migrate creates the database objects the fleet needs and can dump
// any of them as CSV for inspection or backfill.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/user/storefleet/internal/config"
	"github.com/user/storefleet/internal/storage/postgres"
)

func main() {
	dump := flag.String("dump", "", "dump a table as CSV to stdout instead of migrating (schema.table)")
	list := flag.Bool("list", false, "list dumpable tables")
	flag.Parse()

	if *list {
		fmt.Println(strings.Join(postgres.TableNames(), "\n"))
		return
	}

	if err := run(*dump); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(dump string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx := context.Background()
	store, err := postgres.Connect(ctx, cfg.ConnString())
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	if dump != "" {
		return postgres.DumpTableCSV(ctx, store.Conn(), dump, os.Stdout)
	}

	if err := store.CreateSchema(ctx); err != nil {
		return err
	}
	fmt.Println("schema is up to date")
	return nil
}
