package main

import (
	"flag"
	"log"
	"os"
	"strconv"

	"chat-relay/internal"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"
)

// Dumps the relay's Badger records as a table, e.g.
//
//	inspect -db ./data/badger -prefix msg:<conversationId>:
func main() {
	dbPath := flag.String("db", os.Getenv("BADGER_FILEPATH"), "Path to badger DB")
	prefix := flag.String("prefix", "conv:", "Prefix to scan (conv:, pair:, seq:, msg:, seen:, user:)")
	limit := flag.Int("limit", 200, "Maximum number of rows, 0 for all")
	flag.Parse()

	// Read-only, the lock guard is bypassed so that a running relay can be inspected
	opts := badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING)
	db, err := badger.Open(opts)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	rows, err := internal.Scan(db, *prefix, *limit, nil)
	if err != nil {
		log.Fatal("Error while scanning: ", err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Type", "Size", "Detail"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	for _, row := range rows {
		table.Append([]string{row.Key, row.Type, strconv.Itoa(row.Size), row.Detail})
	}
	table.Render()
}
