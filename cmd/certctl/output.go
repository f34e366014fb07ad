package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/vecinal/certdesk/modules/certificates/presentation/controllers/dtos"
)

const (
	outputJSON  = "json"
	outputTable = "table"
)

func writeJSON(v any) error {
	return encodeJSON(os.Stdout, v)
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeRecords prints ledger rows either as indented JSON or as an aligned
// table with one line per folio.
func writeRecords(w io.Writer, format string, records []dtos.RecordResponse) error {
	switch format {
	case "", outputJSON:
		return encodeJSON(w, records)
	case outputTable:
	default:
		return fmt.Errorf("unknown output format %q (want %s or %s)", format, outputJSON, outputTable)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FOLIO\tSTATE\tNAME\tNATIONAL ID\tCHANGED\tDOCUMENT")
	for _, rec := range records {
		doc := rec.DocumentURL
		if doc == "" {
			doc = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			rec.Folio, rec.State, rec.Name, rec.NationalID, rec.ChangedAt.Format(time.DateTime), doc)
	}
	return tw.Flush()
}
