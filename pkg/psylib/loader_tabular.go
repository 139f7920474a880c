package psylib

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"path"
	"strings"
)

// TabularData is the payload of a tabular resource: condition data
// decoded from a spreadsheet-like file.
type TabularData struct {
	// Columns holds the header row.
	Columns []string `json:"columns"`
	// Rows holds the data rows, each aligned with Columns.
	Rows [][]string `json:"rows"`
}

// MapRows returns the rows as column-keyed maps, the shape trial loops
// consume.
func (t *TabularData) MapRows() []map[string]string {
	out := make([]map[string]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		m := make(map[string]string, len(t.Columns))
		for i, col := range t.Columns {
			if i < len(row) {
				m[col] = row[i]
			}
		}
		out = append(out, m)
	}
	return out
}

// tabularLoader fetches spreadsheet resources as forced binary and
// decodes them into TabularData.
type tabularLoader struct {
	router *FetcherRouter
}

func (l *tabularLoader) Start(ctx context.Context, batch []*ResourceRecord, cb *LoaderCallbacks) {
	cb.setDefault()
	for _, rec := range batch {
		cb.Started(rec.Name)
		raw, err := l.router.Fetch(ctx, rec.Path)
		if err != nil {
			cb.Errored(rec.Name, newResourceError("tabular-loader", "fetching "+rec.Path, err))
			continue
		}
		data, err := parseTabular(rec.Name, raw)
		if err != nil {
			cb.Errored(rec.Name, newResourceError("tabular-loader", "decoding "+rec.Name, err))
			continue
		}
		cb.Completed(rec.Name, data)
	}
	cb.BatchComplete()
}

// parseTabular decodes CSV or TSV bytes into TabularData. The first
// row is the header.
func parseTabular(name string, raw []byte) (*TabularData, error) {
	r := csv.NewReader(bytes.NewReader(raw))
	if strings.EqualFold(path.Ext(name), ".tsv") {
		r.Comma = '\t'
	}
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%q contains no rows", name)
	}
	return &TabularData{
		Columns: records[0],
		Rows:    records[1:],
	}, nil
}
