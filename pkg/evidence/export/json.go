// Package export writes turn evidence in interchange formats.
package export

import (
	"context"
	"encoding/json"
	"io"

	"atlas-g/protocol/pkg/evidence"
)

// JSONExporter exports turn records as JSON.
type JSONExporter struct {
	// Pretty enables pretty-printing with indentation.
	Pretty bool

	// Lines writes one compact object per line instead of an array.
	// Pretty is ignored in this mode.
	Lines bool
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(pretty bool) *JSONExporter {
	return &JSONExporter{
		Pretty: pretty,
	}
}

// Export writes records to w. An empty set is written as "[]" (or nothing in
// Lines mode).
func (e *JSONExporter) Export(ctx context.Context, records []*evidence.TurnRecord, w io.Writer) error {
	if e.Lines {
		return e.exportLines(ctx, records, w)
	}

	if records == nil {
		records = []*evidence.TurnRecord{}
	}

	var data []byte
	var err error
	if e.Pretty {
		data, err = json.MarshalIndent(records, "", "  ")
	} else {
		data, err = json.Marshal(records)
	}
	if err != nil {
		return evidence.NewExportError("json", len(records), err)
	}

	if _, err := w.Write(data); err != nil {
		return evidence.NewExportError("json", len(records), err)
	}
	return nil
}

func (e *JSONExporter) exportLines(ctx context.Context, records []*evidence.TurnRecord, w io.Writer) error {
	enc := json.NewEncoder(w)
	for i, record := range records {
		if err := ctx.Err(); err != nil {
			return evidence.NewExportError("jsonl", i, err)
		}
		if err := enc.Encode(record); err != nil {
			return evidence.NewExportError("jsonl", i, err)
		}
	}
	return nil
}
