// Package report renders requisition data as spreadsheets.
package report

import (
	"bytes"
	"fmt"
	"sort"

	"requisiciones/internal/model"

	"github.com/xuri/excelize/v2"
)

const (
	traceSheet    = "Trazabilidad"
	supportsSheet = "Soportes"
	timeLayout    = "2006-01-02 15:04:05"
)

// TraceWorkbook builds an xlsx with the requisition's events, newest first,
// and its support documents by version.
func TraceWorkbook(req model.Requisition, events []model.AuditEvent, supports []model.SupportDocument) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), traceSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	title := []interface{}{req.Numero, string(req.Kind), req.Area, req.Status.Label(), req.NumeroComite}
	if err := f.SetSheetRow(traceSheet, "A1", &title); err != nil {
		return nil, fmt.Errorf("title row: %w", err)
	}

	header := []interface{}{
		"fecha",
		"evento",
		"actor",
		"estado_anterior",
		"estado_nuevo",
		"descripcion",
		"detalles",
	}
	if err := f.SetSheetRow(traceSheet, "A3", &header); err != nil {
		return nil, fmt.Errorf("trace header: %w", err)
	}

	sorted := make([]model.AuditEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})

	row := 4
	for _, e := range sorted {
		excelRow := []interface{}{
			e.Timestamp.UTC().Format(timeLayout),
			string(e.EventType),
			e.Actor,
			statusLabel(e.PreviousStatus),
			statusLabel(e.NewStatus),
			e.Description,
			e.Details,
		}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(traceSheet, cell, &excelRow); err != nil {
			return nil, fmt.Errorf("trace row %d: %w", row, err)
		}
		row++
	}
	_ = f.SetColWidth(traceSheet, "A", "A", 20)
	_ = f.SetColWidth(traceSheet, "F", "G", 60)

	if _, err := f.NewSheet(supportsSheet); err != nil {
		return nil, fmt.Errorf("supports sheet: %w", err)
	}
	supportHeader := []interface{}{"version", "archivo", "tipo", "bytes", "subido", "por", "descripcion"}
	if err := f.SetSheetRow(supportsSheet, "A1", &supportHeader); err != nil {
		return nil, fmt.Errorf("supports header: %w", err)
	}
	row = 2
	for _, d := range supports {
		excelRow := []interface{}{
			d.Version,
			d.Filename,
			d.MimeType,
			d.SizeBytes,
			d.UploadedAt.UTC().Format(timeLayout),
			d.UploadedBy,
			d.Description,
		}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(supportsSheet, cell, &excelRow); err != nil {
			return nil, fmt.Errorf("supports row %d: %w", row, err)
		}
		row++
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func statusLabel(s *model.Status) string {
	if s == nil {
		return ""
	}
	return s.Label()
}
