package pipeline

import (
	"strings"

	"pendencias/internal"
)

const (
	DefaultUnknownStudent = "Unknown"
	DefaultNoTutor        = "No Tutor"
)

type ExtractionMode struct {
	Policy         ClassifierPolicy
	UnknownStudent string
	NoTutor        string
}

func DefaultExtractionMode() ExtractionMode {
	return ExtractionMode{
		Policy:         DefaultClassifierPolicy(),
		UnknownStudent: DefaultUnknownStudent,
		NoTutor:        DefaultNoTutor,
	}
}

type labelSlot struct {
	label internal.ColumnLabel
	ok    bool
}

// Extract scans the data rows and emits one record per pending activity cell,
// in row order then column order. Malformed rows never fail the run: a short
// row is scanned up to its length and counted in TruncatedRows.
func Extract(data internal.Grid, labels []internal.ColumnLabel, ids IdentityColumns, mode ExtractionMode) ([]internal.PendingRecord, internal.Diagnostics) {
	diag := internal.Diagnostics{Labels: len(labels), Identity: ids.Addressing}
	slots, labeledWidth := alignLabels(labels, ids, dominantWidth(data))

	out := make([]internal.PendingRecord, 0)
	for _, row := range data {
		if row.IsBlank() {
			diag.BlankRows++
			continue
		}
		diag.DataRows++
		if len(row) < labeledWidth {
			diag.TruncatedRows++
		}

		who := identityOf(row, ids, mode)
		limit := len(row)
		if len(slots) < limit {
			limit = len(slots)
		}
		for col := 0; col < limit; col++ {
			slot := slots[col]
			if !slot.ok {
				continue
			}
			status, ok := Classify(row[col], slot.label, mode.Policy)
			if !ok {
				continue
			}
			rec := who
			rec.Module = slot.label.Module
			rec.Activity = slot.label.Activity
			rec.Status = status
			out = append(out, rec)
		}
	}
	return out, diag
}

// alignLabels maps data columns to labels. When identity columns were found by
// name the header describes every column by position. Positional identity
// means the header names no identity column: if the header is narrower than the
// usual row by at least the identity columns, it only describes activity
// columns and label k goes to the k-th non-identity column. Identity columns
// never get a label.
func alignLabels(labels []internal.ColumnLabel, ids IdentityColumns, rowWidth int) ([]labelSlot, int) {
	narrow := ids.Addressing == internal.AddressByPosition &&
		ids.Count() > 0 &&
		len(labels)+ids.Count() <= rowWidth

	if !narrow {
		slots := make([]labelSlot, len(labels))
		labeledWidth := 0
		for col, label := range labels {
			if ids.Contains(col) {
				continue
			}
			slots[col] = labelSlot{label: label, ok: true}
			labeledWidth = col + 1
		}
		return slots, labeledWidth
	}

	slots := []labelSlot{}
	for col, k := 0, 0; k < len(labels); col++ {
		if ids.Contains(col) {
			slots = append(slots, labelSlot{})
			continue
		}
		slots = append(slots, labelSlot{label: labels[k], ok: true})
		k++
	}
	return slots, len(slots)
}

// dominantWidth is the most common used width (up to the last non-blank cell)
// among non-blank rows, the larger one on ties. A few stray or short rows do
// not move it.
func dominantWidth(data internal.Grid) int {
	counts := map[int]int{}
	for _, row := range data {
		w := len(row)
		for w > 0 && row[w-1].IsBlank() {
			w--
		}
		if w > 0 {
			counts[w]++
		}
	}
	best, bestCount := 0, 0
	for w, n := range counts {
		if n > bestCount || (n == bestCount && w > best) {
			best, bestCount = w, n
		}
	}
	return best
}

func identityOf(row internal.Row, ids IdentityColumns, mode ExtractionMode) internal.PendingRecord {
	unknown := mode.UnknownStudent
	if unknown == "" {
		unknown = DefaultUnknownStudent
	}
	noTutor := mode.NoTutor
	if noTutor == "" {
		noTutor = DefaultNoTutor
	}
	return internal.PendingRecord{
		Student:    valueOr(row, ids.Student, unknown),
		Team:       valueOr(row, ids.Team, ""),
		Supervisor: valueOr(row, ids.Supervisor, ""),
		Tutor:      valueOr(row, ids.Tutor, noTutor),
	}
}

func valueOr(row internal.Row, idx int, fallback string) string {
	if idx < 0 {
		return fallback
	}
	v := strings.TrimSpace(row.At(idx).Value())
	if v == "" {
		return fallback
	}
	return v
}
