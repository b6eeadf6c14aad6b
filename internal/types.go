package internal

import "strings"

// Cell is one raw grid value. A cell is either Text or Blank; whitespace-only
// input is Blank. The literal "NA" is always Text.
type Cell struct {
	text  string
	blank bool
}

func Text(s string) Cell {
	if strings.TrimSpace(s) == "" {
		return Blank()
	}
	return Cell{text: s}
}

func Blank() Cell { return Cell{blank: true} }

func (c Cell) IsBlank() bool { return c.blank || c.text == "" }

// Value returns the raw text, or "" for a blank cell.
func (c Cell) Value() string {
	if c.IsBlank() {
		return ""
	}
	return c.text
}

type Row []Cell

type Grid []Row

// GridFromStrings wraps decoded string rows without coercion.
func GridFromStrings(rows [][]string) Grid {
	out := make(Grid, 0, len(rows))
	for _, row := range rows {
		cells := make(Row, len(row))
		for i, v := range row {
			cells[i] = Text(v)
		}
		out = append(out, cells)
	}
	return out
}

func (r Row) At(i int) Cell {
	if i < 0 || i >= len(r) {
		return Blank()
	}
	return r[i]
}

func (r Row) IsBlank() bool {
	for _, c := range r {
		if !c.IsBlank() {
			return false
		}
	}
	return true
}

// Width is the widest row of the grid.
func (g Grid) Width() int {
	w := 0
	for _, row := range g {
		if len(row) > w {
			w = len(row)
		}
	}
	return w
}

type ColumnLabel struct {
	Module      string `json:"module"`
	Activity    string `json:"activity"`
	ColumnIndex int    `json:"columnIndex"`
}

type PendingStatus string

const (
	StatusAwaiting PendingStatus = "AWAITING"
	StatusNotDone  PendingStatus = "NOT_DONE"
)

// Code is the two-letter code used by the tracking system.
func (s PendingStatus) Code() string {
	switch s {
	case StatusAwaiting:
		return "AG"
	case StatusNotDone:
		return "NA"
	default:
		return ""
	}
}

// ParseStatus accepts either the code or the status name.
func ParseStatus(value string) (PendingStatus, bool) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "AG", string(StatusAwaiting):
		return StatusAwaiting, true
	case "NA", string(StatusNotDone):
		return StatusNotDone, true
	default:
		return "", false
	}
}

type PendingRecord struct {
	Student    string        `json:"student"`
	Team       string        `json:"team"`
	Supervisor string        `json:"supervisor"`
	Tutor      string        `json:"tutor"`
	Module     string        `json:"module"`
	Activity   string        `json:"activity"`
	Status     PendingStatus `json:"status"`
}

type InputFormat string

const (
	FormatCSV  InputFormat = "csv"
	FormatXLSX InputFormat = "xlsx"
	FormatXLS  InputFormat = "xls"
	FormatHTML InputFormat = "html"
)

type IdentityAddressing string

const (
	AddressByName     IdentityAddressing = "name"
	AddressByPosition IdentityAddressing = "position"
)

type Diagnostics struct {
	Format        InputFormat        `json:"format"`
	HeaderRows    int                `json:"headerRows"`
	Labels        int                `json:"labels"`
	DataRows      int                `json:"dataRows"`
	BlankRows     int                `json:"blankRows"`
	TruncatedRows int                `json:"truncatedRows"`
	Identity      IdentityAddressing `json:"identity"`
}

// InboundFile is a spreadsheet export picked up by a connector.
type InboundFile struct {
	Source     string
	ExternalID string
	Name       string
	Subject    string
	From       string
	ReceivedAt string
	Content    []byte
}

type InboundRow struct {
	ID         int
	Source     string
	ExternalID string
	Name       string
	ReceivedAt string
	Hash       string
	Status     string
	RawRef     string
}

type RunRow struct {
	ID        int                `json:"id"`
	TraceID   string             `json:"traceId"`
	Source    string             `json:"source"`
	Format    string             `json:"format"`
	Status    string             `json:"status"`
	ErrorKind string             `json:"errorKind,omitempty"`
	Error     string             `json:"error,omitempty"`
	Counts    map[string]int     `json:"counts"`
	Timings   map[string]float64 `json:"timings"`
	CreatedAt string             `json:"createdAt"`
}
