package pipeline

import (
	"fmt"
	"strings"

	"pendencias/internal"
	"pendencias/internal/util"
)

const DefaultModule = "General"

type ReconcileOptions struct {
	DefaultModule string
	// ModuleToken, when set, is required in a header cell for it to open a
	// new module (exports that write "Módulo N" above the activities).
	ModuleToken string
	// IdentityNames never open a module even though they sit in the module row.
	IdentityNames []string
}

// SplitHeader cuts the grid into the header block and the data block.
func SplitHeader(grid internal.Grid, headerRows int) (internal.Grid, internal.Grid, error) {
	if headerRows < 1 || headerRows > 2 {
		return nil, nil, fmt.Errorf("header row count must be 1 or 2, got %d", headerRows)
	}
	if len(grid) < headerRows {
		return nil, nil, fmt.Errorf("expected %d header rows, found %d", headerRows, len(grid))
	}
	return grid[:headerRows], grid[headerRows:], nil
}

// Reconcile resolves one (module, activity) label per header column. A single
// header row carries both the module and the activity text; with two rows the
// first holds modules and the second activities. Module names are forward-filled
// left to right. It never fails: malformed headers degrade to default labels.
func Reconcile(header internal.Grid, opts ReconcileOptions) []internal.ColumnLabel {
	if len(header) == 0 {
		return nil
	}
	width := header.Width()
	modules := forwardFill(header[0], width, opts)

	activityRow := header[0]
	if len(header) > 1 {
		activityRow = header[1]
	}

	labels := make([]internal.ColumnLabel, width)
	for i := 0; i < width; i++ {
		labels[i] = internal.ColumnLabel{
			Module:      modules[i],
			Activity:    strings.TrimSpace(activityRow.At(i).Value()),
			ColumnIndex: i,
		}
	}
	return labels
}

func forwardFill(row internal.Row, width int, opts ReconcileOptions) []string {
	current := opts.DefaultModule
	if strings.TrimSpace(current) == "" {
		current = DefaultModule
	}
	identity := normalizedSet(opts.IdentityNames)
	token := util.NormalizeHeader(opts.ModuleToken)

	out := make([]string, width)
	for i := 0; i < width; i++ {
		if text, ok := moduleText(row.At(i), identity, token); ok {
			current = text
		}
		out[i] = current
	}
	return out
}

func moduleText(cell internal.Cell, identity map[string]struct{}, token string) (string, bool) {
	text := strings.TrimSpace(cell.Value())
	if util.IsPlaceholder(text) {
		return "", false
	}
	norm := util.NormalizeHeader(text)
	if _, ok := identity[norm]; ok {
		return "", false
	}
	if token != "" && !strings.Contains(norm, token) {
		return "", false
	}
	return text, true
}

func normalizedSet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		if n := util.NormalizeHeader(v); n != "" {
			out[n] = struct{}{}
		}
	}
	return out
}
