package pipeline

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/htmlindex"

	"pendencias/internal"
	"pendencias/internal/util"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type DecodeOptions struct {
	Delimiter rune
	Encoding  string
	// Format forces the first decoder tried; empty means by extension.
	Format internal.InputFormat
}

type decodeFunc func(data []byte, opts DecodeOptions) (internal.Grid, error)

var decoders = map[internal.InputFormat]decodeFunc{
	internal.FormatCSV:  decodeDelimited,
	internal.FormatXLSX: decodeXLSX,
	internal.FormatXLS:  decodeXLS,
	internal.FormatHTML: decodeHTMLTable,
}

// Decode runs the decoder chain and returns the grid of the first decoder that
// succeeds. When every decoder fails the joined failures are reported as
// UnreadableInput.
func Decode(name string, data []byte, opts DecodeOptions) (internal.Grid, internal.InputFormat, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, "", unreadable(name, errors.New("empty input"))
	}

	var errs []error
	for _, format := range DecoderOrder(name, data, opts.Format) {
		grid, err := decoders[format](data, opts)
		if err == nil {
			return grid, format, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", format, err))
	}
	return nil, "", unreadable(name, errors.Join(errs...))
}

func decodeDelimited(data []byte, opts DecodeOptions) (internal.Grid, error) {
	if bytes.IndexByte(data, 0) >= 0 {
		return nil, errors.New("binary content")
	}
	text, err := DecodeText(data, opts.Encoding)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = opts.Delimiter
	if reader.Comma == 0 {
		reader.Comma = ','
	}
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New("no rows")
	}
	return internal.GridFromStrings(rows), nil
}

// DecodeText converts data in the declared encoding to UTF-8. Under a UTF-8
// encoding a leading BOM is dropped and invalid bytes are an error.
func DecodeText(data []byte, encoding string) (string, error) {
	name := strings.ToLower(strings.TrimSpace(encoding))
	switch name {
	case "", "utf-8", "utf8", "utf-8-sig":
		data = bytes.TrimPrefix(data, utf8BOM)
		if !utf8.Valid(data) {
			return "", fmt.Errorf("content is not valid %s", firstNonEmpty(name, "utf-8"))
		}
		return string(data), nil
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return "", fmt.Errorf("unsupported text encoding %q", encoding)
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", name, err)
	}
	return string(bytes.TrimPrefix(out, utf8BOM)), nil
}

func decodeXLSX(data []byte, _ DecodeOptions) (internal.Grid, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, errors.New("no worksheet found")
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New("worksheet is empty")
	}
	return padRows(internal.GridFromStrings(rows)), nil
}

func decodeXLS(data []byte, _ DecodeOptions) (grid internal.Grid, err error) {
	// The BIFF parser panics on some truncated containers.
	defer func() {
		if r := recover(); r != nil {
			grid, err = nil, fmt.Errorf("corrupt workbook: %v", r)
		}
	}()

	if !bytes.HasPrefix(data, oleMagic) {
		return nil, errors.New("not an OLE2 workbook")
	}
	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, err
	}
	if wb.NumSheets() == 0 {
		return nil, errors.New("no worksheet found")
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, errors.New("no worksheet found")
	}

	rows := make([][]string, 0, int(sheet.MaxRow)+1)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]string, row.LastCol())
		for j := row.FirstCol(); j < row.LastCol(); j++ {
			cells[j] = row.Col(j)
		}
		rows = append(rows, cells)
	}
	grid = padRows(internal.GridFromStrings(rows))
	if len(grid) == 0 || grid.Width() == 0 {
		return nil, errors.New("worksheet is empty")
	}
	return grid, nil
}

// decodeHTMLTable reads the first table of an HTML export. colspan cells are
// followed by blanks so merged module headers forward-fill like a sheet.
func decodeHTMLTable(data []byte, opts DecodeOptions) (internal.Grid, error) {
	text, err := DecodeText(data, opts.Encoding)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return nil, err
	}

	var rows [][]string
	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			cells := []string{}
			tr.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, util.NormalizeSpaces(cell.Text()))
				span := colSpan(cell.AttrOr("colspan", "1"))
				for i := 1; i < span; i++ {
					cells = append(cells, "")
				}
			})
			if len(cells) > 0 {
				rows = append(rows, cells)
			}
		})
		return len(rows) == 0
	})

	if len(rows) == 0 {
		return nil, errors.New("no table rows found")
	}
	return internal.GridFromStrings(rows), nil
}

// maxColSpan is the largest colspan browsers honor.
const maxColSpan = 1000

func colSpan(attr string) int {
	span, err := strconv.Atoi(strings.TrimSpace(attr))
	if err != nil || span < 1 {
		return 1
	}
	if span > maxColSpan {
		return maxColSpan
	}
	return span
}

// padRows restores trailing blank cells that spreadsheet readers drop.
func padRows(grid internal.Grid) internal.Grid {
	width := grid.Width()
	for i, row := range grid {
		for len(row) < width {
			row = append(row, internal.Blank())
		}
		grid[i] = row
	}
	return grid
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
