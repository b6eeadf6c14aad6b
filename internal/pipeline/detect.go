package pipeline

import (
	"bytes"
	"path/filepath"
	"strings"

	"pendencias/internal"
)

var (
	zipMagic = []byte("PK\x03\x04")
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// DecoderOrder lists the decoders to try for a file. The forced format or the
// extension goes first; the remaining workbook decoders and the HTML table
// fallback follow. Delimited text is only tried for content that looks like text.
func DecoderOrder(name string, data []byte, forced internal.InputFormat) []internal.InputFormat {
	first := forced
	if first == "" {
		first = FormatFromName(name)
	}
	sniffed := SniffFormat(data)
	if first == "" {
		first = sniffed
	}

	order := []internal.InputFormat{first}
	for _, f := range []internal.InputFormat{internal.FormatXLSX, internal.FormatXLS, internal.FormatHTML} {
		if f != first {
			order = append(order, f)
		}
	}
	if first != internal.FormatCSV && sniffed == internal.FormatCSV {
		order = append(order, internal.FormatCSV)
	}
	return order
}

func FormatFromName(name string) internal.InputFormat {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt", ".tsv":
		return internal.FormatCSV
	case ".xlsx", ".xlsm":
		return internal.FormatXLSX
	case ".xls":
		return internal.FormatXLS
	case ".html", ".htm":
		return internal.FormatHTML
	default:
		return ""
	}
}

// ParseFormat accepts a user supplied format name; unknown names yield "".
func ParseFormat(value string) internal.InputFormat {
	switch f := internal.InputFormat(strings.ToLower(strings.TrimSpace(value))); f {
	case internal.FormatCSV, internal.FormatXLSX, internal.FormatXLS, internal.FormatHTML:
		return f
	default:
		return ""
	}
}

// SniffFormat guesses the container from the leading bytes.
func SniffFormat(data []byte) internal.InputFormat {
	switch {
	case bytes.HasPrefix(data, zipMagic):
		return internal.FormatXLSX
	case bytes.HasPrefix(data, oleMagic):
		return internal.FormatXLS
	}
	head := data
	if len(head) > 4096 {
		head = head[:4096]
	}
	if bytes.Contains(bytes.ToLower(head), []byte("<table")) {
		return internal.FormatHTML
	}
	return internal.FormatCSV
}
