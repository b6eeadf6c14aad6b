package pipeline

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"pendencias/internal"
)

var sampleRecords = []internal.PendingRecord{
	{Student: "João Araújo", Team: "Turma A", Supervisor: "Lúcia", Tutor: "Çécile", Module: "Módulo 1", Activity: "Fórum; debate", Status: internal.StatusAwaiting},
	{Student: "Ana", Team: "", Supervisor: "", Tutor: DefaultNoTutor, Module: DefaultModule, Activity: "Quiz \"final\"", Status: internal.StatusNotDone},
}

func TestCSVRoundTrip(t *testing.T) {
	for _, delim := range []rune{',', ';'} {
		var buf bytes.Buffer
		require.NoError(t, WriteCSV(&buf, sampleRecords, delim))
		assert.True(t, bytes.HasPrefix(buf.Bytes(), utf8BOM))

		got, err := ReadCSV(&buf, delim)
		require.NoError(t, err)
		assert.Equal(t, sampleRecords, got)
	}
}

func TestWriteCSVStatusCodes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleRecords, ','))
	text := buf.String()
	assert.Contains(t, text, "Aluno,Equipe,Supervisor,Tutor,Módulo,Atividade,Status")
	assert.Contains(t, text, ",AG\n")
	assert.Contains(t, text, ",NA\n")
}

func TestReadCSVRejectsForeignHeader(t *testing.T) {
	_, err := ReadCSV(bytes.NewBufferString("a,b,c,d,e,f,g\n"), ',')
	assert.Error(t, err)
}

func TestExportRecordsXLSX(t *testing.T) {
	out := filepath.Join(t.TempDir(), "nested", "pendencias.xlsx")
	require.NoError(t, ExportRecords(sampleRecords, out, ','))

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, ExportHeaders, rows[0])
	assert.Equal(t, "João Araújo", rows[1][0])
	assert.Equal(t, "AG", rows[1][6])
	assert.Equal(t, "NA", rows[2][6])
}

func TestExportedXLSXFeedsBackIntoDecoder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sampleRecords))

	g, format, err := Decode("out.xlsx", buf.Bytes(), DecodeOptions{})
	require.NoError(t, err)
	assert.Equal(t, internal.FormatXLSX, format)
	assert.Equal(t, "Fórum; debate", g[1].At(5).Value())
}

func TestExportRecordsCSVAndUnknownExtension(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "p.csv")
	require.NoError(t, ExportRecords(sampleRecords, out, ';'))

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	got, err := ReadCSV(f, ';')
	require.NoError(t, err)
	assert.Len(t, got, 2)

	assert.Error(t, ExportRecords(sampleRecords, filepath.Join(dir, "p.pdf"), ','))
}

func TestWriteRowsReportsErrors(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	assert.Error(t, writeRows(f, sheet, 0, [][]string{{"x"}}))
	assert.Error(t, writeRows(f, "missing", 1, [][]string{{"x"}}))

	require.NoError(t, writeRows(f, sheet, 3, [][]string{{"a", "b"}}))
	v, err := f.GetCellValue(sheet, "B3")
	require.NoError(t, err)
	assert.Equal(t, "b", v)
}
