package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pendencias/internal"
)

func TestRunGridNarrowHeader(t *testing.T) {
	g := grid(
		[]string{"Module1", "", "Module2"},
		[]string{"Act1", "Act2", "Act3"},
		[]string{"Alice", "TeamX", "Sup1", "TutorA", "2024-01-01", "AG", "NA", "ok"},
	)

	res, err := RunGrid("turma.csv", g, internal.FormatCSV, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, []internal.PendingRecord{
		{Student: "Alice", Team: "TeamX", Supervisor: "Sup1", Tutor: "TutorA", Module: "Module1", Activity: "Act1", Status: internal.StatusAwaiting},
		{Student: "Alice", Team: "TeamX", Supervisor: "Sup1", Tutor: "TutorA", Module: "Module1", Activity: "Act2", Status: internal.StatusNotDone},
	}, res.Records)
	assert.Equal(t, internal.AddressByPosition, res.Diagnostics.Identity)
	assert.Equal(t, 1, res.Diagnostics.DataRows)
	assert.Zero(t, res.Diagnostics.TruncatedRows)
}

func TestRunGridNamedIdentity(t *testing.T) {
	g := grid(
		[]string{"", "", "Módulo 1", "", "Módulo 2", ""},
		[]string{"Tutor", "Aluno", "Tarefa", "Nota Final", "Fórum", "Quiz"},
		[]string{"Bia", "Carlos", "AG", "AG", "", "NA"},
		[]string{"", "Dora", "ok", "7", "NA", "ok"},
	)

	res, err := RunGrid("named.csv", g, internal.FormatCSV, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, internal.AddressByName, res.Diagnostics.Identity)
	assert.Equal(t, []internal.PendingRecord{
		{Student: "Carlos", Tutor: "Bia", Module: "Módulo 1", Activity: "Tarefa", Status: internal.StatusAwaiting},
		{Student: "Carlos", Tutor: "Bia", Module: "Módulo 2", Activity: "Quiz", Status: internal.StatusNotDone},
		{Student: "Dora", Tutor: DefaultNoTutor, Module: "Módulo 2", Activity: "Fórum", Status: internal.StatusNotDone},
	}, res.Records)
}

func TestRunGridEmptyData(t *testing.T) {
	g := grid(
		[]string{"M1", ""},
		[]string{"A1", "A2"},
	)
	res, err := RunGrid("empty.csv", g, internal.FormatCSV, DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, res.Records)
	assert.Zero(t, res.Diagnostics.DataRows)
}

func TestRunGridHeaderShapeMismatch(t *testing.T) {
	_, err := RunGrid("short.csv", grid([]string{"M1", "M2"}), internal.FormatCSV, DefaultOptions())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHeaderShapeMismatch)
	assert.NotErrorIs(t, err, ErrUnreadableInput)
	assert.Equal(t, KindHeaderShapeMismatch, KindOf(err))
}

func TestExtractTruncatedRows(t *testing.T) {
	labels := []internal.ColumnLabel{
		{Module: "M", Activity: "A1", ColumnIndex: 0},
		{Module: "M", Activity: "A2", ColumnIndex: 1},
		{Module: "M", Activity: "A3", ColumnIndex: 2},
	}
	ids := PositionalIdentity([]int{0})
	data := grid(
		[]string{"Ana", "AG", "NA", "AG", "NA"},
		[]string{"Bruno", "NA"},
		[]string{"", "", ""},
		[]string{"Caio", "AG", "AG", "AG", "AG"},
	)

	records, diag := Extract(data, labels, ids, DefaultExtractionMode())

	assert.Equal(t, 3, diag.DataRows)
	assert.Equal(t, 1, diag.BlankRows)
	assert.Equal(t, 1, diag.TruncatedRows)

	var students []string
	for _, r := range records {
		students = append(students, r.Student+"/"+r.Activity)
	}
	assert.Equal(t, []string{"Ana/A1", "Ana/A2", "Ana/A3", "Bruno/A1", "Caio/A1", "Caio/A2", "Caio/A3"}, students)
}

func TestExtractDirectAlignment(t *testing.T) {
	labels := Reconcile(grid(
		[]string{"Aluno", "M1", ""},
		[]string{"", "A1", "A2"},
	), ReconcileOptions{IdentityNames: DefaultIdentityAliases().Names()})
	ids := IdentityColumns{Student: 0, Team: -1, Supervisor: -1, Tutor: -1, LastAccess: -1, Addressing: internal.AddressByName}

	records, diag := Extract(grid([]string{"Eva", "NA", "AG"}), labels, ids, DefaultExtractionMode())
	require.Len(t, records, 2)
	assert.Equal(t, "A1", records[0].Activity)
	assert.Equal(t, internal.StatusNotDone, records[0].Status)
	assert.Equal(t, "A2", records[1].Activity)
	assert.Equal(t, "M1", records[1].Module)
	assert.Zero(t, diag.TruncatedRows)
}

func TestExtractDefaults(t *testing.T) {
	labels := []internal.ColumnLabel{{Module: "M", Activity: "A", ColumnIndex: 0}}
	ids := PositionalIdentity([]int{0, 1, 2, 3})
	data := grid([]string{"", "T", "S", "", "AG"})

	records, _ := Extract(data, labels, ids, ExtractionMode{Policy: DefaultClassifierPolicy()})
	require.Len(t, records, 1)
	assert.Equal(t, DefaultUnknownStudent, records[0].Student)
	assert.Equal(t, DefaultNoTutor, records[0].Tutor)

	records, _ = Extract(data, labels, ids, ExtractionMode{Policy: DefaultClassifierPolicy(), UnknownStudent: "?", NoTutor: "Sem tutor"})
	require.Len(t, records, 1)
	assert.Equal(t, "?", records[0].Student)
	assert.Equal(t, "Sem tutor", records[0].Tutor)
}

func TestExtractIsIdempotent(t *testing.T) {
	g := grid(
		[]string{"M1", "", "M2"},
		[]string{"A1", "A2", "A3"},
		[]string{"Ana", "T", "S", "Tu", "", "AG", "NA", "AG"},
		[]string{"Bia", "T", "S", "Tu", "", "NA", "", "ok"},
	)
	first, err := RunGrid("x.csv", g, internal.FormatCSV, DefaultOptions())
	require.NoError(t, err)
	second, err := RunGrid("x.csv", g, internal.FormatCSV, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, first.Records, second.Records)
	assert.Len(t, first.Records, 4)
}

func TestExtractBlankMode(t *testing.T) {
	labels := []internal.ColumnLabel{{Module: "M", Activity: "A1"}, {Module: "M", Activity: "A2"}}
	ids := PositionalIdentity(nil)
	data := grid([]string{"", "AG"})

	records, _ := Extract(data, labels, ids, DefaultExtractionMode())
	assert.Len(t, records, 1)

	mode := DefaultExtractionMode()
	mode.Policy.TreatBlankAsPending = true
	records, _ = Extract(data, labels, ids, mode)
	require.Len(t, records, 2)
	assert.Equal(t, internal.StatusNotDone, records[0].Status)
}

func TestRunGridStrayCellKeepsOtherRows(t *testing.T) {
	clean := "Aluno,Equipe,Supervisor,Tutor,Último acesso,Módulo 1,,Módulo 2,\n" +
		",,,,,Tarefa 1,Nota Final,Fórum,Quiz\n" +
		"Ana,A,Sup,Tu1,2024-01-01,AG,AG,NA,ok\n"
	stray := clean + "Bia,A,Sup,Tu2,2024-01-02,ok,9,ok,ok,,,,,,obs\n"

	want, err := Run("turma.csv", []byte(clean), DefaultOptions())
	require.NoError(t, err)
	require.Len(t, want.Records, 2)

	got, err := Run("turma.csv", []byte(stray), DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, want.Records, got.Records)
	assert.Zero(t, got.Diagnostics.TruncatedRows)
}

func TestExtractNarrowHeaderIgnoresOverWideRow(t *testing.T) {
	g := grid(
		[]string{"M1", "", "M2"},
		[]string{"A1", "A2", "A3"},
		[]string{"Ana", "T", "S", "Tu", "", "AG", "ok", "ok"},
		[]string{"Bia", "T", "S", "Tu", "", "ok", "NA", "ok"},
		[]string{"Caio", "T", "S", "Tu", "", "ok", "ok", "AG", "", "", "", "", "", "x"},
	)
	res, err := RunGrid("turma.csv", g, internal.FormatCSV, DefaultOptions())
	require.NoError(t, err)

	var got []string
	for _, r := range res.Records {
		got = append(got, r.Student+"/"+r.Module+"/"+r.Activity)
	}
	assert.Equal(t, []string{"Ana/M1/A1", "Bia/M1/A2", "Caio/M2/A3"}, got)
}

func TestNamedIdentityNeverShiftsLabels(t *testing.T) {
	labels := Reconcile(grid(
		[]string{"Aluno", "M1", ""},
		[]string{"", "A1", "A2"},
	), ReconcileOptions{IdentityNames: DefaultIdentityAliases().Names()})
	ids := IdentityColumns{Student: 0, Team: -1, Supervisor: -1, Tutor: -1, LastAccess: -1, Addressing: internal.AddressByName}
	data := grid(
		[]string{"Eva", "NA", "AG", "", "", "", "x"},
		[]string{"Leo", "AG", "ok", "", "", "", "y"},
	)

	records, _ := Extract(data, labels, ids, DefaultExtractionMode())
	require.Len(t, records, 3)
	assert.Equal(t, "A1", records[0].Activity)
	assert.Equal(t, "A2", records[1].Activity)
	assert.Equal(t, "A1", records[2].Activity)
}
