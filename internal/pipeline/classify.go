package pipeline

import (
	"strings"

	"pendencias/internal"
	"pendencias/internal/util"
)

var (
	DefaultExclusionTokens = []string{"NOTA", "TOTAL", "MEDIA", "AVERAGE", "GRADE", "FREQUENCIA", "ATTENDANCE", "PRESENCA", "SESSOES", "SESSIONS", "ENCONTROS"}
	DefaultMissingTokens   = []string{"NAN", "N/A"}
)

type ClassifierPolicy struct {
	// ExclusionTokens mark summary columns (grades, totals, attendance) whose
	// values are never pending activities. They match whole words of the label.
	ExclusionTokens []string
	// TreatBlankAsPending counts blank cells and MissingTokens as NOT_DONE.
	TreatBlankAsPending bool
	MissingTokens       []string
}

func DefaultClassifierPolicy() ClassifierPolicy {
	return ClassifierPolicy{ExclusionTokens: DefaultExclusionTokens, MissingTokens: DefaultMissingTokens}
}

// Classify decides whether a cell is a pending item. It is pure and total:
// ok is false for every cell that does not produce a record.
func Classify(cell internal.Cell, label internal.ColumnLabel, policy ClassifierPolicy) (internal.PendingStatus, bool) {
	if Excluded(label, policy) {
		return "", false
	}

	if cell.IsBlank() {
		if policy.TreatBlankAsPending {
			return internal.StatusNotDone, true
		}
		return "", false
	}

	value := strings.ToUpper(strings.TrimSpace(cell.Value()))
	switch value {
	case "AG":
		return internal.StatusAwaiting, true
	case "NA":
		return internal.StatusNotDone, true
	}

	if policy.TreatBlankAsPending && isMissingToken(value, policy.MissingTokens) {
		return internal.StatusNotDone, true
	}
	return "", false
}

// Excluded reports columns that are skipped whatever their values: blank or
// placeholder activities and summary columns.
func Excluded(label internal.ColumnLabel, policy ClassifierPolicy) bool {
	if util.IsPlaceholder(label.Activity) {
		return true
	}
	return util.ContainsAny(label.Activity, policy.ExclusionTokens)
}

func isMissingToken(value string, tokens []string) bool {
	for _, t := range tokens {
		if strings.EqualFold(value, strings.TrimSpace(t)) {
			return true
		}
	}
	return false
}
