package pipeline

import (
	"pendencias/internal"
	"pendencias/internal/util"
)

const fuzzyIdentityThreshold = 0.85

// IdentityColumns holds the column index of each identity role, -1 when the
// role is absent from the file.
type IdentityColumns struct {
	Student    int
	Team       int
	Supervisor int
	Tutor      int
	LastAccess int
	Addressing internal.IdentityAddressing
}

type IdentityAliases struct {
	Student    []string
	Team       []string
	Supervisor []string
	Tutor      []string
	LastAccess []string
	// Positions is the fallback layout: student, team, supervisor, tutor,
	// last access.
	Positions []int
}

func DefaultIdentityAliases() IdentityAliases {
	return IdentityAliases{
		Student:    []string{"Aluno", "Estudante", "Student"},
		Team:       []string{"Equipe", "Turma", "Team"},
		Supervisor: []string{"Supervisor", "Supervisora"},
		Tutor:      []string{"Tutor", "Tutora"},
		LastAccess: []string{"Último acesso na plataforma", "Último acesso", "Last access"},
		Positions:  []int{0, 1, 2, 3, 4},
	}
}

// Names lists every alias, used to keep identity headers out of module forward-fill.
func (a IdentityAliases) Names() []string {
	out := make([]string, 0, len(a.Student)+len(a.Team)+len(a.Supervisor)+len(a.Tutor)+len(a.LastAccess))
	out = append(out, a.Student...)
	out = append(out, a.Team...)
	out = append(out, a.Supervisor...)
	out = append(out, a.Tutor...)
	out = append(out, a.LastAccess...)
	return out
}

func (ic IdentityColumns) roles() []int {
	return []int{ic.Student, ic.Team, ic.Supervisor, ic.Tutor, ic.LastAccess}
}

// Contains reports whether column i is an identity column.
func (ic IdentityColumns) Contains(i int) bool {
	for _, idx := range ic.roles() {
		if idx >= 0 && idx == i {
			return true
		}
	}
	return false
}

// Count is the number of distinct identity columns.
func (ic IdentityColumns) Count() int {
	seen := map[int]struct{}{}
	for _, idx := range ic.roles() {
		if idx >= 0 {
			seen[idx] = struct{}{}
		}
	}
	return len(seen)
}

// PositionalIdentity lays identity roles out by fixed index.
func PositionalIdentity(positions []int) IdentityColumns {
	at := func(i int) int {
		if i < len(positions) {
			return positions[i]
		}
		return -1
	}
	return IdentityColumns{
		Student:    at(0),
		Team:       at(1),
		Supervisor: at(2),
		Tutor:      at(3),
		LastAccess: at(4),
		Addressing: internal.AddressByPosition,
	}
}

// ResolveIdentity looks identity roles up by header name and falls back to the
// configured positions when no header matches any alias. Addressing is never
// mixed within one file.
func ResolveIdentity(header internal.Grid, aliases IdentityAliases) IdentityColumns {
	if len(header) == 0 {
		return PositionalIdentity(aliases.Positions)
	}

	// The activity row names identity columns; exports that merge identity
	// headers vertically leave it blank and name them in the first row.
	rows := []internal.Row{header[len(header)-1]}
	if len(header) > 1 {
		rows = append(rows, header[0])
	}
	width := header.Width()
	names := make([]string, width)
	for i := 0; i < width; i++ {
		for _, row := range rows {
			if v := row.At(i).Value(); !util.IsPlaceholder(v) {
				names[i] = util.NormalizeHeader(v)
				break
			}
		}
	}

	used := map[int]struct{}{}
	ic := IdentityColumns{Addressing: internal.AddressByName}
	ic.Student = findIdentity(names, aliases.Student, used)
	ic.Team = findIdentity(names, aliases.Team, used)
	ic.Supervisor = findIdentity(names, aliases.Supervisor, used)
	ic.Tutor = findIdentity(names, aliases.Tutor, used)
	ic.LastAccess = findIdentity(names, aliases.LastAccess, used)

	if ic.Count() == 0 {
		return PositionalIdentity(aliases.Positions)
	}
	return ic
}

func findIdentity(names []string, aliases []string, used map[int]struct{}) int {
	for _, alias := range aliases {
		want := util.NormalizeHeader(alias)
		for i, name := range names {
			if _, taken := used[i]; taken || name == "" {
				continue
			}
			if name == want {
				used[i] = struct{}{}
				return i
			}
		}
	}

	best, bestScore := -1, 0.0
	for _, alias := range aliases {
		want := util.NormalizeHeader(alias)
		for i, name := range names {
			if _, taken := used[i]; taken || name == "" {
				continue
			}
			if score := util.DiceCoefficient(name, want); score >= fuzzyIdentityThreshold && score > bestScore {
				best, bestScore = i, score
			}
		}
	}
	if best >= 0 {
		used[best] = struct{}{}
	}
	return best
}
