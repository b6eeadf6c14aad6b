package pipeline

import (
	"sort"

	"github.com/montanaflynn/stats"

	"pendencias/internal"
)

type Count struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type Distribution struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Max    float64 `json:"max"`
}

type Summary struct {
	Total      int          `json:"total"`
	Students   int          `json:"students"`
	Modules    int          `json:"modules"`
	Tutors     int          `json:"tutors"`
	ByTutor    []Count      `json:"byTutor"`
	ByModule   []Count      `json:"byModule"`
	ByStatus   []Count      `json:"byStatus"`
	PerStudent Distribution `json:"perStudent"`
}

// Summarize aggregates records for reports. Tutors and statuses are ordered
// by name; modules by count (most critical first) and cut to topModules when
// topModules > 0.
func Summarize(records []internal.PendingRecord, topModules int) Summary {
	byTutor := map[string]int{}
	byModule := map[string]int{}
	byStatus := map[string]int{}
	byStudent := map[string]int{}
	for _, r := range records {
		byTutor[r.Tutor]++
		byModule[r.Module]++
		byStatus[r.Status.Code()]++
		byStudent[r.Student]++
	}

	modules := sortedCounts(byModule)
	sort.SliceStable(modules, func(i, j int) bool { return modules[i].Count > modules[j].Count })
	if topModules > 0 && len(modules) > topModules {
		modules = modules[:topModules]
	}

	perStudent := make(stats.Float64Data, 0, len(byStudent))
	for _, n := range byStudent {
		perStudent = append(perStudent, float64(n))
	}

	return Summary{
		Total:      len(records),
		Students:   len(byStudent),
		Modules:    len(byModule),
		Tutors:     len(byTutor),
		ByTutor:    sortedCounts(byTutor),
		ByModule:   modules,
		ByStatus:   sortedCounts(byStatus),
		PerStudent: distribution(perStudent),
	}
}

func distribution(data stats.Float64Data) Distribution {
	if data.Len() == 0 {
		return Distribution{}
	}
	mean, _ := stats.Mean(data)
	median, _ := stats.Median(data)
	highest, _ := stats.Max(data)
	return Distribution{Mean: mean, Median: median, Max: highest}
}

func sortedCounts(m map[string]int) []Count {
	out := make([]Count, 0, len(m))
	for name, n := range m {
		out = append(out, Count{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

type FilterOptions struct {
	Tutors   []string
	Modules  []string
	Statuses []internal.PendingStatus
}

// Filter keeps the records matching every non-empty option, preserving order.
func Filter(records []internal.PendingRecord, opts FilterOptions) []internal.PendingRecord {
	tutors := toSet(opts.Tutors)
	modules := toSet(opts.Modules)
	statuses := map[internal.PendingStatus]struct{}{}
	for _, s := range opts.Statuses {
		statuses[s] = struct{}{}
	}

	out := make([]internal.PendingRecord, 0, len(records))
	for _, r := range records {
		if !inSet(tutors, r.Tutor) || !inSet(modules, r.Module) {
			continue
		}
		if len(statuses) > 0 {
			if _, ok := statuses[r.Status]; !ok {
				continue
			}
		}
		out = append(out, r)
	}
	return out
}

func toSet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[v] = struct{}{}
	}
	return out
}

func inSet(set map[string]struct{}, v string) bool {
	if len(set) == 0 {
		return true
	}
	_, ok := set[v]
	return ok
}
