package analyzer

import "sort"

// TableKind distinguishes a physically-present warehouse table from a
// lexically-scoped name.
type TableKind string

const (
	TableBase    TableKind = "base"
	TableCTE     TableKind = "cte"
	TableDerived TableKind = "derived"
)

// TableRef identifies one table consumed by a query.
type TableRef struct {
	Kind     TableKind
	Database string
	Schema   string
	Name     string
	Alias    string
}

// Canonical is the deduplication key used when promoting base tables
//: "db.schema.table" when a database is known,
// else "schema.table".
func (t TableRef) Canonical() string {
	if t.Database != "" {
		return t.Database + "." + t.Schema + "." + t.Name
	}
	if t.Schema != "" {
		return t.Schema + "." + t.Name
	}
	return t.Name
}

// Join is one join constraint recorded between two FROM-clause factors.
// Condition holds the literal ON expression text, a "USING(col…)"
// synthetic form, a NATURAL/CROSS sentinel, or "UNKNOWN_CONSTRAINT".
type Join struct {
	Left      string
	Right     string
	Condition string
}

// QuerySummary is the result of analyzing one query.
type QuerySummary struct {
	Tables       []TableRef
	CTEs         []string
	Joins        []Join
	VagueColumns []string
	VagueTables  []string
}

func (s *QuerySummary) addVagueColumn(c string) {
	s.VagueColumns = append(s.VagueColumns, c)
}

func (s *QuerySummary) addVagueTable(t string) {
	s.VagueTables = append(s.VagueTables, t)
}

// merge folds a child summary's tables/ctes/joins/vague-lists into s,
// used when unioning set-operation branches.
func (s *QuerySummary) merge(child *QuerySummary) {
	s.Tables = append(s.Tables, child.Tables...)
	s.CTEs = append(s.CTEs, child.CTEs...)
	s.Joins = append(s.Joins, child.Joins...)
	s.VagueColumns = append(s.VagueColumns, child.VagueColumns...)
	s.VagueTables = append(s.VagueTables, child.VagueTables...)
}

// dedupeSortedStrings collapses and sorts a vague-reference list (spec
// §4.A "Finalization": "Collapse vague lists (sort, deduplicate)").
func dedupeSortedStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

// dedupeTables collapses table refs by canonical key, keeping the first
// occurrence's metadata (first-wins, matching the deployment dedupe rule
// in spirit).
func dedupeTables(in []TableRef) []TableRef {
	seen := make(map[string]bool, len(in))
	out := make([]TableRef, 0, len(in))
	for _, t := range in {
		key := t.Canonical()
		if !seen[key] {
			seen[key] = true
			out = append(out, t)
		}
	}
	return out
}
