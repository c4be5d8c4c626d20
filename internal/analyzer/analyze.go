// Package analyzer implements the scope- and CTE-aware SQL walker
// It parses SQL via the real PostgreSQL grammar
// (github.com/pganalyze/pg_query_go) rather than hand-rolling a parser,
// and walks the resulting protobuf AST to bind aliases, classify tables,
// and detect vague references.
package analyzer

import (
	"fmt"
	"log/slog"
	"strings"

	pgquery "github.com/pganalyze/pg_query_go/v6"

	"github.com/untoldecay/dataplane/internal/logging"
)

// Dialect is a hint about the warehouse SQL dialect. pg_query_go always
// parses Postgres grammar; the hint is carried through for callers that
// need it for downstream execution and is not currently used to alter
// parsing behavior.
type Dialect string

const (
	DialectPostgres  Dialect = "postgres"
	DialectRedshift  Dialect = "redshift"
	DialectSnowflake Dialect = "snowflake"
	DialectBigQuery  Dialect = "bigquery"
)

// Analyzer performs stateless SQL analysis. It holds only the dialect
// hint; the counter for synthesizing derived-table identifiers lives in
// the per-call walker.
type Analyzer struct {
	dialect Dialect
}

func New(dialect Dialect) *Analyzer {
	return &Analyzer{dialect: dialect}
}

// Analyze parses query and returns its QuerySummary, or a *ParseError /
// *VagueReferences failure.
func (a *Analyzer) Analyze(query string) (*QuerySummary, error) {
	tree, err := pgquery.Parse(query)
	if err != nil {
		logging.For(logging.ComponentAnalyzer).Warn("sql parse failed", slog.String("error", err.Error()))
		return nil, &ParseError{Query: query, Err: err}
	}
	if len(tree.Stmts) == 0 {
		return &QuerySummary{}, nil
	}
	w := &walker{synthCounter: 0}
	root := newRootScope()

	var combined QuerySummary
	for _, raw := range tree.Stmts {
		sel := raw.GetStmt().GetSelectStmt()
		if sel == nil {
			// Non-SELECT top-level statement: nothing to analyze for base
			// tables; skip rather than fail, matching the analyzer's
			// conservative-not-fatal posture for anything outside its
			// documented scope.
			continue
		}
		summary, err := w.analyzeSelect(sel, root)
		if err != nil {
			return nil, err
		}
		combined.merge(summary)
	}

	return finalize(&combined)
}

// walker carries the mutable state needed across one Analyze call: a
// counter for synthesizing derived-table aliases.
type walker struct {
	synthCounter int
}

func (w *walker) nextDerivedName() string {
	w.synthCounter++
	return fmt.Sprintf("__derived_%d", w.synthCounter)
}

// analyzeSelect implements the per-SELECT resolution algorithm of spec
// §4.A: binding pass, deferred expression pass, set-operation handling.
func (w *walker) analyzeSelect(stmt *pgquery.SelectStmt, parent *scope) (*QuerySummary, error) {
	if stmt == nil {
		return &QuerySummary{}, nil
	}

	// Set operations (UNION/INTERSECT/EXCEPT): each side is analyzed in an
	// independent alias scope inheriting only the parent's CTE knowledge
	//.
	if stmt.GetOp() != pgquery.SetOperation_SETOP_NONE {
		var combined QuerySummary
		if stmt.GetLarg() != nil {
			ls, err := w.analyzeSelect(stmt.GetLarg(), parent.child())
			if err != nil {
				return nil, err
			}
			combined.merge(ls)
		}
		if stmt.GetRarg() != nil {
			rs, err := w.analyzeSelect(stmt.GetRarg(), parent.child())
			if err != nil {
				return nil, err
			}
			combined.merge(rs)
		}
		return &combined, nil
	}

	sc := parent.child()
	summary := &QuerySummary{}

	// WITH: register CTE names left-to-right so later CTEs in the same
	// block see earlier ones.
	if wc := stmt.GetWithClause(); wc != nil {
		for _, cteNode := range wc.GetCtes() {
			cte := cteNode.GetCommonTableExpr()
			if cte == nil {
				continue
			}
			cteSummary, err := w.analyzeSubquery(cte.GetCtequery(), sc)
			if err != nil {
				return nil, err
			}
			sc.registerCTE(cte.GetCtename(), cteSummary)
			summary.CTEs = append(summary.CTEs, cte.GetCtename())
			// Promote the CTE's own (already-promoted) base tables into
			// this level, and bubble its vague-reference candidates up to
			// the single global check.
			summary.Tables = append(summary.Tables, cteSummary.Tables...)
			summary.VagueColumns = append(summary.VagueColumns, cteSummary.VagueColumns...)
			summary.VagueTables = append(summary.VagueTables, cteSummary.VagueTables...)
		}
	}

	// Binding pass over FROM/JOIN.
	for _, item := range stmt.GetFromClause() {
		if err := w.bindFromItem(item, sc, summary); err != nil {
			return nil, err
		}
	}

	// Deferred expression pass: join ON quals were
	// already recorded during binding since a JoinExpr's Quals are only
	// reachable there; WHERE/GROUP BY/HAVING/projection are walked now
	// that every alias is registered.
	w.walkExprColumns(stmt.GetWhereClause(), sc, summary)
	for _, g := range stmt.GetGroupClause() {
		w.walkExprColumns(g, sc, summary)
	}
	w.walkExprColumns(stmt.GetHavingClause(), sc, summary)
	for _, t := range stmt.GetTargetList() {
		w.walkExprColumns(t, sc, summary)
	}
	for _, s := range stmt.GetSortClause() {
		w.walkExprColumns(s, sc, summary)
	}

	return summary, nil
}

// analyzeSubquery analyzes a CTE/derived-table body, which pg_query
// always represents as a SelectStmt node.
func (w *walker) analyzeSubquery(node *pgquery.Node, parent *scope) (*QuerySummary, error) {
	if node == nil {
		return &QuerySummary{}, nil
	}
	sel := node.GetSelectStmt()
	if sel == nil {
		return &QuerySummary{}, nil
	}
	return w.analyzeSelect(sel, parent)
}

// bindFromItem binds one FROM/JOIN factor:
// RangeVar (base table or CTE reference), RangeSubselect (derived
// table), or JoinExpr (recurse both sides, then record the join).
func (w *walker) bindFromItem(node *pgquery.Node, sc *scope, summary *QuerySummary) error {
	if node == nil {
		return nil
	}

	switch {
	case node.GetRangeVar() != nil:
		w.bindRangeVar(node.GetRangeVar(), sc, summary)
		return nil

	case node.GetRangeSubselect() != nil:
		return w.bindRangeSubselect(node.GetRangeSubselect(), sc, summary)

	case node.GetJoinExpr() != nil:
		return w.bindJoinExpr(node.GetJoinExpr(), sc, summary)

	default:
		// Table-valued functions and other exotic FROM items: nothing to
		// bind as a table reference; still walk for column refs inside
		// arguments (e.g. LATERAL function calls referencing earlier
		// aliases).
		w.walkExprColumns(node, sc, summary)
		return nil
	}
}

func (w *walker) bindRangeVar(rv *pgquery.RangeVar, sc *scope, summary *QuerySummary) {
	relname := rv.GetRelname()
	alias := relname
	if rv.GetAlias() != nil && rv.GetAlias().GetAliasname() != "" {
		alias = rv.GetAlias().GetAliasname()
	}

	if nested, ok := sc.lookupCTE(relname); ok && rv.GetSchemaname() == "" {
		sc.registerAlias(alias, binding{kind: TableCTE, table: TableRef{Kind: TableCTE, Name: relname, Alias: alias}, nested: nested})
		return
	}

	ref := TableRef{
		Kind:     TableBase,
		Database: rv.GetCatalogname(),
		Schema:   rv.GetSchemaname(),
		Name:     relname,
		Alias:    alias,
	}
	summary.Tables = append(summary.Tables, ref)
	sc.registerAlias(alias, binding{kind: TableBase, table: ref})
	if alias != relname {
		sc.registerAlias(relname, binding{kind: TableBase, table: ref})
	}
}

func (w *walker) bindRangeSubselect(rs *pgquery.RangeSubselect, sc *scope, summary *QuerySummary) error {
	alias := ""
	if rs.GetAlias() != nil {
		alias = rs.GetAlias().GetAliasname()
	}
	if alias == "" {
		alias = w.nextDerivedName()
	}

	nested, err := w.analyzeSubquery(rs.GetSubquery(), sc)
	if err != nil {
		return err
	}
	sc.registerAlias(alias, binding{kind: TableDerived, table: TableRef{Kind: TableDerived, Name: alias, Alias: alias}, nested: nested})
	// Promote base tables consumed by the derived table into this level
	//.
	summary.Tables = append(summary.Tables, nested.Tables...)
	summary.VagueColumns = append(summary.VagueColumns, nested.VagueColumns...)
	summary.VagueTables = append(summary.VagueTables, nested.VagueTables...)
	return nil
}

func (w *walker) bindJoinExpr(j *pgquery.JoinExpr, sc *scope, summary *QuerySummary) error {
	if err := w.bindFromItem(j.GetLarg(), sc, summary); err != nil {
		return err
	}
	if err := w.bindFromItem(j.GetRarg(), sc, summary); err != nil {
		return err
	}

	left := identifierOf(j.GetLarg())
	right := identifierOf(j.GetRarg())

	join := Join{Left: left, Right: right}
	switch {
	case j.GetIsNatural():
		join.Condition = "NATURAL"
	case j.GetQuals() != nil:
		join.Condition = deparseSimpleExpr(j.GetQuals())
		w.walkExprColumns(j.GetQuals(), sc, summary)
	case len(j.GetUsingClause()) > 0:
		cols := make([]string, 0, len(j.GetUsingClause()))
		for _, c := range j.GetUsingClause() {
			if s := c.GetString_(); s != nil {
				cols = append(cols, s.GetSval())
				summary.addVagueColumn(s.GetSval())
			}
		}
		join.Condition = "USING(" + strings.Join(cols, ", ") + ")"
	case j.GetJointype() == pgquery.JoinType_JOIN_INNER && left != "" && right != "" && j.GetQuals() == nil && len(j.GetUsingClause()) == 0 && !j.GetIsNatural():
		join.Condition = "CROSS JOIN"
	default:
		join.Condition = "UNKNOWN_CONSTRAINT"
	}
	summary.Joins = append(summary.Joins, join)
	return nil
}

// identifierOf returns the alias/name under which a FROM-factor was
// registered, used only for labeling Join entries.
func identifierOf(node *pgquery.Node) string {
	if node == nil {
		return ""
	}
	if rv := node.GetRangeVar(); rv != nil {
		if rv.GetAlias() != nil && rv.GetAlias().GetAliasname() != "" {
			return rv.GetAlias().GetAliasname()
		}
		return rv.GetRelname()
	}
	if rs := node.GetRangeSubselect(); rs != nil && rs.GetAlias() != nil {
		return rs.GetAlias().GetAliasname()
	}
	if j := node.GetJoinExpr(); j != nil {
		return identifierOf(j.GetLarg()) + "/" + identifierOf(j.GetRarg())
	}
	return ""
}

// finalize dedupes vague lists, filters out now-known identifiers,
// dedupes tables by canonical key, and fails on leftover vagueness.
// Nested base tables were already promoted into the parent summary
// while binding.
func finalize(s *QuerySummary) (*QuerySummary, error) {
	known := map[string]bool{}
	for _, t := range s.Tables {
		known[t.Name] = true
		known[t.Alias] = true
	}
	for _, c := range s.CTEs {
		known[c] = true
	}

	vagueTables := make([]string, 0, len(s.VagueTables))
	for _, t := range dedupeSortedStrings(s.VagueTables) {
		if !known[t] {
			vagueTables = append(vagueTables, t)
		}
	}
	vagueColumns := dedupeSortedStrings(s.VagueColumns)

	s.Tables = dedupeTables(s.Tables)
	s.CTEs = dedupeSortedStrings(s.CTEs)
	s.VagueColumns = nil
	s.VagueTables = nil

	if len(vagueColumns) > 0 || len(vagueTables) > 0 {
		logging.For(logging.ComponentAnalyzer).Debug("vague references found",
			slog.Any("columns", vagueColumns), slog.Any("tables", vagueTables))
		return nil, &VagueReferences{Columns: vagueColumns, Tables: vagueTables, Summary: s}
	}

	return s, nil
}
