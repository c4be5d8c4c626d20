package analyzer

import (
	"fmt"
	"strings"

	pgquery "github.com/pganalyze/pg_query_go/v6"
)

// FilterMap maps a base-table name to a raw SQL boolean expression that
// restricts it, the input to the row-level filter rewrite.
type FilterMap map[string]string

type pendingFilteredCTE struct {
	cteName           string
	qualifiedOriginal string
	filterExpr        string
}

// Rewrite implements the row-level filter rewrite: every
// base-table reference whose canonical name is a key of filters is routed
// through a synthesized `filtered_<alias> AS (SELECT * FROM … WHERE …)`
// CTE. Tables referenced inside existing user-defined CTE bodies are
// rewritten too, with their filtered CTEs declared first (declaration
// order requirement, spec step 2 / testable scenario S3).
func (a *Analyzer) Rewrite(query string, filters FilterMap) (string, error) {
	tree, err := pgquery.Parse(query)
	if err != nil {
		return "", &ParseError{Query: query, Err: err}
	}
	if len(filters) == 0 || len(tree.Stmts) == 0 {
		return pgquery.Deparse(tree)
	}

	sel := tree.Stmts[0].GetStmt().GetSelectStmt()
	if sel == nil {
		return pgquery.Deparse(tree)
	}

	cteNames := collectAllCTENames(sel)

	order := make([]string, 0)
	byKey := make(map[string]*pendingFilteredCTE)

	// Main body first, then each existing CTE body in declaration order
	// (spec step 2's ordering requirement).
	bodies := bodiesOf(sel)
	for _, b := range bodies {
		applyFilterPlan(mainBodyNodes(b), filters, cteNames, &order, byKey)
	}
	if wc := sel.GetWithClause(); wc != nil {
		for _, c := range wc.GetCtes() {
			cte := c.GetCommonTableExpr()
			if cte == nil {
				continue
			}
			applyFilterPlan([]*pgquery.Node{cte.GetCtequery()}, filters, cteNames, &order, byKey)
		}
	}

	if len(order) == 0 {
		return pgquery.Deparse(tree)
	}

	newCtes := make([]*pgquery.Node, 0, len(order))
	for _, key := range order {
		entry := byKey[key]
		fragment := fmt.Sprintf("SELECT * FROM %s WHERE %s", entry.qualifiedOriginal, entry.filterExpr)
		parsed, err := pgquery.Parse(fragment)
		if err != nil || len(parsed.Stmts) == 0 {
			return "", &ParseError{Query: fragment, Err: err}
		}
		newCtes = append(newCtes, &pgquery.Node{
			Node: &pgquery.Node_CommonTableExpr{
				CommonTableExpr: &pgquery.CommonTableExpr{
					Ctename:  entry.cteName,
					Ctequery: parsed.Stmts[0].GetStmt(),
				},
			},
		})
	}

	if sel.GetWithClause() == nil {
		sel.WithClause = &pgquery.WithClause{}
	}
	sel.WithClause.Ctes = append(newCtes, sel.WithClause.GetCtes()...)

	return pgquery.Deparse(tree)
}

// bodiesOf flattens a set-operation chain into its leaf SELECTs so the
// filter plan walks every branch, not just the outermost node (which, for
// a set operation, carries no FromClause of its own).
func bodiesOf(sel *pgquery.SelectStmt) []*pgquery.SelectStmt {
	if sel.GetOp() == pgquery.SetOperation_SETOP_NONE {
		return []*pgquery.SelectStmt{sel}
	}
	var out []*pgquery.SelectStmt
	if sel.GetLarg() != nil {
		out = append(out, bodiesOf(sel.GetLarg())...)
	}
	if sel.GetRarg() != nil {
		out = append(out, bodiesOf(sel.GetRarg())...)
	}
	return out
}

// mainBodyNodes returns the child nodes of one SELECT body that may
// contain base-table references, deliberately excluding its own
// WithClause (CTE bodies are walked separately so cross-CTE declaration
// order can be controlled).
func mainBodyNodes(sel *pgquery.SelectStmt) []*pgquery.Node {
	var nodes []*pgquery.Node
	nodes = append(nodes, sel.GetFromClause()...)
	if sel.GetWhereClause() != nil {
		nodes = append(nodes, sel.GetWhereClause())
	}
	nodes = append(nodes, sel.GetGroupClause()...)
	if sel.GetHavingClause() != nil {
		nodes = append(nodes, sel.GetHavingClause())
	}
	nodes = append(nodes, sel.GetTargetList()...)
	nodes = append(nodes, sel.GetSortClause()...)
	return nodes
}

func collectAllCTENames(sel *pgquery.SelectStmt) map[string]bool {
	names := map[string]bool{}
	walkAllNodes(&pgquery.Node{Node: &pgquery.Node_SelectStmt{SelectStmt: sel}}, func(n *pgquery.Node) bool {
		if cte := n.GetCommonTableExpr(); cte != nil {
			names[cte.GetCtename()] = true
		}
		return true
	})
	return names
}

// applyFilterPlan walks nodes collecting every RangeVar, assigns a stable
// filtered_<alias> CTE name the first time a matching table/alias pair is
// seen (spec step 1/3), and mutates every matching RangeVar in place to
// reference that CTE.
func applyFilterPlan(nodes []*pgquery.Node, filters FilterMap, cteNames map[string]bool, order *[]string, byKey map[string]*pendingFilteredCTE) {
	for _, n := range nodes {
		walkAllNodes(n, func(x *pgquery.Node) bool {
			rv := x.GetRangeVar()
			if rv == nil {
				return true
			}
			relname := rv.GetRelname()
			if rv.GetSchemaname() == "" && cteNames[relname] {
				return true // reference to a CTE, not a base table
			}
			filterExpr, ok := filters[relname]
			if !ok {
				return true
			}

			aliasKey := relname
			hadAlias := rv.GetAlias() != nil && rv.GetAlias().GetAliasname() != ""
			if hadAlias {
				aliasKey = rv.GetAlias().GetAliasname()
			}

			if _, exists := byKey[aliasKey]; !exists {
				byKey[aliasKey] = &pendingFilteredCTE{
					cteName:           "filtered_" + aliasKey,
					qualifiedOriginal: qualifiedName(rv),
					filterExpr:        filterExpr,
				}
				*order = append(*order, aliasKey)
			}

			entry := byKey[aliasKey]
			rv.Relname = entry.cteName
			rv.Schemaname = ""
			rv.Catalogname = ""
			if !hadAlias {
				rv.Alias = &pgquery.Alias{Aliasname: aliasKey}
			}
			return true
		})
	}
}

func qualifiedName(rv *pgquery.RangeVar) string {
	var parts []string
	if rv.GetCatalogname() != "" {
		parts = append(parts, rv.GetCatalogname())
	}
	if rv.GetSchemaname() != "" {
		parts = append(parts, rv.GetSchemaname())
	}
	parts = append(parts, rv.GetRelname())
	return strings.Join(parts, ".")
}
