package analyzer

import (
	"strings"

	pgquery "github.com/pganalyze/pg_query_go/v6"
)

// deparseSimpleExpr renders a join condition expression back to SQL text
// for storage on a Join.
// pg_query_go exposes deparsing only for whole statements, so the
// expression is spliced into a throwaway "SELECT 1 WHERE …" skeleton and
// the wrapper is stripped back off.
func deparseSimpleExpr(expr *pgquery.Node) string {
	if expr == nil {
		return ""
	}
	skeleton, err := pgquery.Parse("SELECT 1 WHERE 1 = 1")
	if err != nil || len(skeleton.Stmts) == 0 {
		return "<expr>"
	}
	sel := skeleton.Stmts[0].GetStmt().GetSelectStmt()
	if sel == nil {
		return "<expr>"
	}
	sel.WhereClause = expr

	out, err := pgquery.Deparse(skeleton)
	if err != nil {
		return "<expr>"
	}
	const prefix = "SELECT 1 WHERE "
	if strings.HasPrefix(out, prefix) {
		return strings.TrimSuffix(strings.TrimSpace(out[len(prefix):]), ";")
	}
	return out
}
