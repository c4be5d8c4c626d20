package analyzer

import (
	pgquery "github.com/pganalyze/pg_query_go/v6"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// walkAllNodes generically visits every *pgquery.Node reachable from n,
// using protobuf reflection rather than a hand-enumerated switch over
// PostgreSQL's several dozen expression node kinds (CaseExpr, CoalesceExpr,
// FuncCall, TypeCast, A_ArrayExpr, RowExpr, …). pg_query_go ships no
// visitor of its own; reflecting over populated message fields — which
// transparently includes the set member of a oneof — finds every nested
// Node without the walker having to know each kind's shape in advance.
// visit returns false to stop descending from that node (used to hand
// SubLink/ColumnRef handling back to the caller).
func walkAllNodes(n *pgquery.Node, visit func(*pgquery.Node) bool) {
	if n == nil {
		return
	}
	if !visit(n) {
		return
	}
	walkChildren(n.ProtoReflect(), visit)
}

func walkChildren(m protoreflect.Message, visit func(*pgquery.Node) bool) {
	m.Range(func(fd protoreflect.FieldDescriptor, v protoreflect.Value) bool {
		if fd.Kind() != protoreflect.MessageKind || fd.IsMap() {
			return true
		}
		if fd.IsList() {
			list := v.List()
			for i := 0; i < list.Len(); i++ {
				walkValue(list.Get(i).Message(), visit)
			}
			return true
		}
		walkValue(v.Message(), visit)
		return true
	})
}

func walkValue(m protoreflect.Message, visit func(*pgquery.Node) bool) {
	if node, ok := m.Interface().(*pgquery.Node); ok {
		walkAllNodes(node, visit)
		return
	}
	walkChildren(m, visit)
}

// walkExprColumns visits every column
// reference reachable from an expression subtree (WHERE, HAVING, GROUP
// BY, projection, ORDER BY) and resolves it against the current scope,
// descending into scalar subqueries in a fresh scope (step 5).
func (w *walker) walkExprColumns(node *pgquery.Node, sc *scope, summary *QuerySummary) {
	if node == nil {
		return
	}
	walkAllNodes(node, func(n *pgquery.Node) bool {
		if cr := n.GetColumnRef(); cr != nil {
			w.resolveColumnRef(cr, sc, summary)
			return false
		}
		if sl := n.GetSubLink(); sl != nil {
			nested, err := w.analyzeSubquery(sl.GetSubselect(), sc.child())
			if err == nil {
				summary.Tables = append(summary.Tables, nested.Tables...)
				summary.VagueColumns = append(summary.VagueColumns, nested.VagueColumns...)
				summary.VagueTables = append(summary.VagueTables, nested.VagueTables...)
			}
			return false
		}
		return true
	})
}

// resolveColumnRef: "t.c" resolves via the
// current alias map; an unresolvable qualifier is vague, and a bare
// column is conservatively treated as vague.
func (w *walker) resolveColumnRef(cr *pgquery.ColumnRef, sc *scope, summary *QuerySummary) {
	fields := cr.GetFields()
	if len(fields) == 0 {
		return
	}
	for _, f := range fields {
		if f.GetAStar() != nil {
			return // "*" or "t.*" carries no column name to flag.
		}
	}

	if len(fields) == 1 {
		if s := fields[0].GetString_(); s != nil {
			summary.addVagueColumn(s.GetSval())
		}
		return
	}

	qualifier := ""
	if s := fields[0].GetString_(); s != nil {
		qualifier = s.GetSval()
	}
	if qualifier == "" {
		return
	}
	if _, ok := sc.resolveQualifier(qualifier); !ok {
		summary.addVagueTable(qualifier)
	}
}
