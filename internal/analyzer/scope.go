package analyzer

// binding records what one FROM-clause alias resolves to within the
// scope that introduced it.
type binding struct {
	kind    TableKind
	table   TableRef // populated for base/cte bindings
	nested  *QuerySummary // populated for derived/cte bindings, for promotion
}

// scope is one stack frame of the lexical scope model. cteNames is
// cumulative (inherited from every enclosing WITH level, per spec's
// "lexical, leftward-visible within a WITH block"); aliases is local to
// this FROM/JOIN binding pass only.
type scope struct {
	parent   *scope
	cteNames map[string]*QuerySummary // cte name -> its own analyzed summary, for promotion
	aliases  map[string]binding
}

func newRootScope() *scope {
	return &scope{cteNames: map[string]*QuerySummary{}, aliases: map[string]binding{}}
}

// child opens a fresh alias scope (derived subquery, set-operation
// branch, scalar subquery) that inherits only CTE knowledge.
func (s *scope) child() *scope {
	inherited := make(map[string]*QuerySummary, len(s.cteNames))
	for k, v := range s.cteNames {
		inherited[k] = v
	}
	return &scope{parent: s, cteNames: inherited, aliases: map[string]binding{}}
}

func (s *scope) registerCTE(name string, summary *QuerySummary) {
	s.cteNames[name] = summary
}

func (s *scope) lookupCTE(name string) (*QuerySummary, bool) {
	v, ok := s.cteNames[name]
	return v, ok
}

func (s *scope) registerAlias(alias string, b binding) {
	s.aliases[alias] = b
}

// resolveQualifier looks up a table/cte/alias qualifier against the
// current level's alias map only — aliases do not leak across scope
// levels.
func (s *scope) resolveQualifier(name string) (binding, bool) {
	b, ok := s.aliases[name]
	return b, ok
}
