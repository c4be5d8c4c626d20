package analyzer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestAnalyzer() *Analyzer {
	return New(DialectPostgres)
}

func TestAnalyzeSimpleSelectResolvesBaseTable(t *testing.T) {
	summary, err := newTestAnalyzer().Analyze("select o.id, o.total from orders o")
	require.NoError(t, err)
	require.Len(t, summary.Tables, 1)
	require.Equal(t, TableBase, summary.Tables[0].Kind)
	require.Equal(t, "orders", summary.Tables[0].Name)
	require.Equal(t, "o", summary.Tables[0].Alias)
}

func TestAnalyzeQualifiedSchemaIsPreserved(t *testing.T) {
	summary, err := newTestAnalyzer().Analyze("select a.id from analytics.orders a")
	require.NoError(t, err)
	require.Len(t, summary.Tables, 1)
	require.Equal(t, "analytics", summary.Tables[0].Schema)
	require.Equal(t, "analytics.orders", summary.Tables[0].Canonical())
}

func TestAnalyzeUnqualifiedColumnIsVague(t *testing.T) {
	_, err := newTestAnalyzer().Analyze("select user_id, event_time from events")
	require.Error(t, err)

	var vague *VagueReferences
	require.True(t, errors.As(err, &vague))
	require.Contains(t, vague.Columns, "user_id")
	require.Contains(t, vague.Columns, "event_time")
}

func TestAnalyzeVagueReferencesCarriesBoundSummary(t *testing.T) {
	_, err := newTestAnalyzer().Analyze("select user_id from events")

	var vague *VagueReferences
	require.True(t, errors.As(err, &vague))
	require.NotNil(t, vague.Summary)
	require.Len(t, vague.Summary.Tables, 1)
	require.Equal(t, "events", vague.Summary.Tables[0].Name)
}

func TestAnalyzeQualifiedColumnsAreNotVague(t *testing.T) {
	summary, err := newTestAnalyzer().Analyze("select e.user_id, e.event_time from events e")
	require.NoError(t, err)
	require.Empty(t, summary.VagueColumns)
}

func TestAnalyzeJoinBindsBothSidesAndRecordsCondition(t *testing.T) {
	summary, err := newTestAnalyzer().Analyze(
		"select o.id from orders o join customers c on o.customer_id = c.id")
	require.NoError(t, err)
	require.Len(t, summary.Tables, 2)
	require.Len(t, summary.Joins, 1)
	require.Contains(t, summary.Joins[0].Condition, "customer_id")
}

func TestAnalyzeUsingJoinColumnsAreVague(t *testing.T) {
	_, err := newTestAnalyzer().Analyze(
		"select * from orders join customers using (customer_id)")
	var vague *VagueReferences
	require.True(t, errors.As(err, &vague))
	require.Contains(t, vague.Columns, "customer_id")
}

func TestAnalyzeCTEIsVisibleToLaterCTEAndMainBody(t *testing.T) {
	summary, err := newTestAnalyzer().Analyze(`
		with recent as (select o.id, o.total from orders o),
		     big as (select r.id from recent r where r.total > 100)
		select b.id from big b`)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"recent", "big"}, summary.CTEs)
	require.Len(t, summary.Tables, 1)
	require.Equal(t, "orders", summary.Tables[0].Name)
}

func TestAnalyzeCTENameIsNotAVagueTable(t *testing.T) {
	summary, err := newTestAnalyzer().Analyze(`
		with recent as (select o.id from orders o)
		select r.id from recent r`)
	require.NoError(t, err)
	require.Empty(t, summary.VagueTables)
}

func TestAnalyzeDerivedTableGetsSynthesizedNameWhenUnaliased(t *testing.T) {
	summary, err := newTestAnalyzer().Analyze(
		"select * from (select o.id from orders o) sub, (select c.id from customers c)")
	require.NoError(t, err)
	require.Len(t, summary.Tables, 2)
	require.ElementsMatch(t, []string{"orders", "customers"}, []string{summary.Tables[0].Name, summary.Tables[1].Name})
}

func TestAnalyzeSetOperationAnalyzesBothBranchesIndependently(t *testing.T) {
	summary, err := newTestAnalyzer().Analyze(
		"select a.id from orders a union select b.id from returns b")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"orders", "returns"},
		[]string{summary.Tables[0].Name, summary.Tables[1].Name})
}

func TestAnalyzeParseFailureReturnsParseError(t *testing.T) {
	_, err := newTestAnalyzer().Analyze("select from where")
	require.Error(t, err)
	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
}

func TestAnalyzeEmptyStatementListReturnsEmptySummary(t *testing.T) {
	summary, err := newTestAnalyzer().Analyze("")
	require.NoError(t, err)
	require.Empty(t, summary.Tables)
}

func TestAnalyzeDuplicateBaseTableReferenceIsDeduped(t *testing.T) {
	summary, err := newTestAnalyzer().Analyze(
		"select o1.id from orders o1, orders o2 where o1.id = o2.id")
	require.NoError(t, err)
	require.Len(t, summary.Tables, 1, "same canonical table referenced under two aliases dedupes to one")
}

func TestRewriteWrapsFilteredTableInSyntheticCTE(t *testing.T) {
	out, err := newTestAnalyzer().Rewrite(
		"select id from orders where total > 10",
		FilterMap{"orders": "org_id = 1"})
	require.NoError(t, err)
	require.Contains(t, out, "filtered_orders")
	require.Contains(t, out, "org_id = 1")
}

func TestRewriteLeavesQueryUntouchedWithoutMatchingFilters(t *testing.T) {
	query := "select id from orders"
	out, err := newTestAnalyzer().Rewrite(query, FilterMap{"customers": "org_id = 1"})
	require.NoError(t, err)
	require.NotContains(t, out, "filtered_")
}

func TestRewriteNoFiltersReturnsDeparsedQueryUnchanged(t *testing.T) {
	out, err := newTestAnalyzer().Rewrite("select id from orders", nil)
	require.NoError(t, err)
	require.Contains(t, out, "orders")
}
