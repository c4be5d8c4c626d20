package assets

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/untoldecay/dataplane/internal/apperr"
	"github.com/untoldecay/dataplane/internal/storage"
	sqlitestore "github.com/untoldecay/dataplane/internal/storage/sqlite"
	"github.com/untoldecay/dataplane/internal/types"
)

func newTestDashboardService(t *testing.T) (*DashboardService, *sqlitestore.SQLiteStorage, uuid.UUID) {
	t.Helper()
	store, err := sqlitestore.New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return &DashboardService{Store: store}, store, uuid.New()
}

func createMetric(t *testing.T, store *sqlitestore.SQLiteStorage, orgID uuid.UUID) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	id := uuid.New()
	m := types.MetricFile{
		ID:             id,
		Name:           "orders",
		OrganizationID: orgID,
		Content:        types.MetricYml{Name: "orders", SQL: "SELECT 1"},
		Verification:   types.VerificationNotVerified,
	}
	m.VersionHistory = types.NewVersionHistory(m.Content, m.CreatedAt)
	err := store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		return tx.CreateMetricFile(ctx, m)
	})
	require.NoError(t, err)
	return id
}

func TestCreateDashboardValidatesMetricRefsAndColumnSpans(t *testing.T) {
	svc, store, orgID := newTestDashboardService(t)
	metricID := createMetric(t, store, orgID)

	d, err := svc.Create(context.Background(), CreateDashboardInput{
		OrganizationID: orgID,
		Content: types.DashboardYml{
			Name: "sales overview",
			Rows: []types.DashboardRow{
				{Items: []types.DashboardItem{{ID: metricID, ColumnSpan: 12}}},
			},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 1, d.VersionHistory.Latest)

	links, err := store.UnderlyingDB().QueryContext(context.Background(),
		`SELECT metric_file_id FROM dashboard_metric_links WHERE dashboard_id = ?`, d.ID.String())
	require.NoError(t, err)
	defer links.Close()
	var count int
	for links.Next() {
		count++
	}
	require.Equal(t, 1, count)
}

func TestCreateDashboardRejectsBadColumnSpan(t *testing.T) {
	svc, store, orgID := newTestDashboardService(t)
	metricID := createMetric(t, store, orgID)

	_, err := svc.Create(context.Background(), CreateDashboardInput{
		OrganizationID: orgID,
		Content: types.DashboardYml{
			Name: "broken",
			Rows: []types.DashboardRow{
				{Items: []types.DashboardItem{{ID: metricID, ColumnSpan: 6}}},
			},
		},
	})
	require.Error(t, err)
	require.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestCreateDashboardAbortsOnUnknownMetric(t *testing.T) {
	svc, _, orgID := newTestDashboardService(t)

	_, err := svc.Create(context.Background(), CreateDashboardInput{
		OrganizationID: orgID,
		Content: types.DashboardYml{
			Name: "dangling",
			Rows: []types.DashboardRow{
				{Items: []types.DashboardItem{{ID: uuid.New(), ColumnSpan: 12}}},
			},
		},
	})
	require.Error(t, err)
	require.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestUpdateDashboardRebuildsMetricLinks(t *testing.T) {
	svc, store, orgID := newTestDashboardService(t)
	metricA := createMetric(t, store, orgID)
	metricB := createMetric(t, store, orgID)

	d, err := svc.Create(context.Background(), CreateDashboardInput{
		OrganizationID: orgID,
		Content: types.DashboardYml{
			Name: "v1",
			Rows: []types.DashboardRow{{Items: []types.DashboardItem{{ID: metricA, ColumnSpan: 12}}}},
		},
	})
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), UpdateDashboardInput{
		DashboardID: d.ID,
		FullYAML: &types.DashboardYml{
			Name: "v2",
			Rows: []types.DashboardRow{{Items: []types.DashboardItem{{ID: metricB, ColumnSpan: 12}}}},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 2, updated.VersionHistory.Latest)

	rows, err := store.UnderlyingDB().QueryContext(context.Background(),
		`SELECT metric_file_id FROM dashboard_metric_links WHERE dashboard_id = ?`, d.ID.String())
	require.NoError(t, err)
	defer rows.Close()
	var linked []string
	for rows.Next() {
		var id string
		require.NoError(t, rows.Scan(&id))
		linked = append(linked, id)
	}
	require.Equal(t, []string{metricB.String()}, linked)
}

func TestUpdateDashboardRestoreAppends(t *testing.T) {
	svc, store, orgID := newTestDashboardService(t)
	metricID := createMetric(t, store, orgID)

	d, err := svc.Create(context.Background(), CreateDashboardInput{
		OrganizationID: orgID,
		Content: types.DashboardYml{
			Name: "original",
			Rows: []types.DashboardRow{{Items: []types.DashboardItem{{ID: metricID, ColumnSpan: 12}}}},
		},
	})
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), UpdateDashboardInput{
		DashboardID: d.ID,
		FullYAML: &types.DashboardYml{
			Name: "renamed",
			Rows: []types.DashboardRow{{Items: []types.DashboardItem{{ID: metricID, ColumnSpan: 12}}}},
		},
	})
	require.NoError(t, err)

	v1 := 1
	restored, err := svc.Update(context.Background(), UpdateDashboardInput{
		DashboardID:      d.ID,
		RestoreToVersion: &v1,
	})
	require.NoError(t, err)
	require.Equal(t, "original", restored.Content.Name)
	require.Equal(t, 3, restored.VersionHistory.Latest)
}

func TestUpdateDashboardNotFound(t *testing.T) {
	svc, _, _ := newTestDashboardService(t)

	_, err := svc.Update(context.Background(), UpdateDashboardInput{
		DashboardID: uuid.New(),
		FullYAML:    &types.DashboardYml{Name: "x"},
	})
	require.Error(t, err)
	require.True(t, apperr.Is(err, apperr.KindNotFound))
}
