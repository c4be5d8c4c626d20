package assets

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/untoldecay/dataplane/internal/analyzer"
	"github.com/untoldecay/dataplane/internal/apperr"
	"github.com/untoldecay/dataplane/internal/catalog"
	"github.com/untoldecay/dataplane/internal/storage"
	sqlitestore "github.com/untoldecay/dataplane/internal/storage/sqlite"
	"github.com/untoldecay/dataplane/internal/types"
)

func newTestMetricService(t *testing.T) (*MetricService, *sqlitestore.SQLiteStorage, *catalog.Fake, uuid.UUID, uuid.UUID, uuid.UUID) {
	t.Helper()
	store, err := sqlitestore.New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	fake := catalog.NewFake()
	orgID := uuid.New()
	dataSourceID := uuid.New()
	actorID := uuid.New()
	ctx := context.Background()

	db := store.UnderlyingDB()
	_, err = db.ExecContext(ctx, `INSERT INTO org_memberships (user_id, organization_id, workspace_role) VALUES (?, ?, ?)`,
		actorID.String(), orgID.String(), types.WorkspaceRoleQuerier)
	require.NoError(t, err)

	err = store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		_, err := tx.UpsertDataset(ctx, types.Dataset{
			Name:           "orders",
			Schema:         "public",
			DatabaseName:   "analytics",
			DataSourceID:   dataSourceID,
			Type:           types.DatasetTypeView,
			Enabled:        true,
			OrganizationID: orgID,
		})
		return err
	})
	require.NoError(t, err)

	svc := &MetricService{
		Store:    store,
		Analyzer: analyzer.New(analyzer.DialectPostgres),
		Catalog:  fake,
	}
	return svc, store, fake, orgID, dataSourceID, actorID
}

func TestCreateMetricValidatesSQLAndAssociatesDataset(t *testing.T) {
	svc, _, _, orgID, dataSourceID, actorID := newTestMetricService(t)

	m, err := svc.Create(context.Background(), CreateMetricInput{
		OrganizationID: orgID,
		DataSourceID:   dataSourceID,
		Actor:          actorID,
		Content: types.MetricYml{
			Name: "order count",
			SQL:  "SELECT count(*) FROM public.orders",
		},
	})
	require.NoError(t, err)
	require.Equal(t, 1, m.VersionHistory.Latest)
	require.Equal(t, types.VerificationNotVerified, m.Verification)
}

func TestCreateMetricRejectsMissingSQL(t *testing.T) {
	svc, _, _, orgID, dataSourceID, actorID := newTestMetricService(t)

	_, err := svc.Create(context.Background(), CreateMetricInput{
		OrganizationID: orgID,
		DataSourceID:   dataSourceID,
		Actor:          actorID,
		Content: types.MetricYml{
			Name: "bad metric",
		},
	})
	require.Error(t, err)
	require.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestUpdateMetricFieldPatchSkipsProbeWhenSQLUnchanged(t *testing.T) {
	svc, _, fake, orgID, dataSourceID, actorID := newTestMetricService(t)
	ctx := context.Background()

	probeCalls := 0
	fake.ProbeFn = func(sql string) *types.DataMetadata {
		probeCalls++
		return &types.DataMetadata{RowCount: 1}
	}

	m, err := svc.Create(ctx, CreateMetricInput{
		OrganizationID: orgID,
		DataSourceID:   dataSourceID,
		Actor:          actorID,
		Content:        types.MetricYml{Name: "orders", SQL: "SELECT count(*) FROM public.orders"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, probeCalls)

	newDesc := "daily order count"
	updated, err := svc.Update(ctx, UpdateMetricInput{
		MetricID: m.ID,
		Actor:    actorID,
		FieldPatch: &MetricFieldPatch{
			Description: &newDesc,
		},
	})
	require.NoError(t, err)
	require.Equal(t, newDesc, updated.Content.Description)
	require.Equal(t, 1, probeCalls, "sql unchanged must not re-probe")
	require.Equal(t, 2, updated.VersionHistory.Latest)
}

func TestUpdateMetricRestoreToVersionAlwaysAppendsAndRevalidates(t *testing.T) {
	svc, _, fake, orgID, dataSourceID, actorID := newTestMetricService(t)
	ctx := context.Background()

	probeCalls := 0
	fake.ProbeFn = func(sql string) *types.DataMetadata {
		probeCalls++
		return &types.DataMetadata{RowCount: 1}
	}

	m, err := svc.Create(ctx, CreateMetricInput{
		OrganizationID: orgID,
		DataSourceID:   dataSourceID,
		Actor:          actorID,
		Content:        types.MetricYml{Name: "orders v1", SQL: "SELECT count(*) FROM public.orders"},
	})
	require.NoError(t, err)

	newSQL := "SELECT count(*) FROM public.orders WHERE 1=1"
	_, err = svc.Update(ctx, UpdateMetricInput{
		MetricID: m.ID,
		Actor:    actorID,
		FullYAML: &types.MetricYml{Name: "orders v2", SQL: newSQL},
	})
	require.NoError(t, err)
	require.Equal(t, 2, probeCalls, "create + full-yaml update (sql changed) each probe once")

	v1 := 1
	restored, err := svc.Update(ctx, UpdateMetricInput{
		MetricID:         m.ID,
		Actor:            actorID,
		RestoreToVersion: &v1,
	})
	require.NoError(t, err)
	require.Equal(t, "orders v1", restored.Content.Name)
	require.Equal(t, 3, restored.VersionHistory.Latest, "restore always appends")
	require.Equal(t, 3, probeCalls, "restore always re-validates sql")
}

func TestUpdateMetricRejectsUnknownVersion(t *testing.T) {
	svc, _, _, orgID, dataSourceID, actorID := newTestMetricService(t)
	ctx := context.Background()

	m, err := svc.Create(ctx, CreateMetricInput{
		OrganizationID: orgID,
		DataSourceID:   dataSourceID,
		Actor:          actorID,
		Content:        types.MetricYml{Name: "orders", SQL: "SELECT count(*) FROM public.orders"},
	})
	require.NoError(t, err)

	bogus := 99
	_, err = svc.Update(ctx, UpdateMetricInput{MetricID: m.ID, RestoreToVersion: &bogus})
	require.Error(t, err)
}

func TestUpdateMetricNotFoundAfterSoftDelete(t *testing.T) {
	svc, store, _, orgID, dataSourceID, actorID := newTestMetricService(t)
	ctx := context.Background()

	m, err := svc.Create(ctx, CreateMetricInput{
		OrganizationID: orgID,
		DataSourceID:   dataSourceID,
		Actor:          actorID,
		Content:        types.MetricYml{Name: "orders", SQL: "SELECT count(*) FROM public.orders"},
	})
	require.NoError(t, err)

	_, err = store.UnderlyingDB().ExecContext(ctx, `UPDATE metric_files SET deleted_at = CURRENT_TIMESTAMP WHERE id = ?`, m.ID.String())
	require.NoError(t, err)

	newName := "renamed"
	_, err = svc.Update(ctx, UpdateMetricInput{MetricID: m.ID, FieldPatch: &MetricFieldPatch{Name: &newName}})
	require.Error(t, err)
	require.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestCreateMetricUnmatchedTableDowngradesToWarning(t *testing.T) {
	svc, store, _, orgID, dataSourceID, actorID := newTestMetricService(t)
	ctx := context.Background()

	m, err := svc.Create(ctx, CreateMetricInput{
		OrganizationID: orgID,
		DataSourceID:   dataSourceID,
		Actor:          actorID,
		Content: types.MetricYml{
			Name: "mystery table",
			SQL:  "SELECT count(*) FROM public.does_not_exist",
		},
	})
	require.NoError(t, err, "unmatched table name is a warning, not a hard failure")

	datasetIDs, err := store.ListMetricFileDatasets(ctx, m.ID, m.VersionHistory.Latest)
	require.NoError(t, err)
	require.Empty(t, datasetIDs)
}
