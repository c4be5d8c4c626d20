package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/untoldecay/dataplane/internal/storage"
	"github.com/untoldecay/dataplane/internal/types"
)

func setupTestDB(t *testing.T) *SQLiteStorage {
	t.Helper()
	dir := t.TempDir()
	store, err := New(context.Background(), filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestUpsertDatasetIsIdempotentByNaturalKey(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	dataSourceID := uuid.New()
	orgID := uuid.New()

	d := types.Dataset{
		Name: "orders", Schema: "public", DatabaseName: "analytics",
		DataSourceID: dataSourceID, OrganizationID: orgID, Type: types.DatasetTypeView,
	}

	var firstID uuid.UUID
	err := store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		id, err := tx.UpsertDataset(ctx, d)
		firstID = id
		return err
	})
	require.NoError(t, err)

	d.Definition = "select * from orders"
	var secondID uuid.UUID
	err = store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		id, err := tx.UpsertDataset(ctx, d)
		secondID = id
		return err
	})
	require.NoError(t, err)
	require.Equal(t, firstID, secondID, "re-upserting the same natural key must preserve the dataset id")

	got, err := store.GetDatasetByNaturalKey(ctx, storage.DatasetNaturalKey{DatabaseName: "analytics", DataSourceID: dataSourceID})
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "select * from orders", got.Definition)
}

func TestDatasetColumnSoftDeleteAndUndelete(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	dataSourceID := uuid.New()
	var datasetID uuid.UUID

	err := store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		id, err := tx.UpsertDataset(ctx, types.Dataset{
			Name: "orders", Schema: "public", DatabaseName: "analytics",
			DataSourceID: dataSourceID, OrganizationID: uuid.New(), Type: types.DatasetTypeView,
		})
		datasetID = id
		if err != nil {
			return err
		}
		return tx.UpsertDatasetColumns(ctx, []types.DatasetColumn{
			{DatasetID: datasetID, Name: "id", Type: "integer"},
			{DatasetID: datasetID, Name: "total", Type: "numeric"},
		})
	})
	require.NoError(t, err)

	err = store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		return tx.SoftDeleteDatasetColumns(ctx, datasetID, []string{"total"}, time.Now())
	})
	require.NoError(t, err)

	visible, err := store.ListDatasetColumns(ctx, datasetID, false)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	require.Equal(t, "id", visible[0].Name)

	all, err := store.ListDatasetColumns(ctx, datasetID, true)
	require.NoError(t, err)
	require.Len(t, all, 2)

	// Reappearing in a later deployment undeletes it.
	err = store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		return tx.UpsertDatasetColumns(ctx, []types.DatasetColumn{{DatasetID: datasetID, Name: "total", Type: "numeric"}})
	})
	require.NoError(t, err)

	visible, err = store.ListDatasetColumns(ctx, datasetID, false)
	require.NoError(t, err)
	require.Len(t, visible, 2)
}

func TestRunInTransactionRollsBackOnError(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	dataSourceID := uuid.New()

	err := store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		if _, err := tx.UpsertDataset(ctx, types.Dataset{
			Name: "orders", Schema: "public", DatabaseName: "analytics",
			DataSourceID: dataSourceID, OrganizationID: uuid.New(), Type: types.DatasetTypeView,
		}); err != nil {
			return err
		}
		return os.ErrClosed // any non-nil error should trigger rollback
	})
	require.Error(t, err)

	got, err := store.GetDatasetByNaturalKey(ctx, storage.DatasetNaturalKey{DatabaseName: "analytics", DataSourceID: dataSourceID})
	require.NoError(t, err)
	require.Nil(t, got, "failed transaction must not leave a partial dataset row behind")
}

func TestMetricFileVersionHistoryRoundtrips(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	id := uuid.New()
	orgID := uuid.New()

	m := types.MetricFile{
		ID: id, Name: "revenue", OrganizationID: orgID, DataSourceID: uuid.New(),
		Content:       types.MetricYml{Name: "revenue", SQL: "select sum(total) from orders"},
		Verification:  types.VerificationNotVerified,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	m.VersionHistory = types.NewVersionHistory(m.Content, m.CreatedAt)

	err := store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		return tx.CreateMetricFile(ctx, m)
	})
	require.NoError(t, err)

	got, err := store.GetMetricFile(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "revenue", got.Content.Name)
	require.Equal(t, 1, got.VersionHistory.Latest)

	v1, ok := got.VersionHistory.At(1)
	require.True(t, ok)
	content, ok := v1.Content.(types.MetricYml)
	require.True(t, ok, "a version's content must type-assert back to MetricYml after a storage round trip")
	require.Equal(t, "revenue", content.Name)
}
