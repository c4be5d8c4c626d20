package datasets

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/untoldecay/dataplane/internal/catalog"
	"github.com/untoldecay/dataplane/internal/storage"
	sqlitestore "github.com/untoldecay/dataplane/internal/storage/sqlite"
	"github.com/untoldecay/dataplane/internal/types"
)

func newTestDeployer(t *testing.T) (*Deployer, *catalog.Fake, uuid.UUID) {
	t.Helper()
	store, err := sqlitestore.New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	fake := catalog.NewFake()
	dataSourceID := uuid.New()
	fake.AddSource("org-1", catalog.DataSource{ID: dataSourceID.String(), Name: "warehouse", Env: "prod", Database: "analytics"})

	return &Deployer{Resolver: fake, Catalog: fake, Store: store}, fake, dataSourceID
}

func TestDeployUpsertsDatasetAndColumns(t *testing.T) {
	deployer, _, _ := newTestDeployer(t)
	orgID := uuid.New()
	actor := uuid.New()

	model := types.Model{
		Name: "orders", Description: "order facts", DataSourceName: "warehouse",
		Database: "analytics", Schema: "public",
		Dimensions: []types.Dimension{{Name: "status", Type: "string"}},
		Measures:   []types.Measure{{Name: "total", Type: "numeric"}},
	}

	result := deployer.Deploy(context.Background(), orgID, actor, []Input{
		{Model: model, Env: "prod", SQL: "select * from orders"},
	})

	require.Equal(t, 1, result.Summary.Succeeded)
	require.Equal(t, 0, result.Summary.Failed)
	require.True(t, result.PerModelResult[0].Success)
}

func TestDeployGroupFailsAllOnMissingDataSource(t *testing.T) {
	deployer, _, _ := newTestDeployer(t)
	model := types.Model{Name: "orders", DataSourceName: "unknown-warehouse", Database: "analytics", Schema: "public"}

	result := deployer.Deploy(context.Background(), uuid.New(), uuid.New(), []Input{
		{Model: model, Env: "prod", SQL: "select 1"},
	})

	require.Equal(t, 1, result.Summary.Failed)
	require.False(t, result.PerModelResult[0].Success)
}

func TestDeployColumnDiffSoftDeletesRemovedColumns(t *testing.T) {
	deployer, _, dataSourceID := newTestDeployer(t)
	orgID := uuid.New()
	actor := uuid.New()

	first := types.Model{
		Name: "orders", DataSourceName: "warehouse", Database: "analytics", Schema: "public",
		Dimensions: []types.Dimension{{Name: "status", Type: "string"}, {Name: "region", Type: "string"}},
	}
	deployer.Deploy(context.Background(), orgID, actor, []Input{{Model: first, Env: "prod", SQL: "select 1"}})

	second := types.Model{
		Name: "orders", DataSourceName: "warehouse", Database: "analytics", Schema: "public",
		Dimensions: []types.Dimension{{Name: "status", Type: "string"}},
	}
	result := deployer.Deploy(context.Background(), orgID, actor, []Input{{Model: second, Env: "prod", SQL: "select 1"}})
	require.True(t, result.PerModelResult[0].Success)

	ds, err := deployer.Store.GetDatasetByNaturalKey(context.Background(), storage.DatasetNaturalKey{
		DatabaseName: "analytics", DataSourceID: dataSourceID,
	})
	require.NoError(t, err)
	require.NotNil(t, ds)

	cols, err := deployer.Store.ListDatasetColumns(context.Background(), ds.ID, false)
	require.NoError(t, err)
	require.Len(t, cols, 1)
	require.Equal(t, "status", cols[0].Name)
}
