package permissions

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/untoldecay/dataplane/internal/storage"
	sqlitestore "github.com/untoldecay/dataplane/internal/storage/sqlite"
	"github.com/untoldecay/dataplane/internal/types"
)

func newTestStore(t *testing.T) *sqlitestore.SQLiteStorage {
	t.Helper()
	store, err := sqlitestore.New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestWorkspaceAdminBypassesGrants(t *testing.T) {
	store := newTestStore(t)
	gate := &Gate{Store: store}
	ctx := context.Background()
	orgID := uuid.New()
	userID := uuid.New()

	db := store.UnderlyingDB()
	_, err := db.ExecContext(ctx, `INSERT INTO org_memberships (user_id, organization_id, workspace_role) VALUES (?, ?, ?)`,
		userID.String(), orgID.String(), types.WorkspaceRoleWorkspaceAdmin)
	require.NoError(t, err)

	role, err := gate.Resolve(ctx, userID, uuid.New(), types.AssetTypeMetric, CheckOpts{OrganizationID: orgID})
	require.NoError(t, err)
	require.Equal(t, types.RoleOwner, role)
}

func TestDirectGrantAndCrossFill(t *testing.T) {
	store := newTestStore(t)
	gate := &Gate{Store: store}
	ctx := context.Background()
	userID := uuid.New()
	teamID := uuid.New()
	assetID := uuid.New()

	db := store.UnderlyingDB()
	_, err := db.ExecContext(ctx, `INSERT INTO team_members (user_id, team_id) VALUES (?, ?)`, userID.String(), teamID.String())
	require.NoError(t, err)

	err = store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		if err := tx.UpsertAssetPermission(ctx, types.AssetPermission{
			IdentityID: userID, IdentityType: types.IdentityUser, AssetID: assetID, AssetType: types.AssetTypeMetric, Role: types.RoleCanView,
		}); err != nil {
			return err
		}
		return tx.UpsertAssetPermission(ctx, types.AssetPermission{
			IdentityID: teamID, IdentityType: types.IdentityTeam, AssetID: assetID, AssetType: types.AssetTypeMetric, Role: types.RoleFullAccess,
		})
	})
	require.NoError(t, err)

	role, err := gate.Resolve(ctx, userID, assetID, types.AssetTypeMetric, CheckOpts{OrganizationID: uuid.New()})
	require.NoError(t, err)
	require.Equal(t, types.RoleFullAccess, role, "team grant must raise the weaker individual grant")
}

func TestNoneWithoutPublicAccessReturnsNone(t *testing.T) {
	store := newTestStore(t)
	gate := &Gate{Store: store}
	ctx := context.Background()

	role, err := gate.Resolve(ctx, uuid.New(), uuid.New(), types.AssetTypeMetric, CheckOpts{OrganizationID: uuid.New()})
	require.NoError(t, err)
	require.Equal(t, types.RoleNone, role)
}

func TestPubliclyAccessibleAloneDoesNotGrantARole(t *testing.T) {
	store := newTestStore(t)
	gate := &Gate{Store: store}
	ctx := context.Background()

	role, err := gate.Resolve(ctx, uuid.New(), uuid.New(), types.AssetTypeMetric, CheckOpts{OrganizationID: uuid.New(), PubliclyAccessible: true})
	require.NoError(t, err)
	require.Equal(t, types.RoleNone, role, "public access does not itself grant a role, only waives the None-means-missing contract")
}

func TestContainerInheritanceForChatThread(t *testing.T) {
	store := newTestStore(t)
	gate := &Gate{Store: store}
	ctx := context.Background()
	userID := uuid.New()
	dashboardID := uuid.New()
	threadID := uuid.New()

	db := store.UnderlyingDB()
	_, err := db.ExecContext(ctx, `INSERT INTO collection_to_asset (collection_id, asset_id, asset_type, order_index) VALUES (?, ?, ?, 0)`,
		dashboardID.String(), threadID.String(), types.AssetTypeChatThread)
	require.NoError(t, err)

	err = store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		return tx.UpsertAssetPermission(ctx, types.AssetPermission{
			IdentityID: userID, IdentityType: types.IdentityUser, AssetID: dashboardID, AssetType: types.AssetTypeCollection, Role: types.RoleCanEdit,
		})
	})
	require.NoError(t, err)

	role, err := gate.Resolve(ctx, userID, threadID, types.AssetTypeChatThread, CheckOpts{OrganizationID: uuid.New()})
	require.NoError(t, err)
	require.Equal(t, types.RoleCanEdit, role, "a thread must inherit its permission from the collection that contains it")
}

func TestCanCrossReferenceRequiresEditOnContainerAndViewOnTarget(t *testing.T) {
	store := newTestStore(t)
	gate := &Gate{Store: store}
	ctx := context.Background()
	userID := uuid.New()
	dashboardID := uuid.New()
	metricID := uuid.New()
	opts := CheckOpts{OrganizationID: uuid.New()}

	err := store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		if err := tx.UpsertAssetPermission(ctx, types.AssetPermission{
			IdentityID: userID, IdentityType: types.IdentityUser, AssetID: dashboardID, AssetType: types.AssetTypeDashboard, Role: types.RoleCanView,
		}); err != nil {
			return err
		}
		return tx.UpsertAssetPermission(ctx, types.AssetPermission{
			IdentityID: userID, IdentityType: types.IdentityUser, AssetID: metricID, AssetType: types.AssetTypeMetric, Role: types.RoleCanView,
		})
	})
	require.NoError(t, err)

	ok, err := gate.CanCrossReference(ctx, userID, dashboardID, types.AssetTypeDashboard, metricID, types.AssetTypeMetric, opts)
	require.NoError(t, err)
	require.False(t, ok, "view-only on the container is not enough to add a link")

	err = store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		return tx.UpsertAssetPermission(ctx, types.AssetPermission{
			IdentityID: userID, IdentityType: types.IdentityUser, AssetID: dashboardID, AssetType: types.AssetTypeDashboard, Role: types.RoleCanEdit,
		})
	})
	require.NoError(t, err)

	ok, err = gate.CanCrossReference(ctx, userID, dashboardID, types.AssetTypeDashboard, metricID, types.AssetTypeMetric, opts)
	require.NoError(t, err)
	require.True(t, ok)
}
