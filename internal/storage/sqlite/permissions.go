package sqlite

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/untoldecay/dataplane/internal/storage"
	"github.com/untoldecay/dataplane/internal/types"
)

func (s *SQLiteStorage) ListPermissions(ctx context.Context, assetID uuid.UUID, assetType types.AssetType) ([]types.AssetPermission, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT identity_id, identity_type, asset_id, asset_type, role, deleted_at
		FROM asset_permissions WHERE asset_id = ? AND asset_type = ? AND deleted_at IS NULL`,
		assetID.String(), assetType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.AssetPermission
	for rows.Next() {
		var p types.AssetPermission
		var identityID, assetIDStr string
		var deletedAt sql.NullTime
		if err := rows.Scan(&identityID, &p.IdentityType, &assetIDStr, &p.AssetType, &p.Role, &deletedAt); err != nil {
			return nil, err
		}
		p.IdentityID = uuid.MustParse(identityID)
		p.AssetID = uuid.MustParse(assetIDStr)
		if deletedAt.Valid {
			p.DeletedAt = &deletedAt.Time
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) ListOrgMemberships(ctx context.Context, userID uuid.UUID) ([]types.OrgMembership, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT organization_id, workspace_role FROM org_memberships WHERE user_id = ?`, userID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.OrgMembership
	for rows.Next() {
		var m types.OrgMembership
		var orgID string
		if err := rows.Scan(&orgID, &m.WorkspaceRole); err != nil {
			return nil, err
		}
		m.OrganizationID = uuid.MustParse(orgID)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) ListTeamIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT team_id FROM team_members WHERE user_id = ?`, userID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, uuid.MustParse(id))
	}
	return out, rows.Err()
}

// ListContainerAssets returns the containers that hold assetID according
// to collection_to_asset, used by the permission gate to walk transitive
// inheritance. Every ref is typed as a collection: the table records no
// container type, so dashboards are not looked up as containers.
func (s *SQLiteStorage) ListContainerAssets(ctx context.Context, assetID uuid.UUID, assetType types.AssetType) ([]storage.AssetRef, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT collection_id FROM collection_to_asset WHERE asset_id = ? AND asset_type = ?`,
		assetID.String(), assetType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.AssetRef
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, storage.AssetRef{ID: uuid.MustParse(id), Type: types.AssetTypeCollection})
	}
	return out, rows.Err()
}

func (t *connTx) UpsertAssetPermission(ctx context.Context, p types.AssetPermission) error {
	_, err := t.conn.ExecContext(ctx, `
		INSERT INTO asset_permissions (identity_id, identity_type, asset_id, asset_type, role, deleted_at)
		VALUES (?, ?, ?, ?, ?, NULL)
		ON CONFLICT (identity_id, identity_type, asset_id, asset_type) DO UPDATE SET
			role = excluded.role,
			deleted_at = NULL`,
		p.IdentityID.String(), p.IdentityType, p.AssetID.String(), p.AssetType, p.Role,
	)
	return err
}
