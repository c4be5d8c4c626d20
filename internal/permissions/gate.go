// Package permissions implements the per-asset permission gate.
package permissions

import (
	"context"

	"github.com/google/uuid"
	"github.com/untoldecay/dataplane/internal/storage"
	"github.com/untoldecay/dataplane/internal/types"
)

// Gate resolves a user's effective role on an asset.
type Gate struct {
	Store storage.Storage
}

// CheckOpts carries the asset metadata the gate needs beyond its id/type —
// publicly_accessible is asset-level configuration, not row-level grant
// data, so it is supplied by the caller rather than re-fetched here.
type CheckOpts struct {
	OrganizationID     uuid.UUID
	PubliclyAccessible bool
}

// Resolve walks the access rules in order and returns the user's effective
// Role on the asset.
func (g *Gate) Resolve(ctx context.Context, userID, assetID uuid.UUID, assetType types.AssetType, opts CheckOpts) (types.Role, error) {
	memberships, err := g.Store.ListOrgMemberships(ctx, userID)
	if err != nil {
		return types.RoleNone, err
	}
	for _, m := range memberships {
		if m.OrganizationID == opts.OrganizationID && m.WorkspaceRole.IsOrgAdmin() {
			return types.RoleOwner, nil
		}
	}

	teamIDs, err := g.Store.ListTeamIDsForUser(ctx, userID)
	if err != nil {
		return types.RoleNone, err
	}
	teamSet := make(map[uuid.UUID]bool, len(teamIDs))
	for _, id := range teamIDs {
		teamSet[id] = true
	}

	role, err := g.aggregate(ctx, userID, teamSet, assetID, assetType, map[types.AssetType]map[uuid.UUID]bool{})
	if err != nil {
		return types.RoleNone, err
	}

	if role == types.RoleNone && !opts.PubliclyAccessible {
		return types.RoleNone, nil
	}
	return role, nil
}

// aggregate walks the permission rows on assetID plus, transitively, every
// container that holds it (spec step 2: "a thread inherits from dashboards
// it is pinned to and from collections it sits in"). visited guards against
// cycles in the container graph.
func (g *Gate) aggregate(ctx context.Context, userID uuid.UUID, teamSet map[uuid.UUID]bool, assetID uuid.UUID, assetType types.AssetType, visited map[types.AssetType]map[uuid.UUID]bool) (types.Role, error) {
	if visited[assetType] == nil {
		visited[assetType] = map[uuid.UUID]bool{}
	}
	if visited[assetType][assetID] {
		return types.RoleNone, nil
	}
	visited[assetType][assetID] = true

	perms, err := g.Store.ListPermissions(ctx, assetID, assetType)
	if err != nil {
		return types.RoleNone, err
	}

	var userRole, teamRole types.Role
	for _, p := range perms {
		switch {
		case p.IdentityType == types.IdentityUser && p.IdentityID == userID:
			userRole = types.Max(userRole, p.Role)
		case p.IdentityType == types.IdentityTeam && teamSet[p.IdentityID]:
			teamRole = types.Max(teamRole, p.Role)
		}
	}
	// Cross-fill (spec step 4): a team grant raises an individual grant and
	// vice versa to the stronger of the two for the same identity.
	best := types.Max(userRole, teamRole)

	containers, err := g.Store.ListContainerAssets(ctx, assetID, assetType)
	if err != nil {
		return types.RoleNone, err
	}
	for _, c := range containers {
		inherited, err := g.aggregate(ctx, userID, teamSet, c.ID, c.Type, visited)
		if err != nil {
			return types.RoleNone, err
		}
		best = types.Max(best, inherited)
	}
	return best, nil
}

// CanCrossReference implements the cross-asset operation rule:
// adding target into container requires at least CanEdit on container and
// at least CanView on target.
func (g *Gate) CanCrossReference(ctx context.Context, userID, containerID uuid.UUID, containerType types.AssetType, targetID uuid.UUID, targetType types.AssetType, opts CheckOpts) (bool, error) {
	containerRole, err := g.Resolve(ctx, userID, containerID, containerType, opts)
	if err != nil {
		return false, err
	}
	if containerRole < types.RoleCanEdit {
		return false, nil
	}
	targetRole, err := g.Resolve(ctx, userID, targetID, targetType, opts)
	if err != nil {
		return false, err
	}
	return targetRole >= types.RoleCanView, nil
}
