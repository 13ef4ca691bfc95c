package authkit

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/fernandezvara/dbkit"
)

// ============================================================================
// PERMISSION RESOLUTION
// ============================================================================
//
// Resolution is nearest-ancestor-wins: walking from the target namespace up
// to the root, the first namespace holding an assignment for the user
// supplies the governing role, and that role's permission set is the user's
// effective permission set at the target. Permissions are never unioned
// across the ancestor chain; a role assigned closer to the target fully
// shadows a broader grant further up. No assignment anywhere up to the root
// means no permissions: an empty set, not an error.

// GoverningRole resolves the role governing a user at a namespace, together
// with the namespace the winning assignment was made at. Returns (nil, nil,
// nil) when the user has no assignment anywhere up to the root. Errors only
// when the user or namespace does not exist (ErrNotFound) or the stored data
// violates an invariant (ErrInconsistent).
func (s *Service) GoverningRole(ctx context.Context, userID, namespaceID string) (*Role, *Namespace, error) {
	if _, err := s.GetUser(ctx, userID); err != nil {
		return nil, nil, err
	}

	chain, err := s.Ancestors(ctx, namespaceID)
	if err != nil {
		return nil, nil, err
	}

	assignments, err := s.assignmentsAlong(ctx, userID, chain)
	if err != nil {
		return nil, nil, err
	}

	winner, at := nearestAssignment(chain, assignments)
	if winner == nil {
		return nil, nil, nil
	}

	role, err := s.GetRole(ctx, winner.RoleID)
	if err != nil {
		if IsNotFound(err) {
			// The assignment points at a role that no longer exists. The
			// storage constraints should make this impossible; surface it
			// loudly instead of treating it as "no role".
			return nil, nil, NewError(ErrInconsistent, "assignment references a missing role").
				WithUser(userID).
				WithNamespace(at.ID).
				WithRole(winner.RoleID)
		}
		return nil, nil, err
	}
	return role, at, nil
}

// EffectivePermissions computes the permission set a user holds at a
// namespace: the permissions of the governing role, or the empty set when no
// assignment exists up to the root.
func (s *Service) EffectivePermissions(ctx context.Context, userID, namespaceID string) ([]Permission, error) {
	role, _, err := s.GoverningRole(ctx, userID, namespaceID)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, nil
	}
	return s.PermissionsOf(ctx, role.ID)
}

// HasPermission checks whether the user's effective permission set at a
// namespace contains the named permission. Denial is a plain false; only a
// missing user/namespace or corrupted data produce an error.
func (s *Service) HasPermission(ctx context.Context, userID, namespaceID, permissionName string) (bool, error) {
	perms, err := s.EffectivePermissions(ctx, userID, namespaceID)
	if err != nil {
		return false, err
	}
	for _, p := range perms {
		if p.Name == permissionName {
			return true, nil
		}
	}
	return false, nil
}

// CanAssignRoleAt checks whether the actor may assign the target role at a
// namespace: the actor's governing role there must strictly outrank the
// target role. An actor with no governing role fails closed.
func (s *Service) CanAssignRoleAt(ctx context.Context, actorUserID, namespaceID, targetRoleID string) (bool, error) {
	targetRole, err := s.GetRole(ctx, targetRoleID)
	if err != nil {
		return false, err
	}

	actorRole, _, err := s.GoverningRole(ctx, actorUserID, namespaceID)
	if err != nil {
		return false, err
	}
	if actorRole == nil {
		return false, nil
	}
	return s.levels.CanAssign(actorRole.Name, targetRole.Name), nil
}

// CanManageUser checks whether the actor may manage the target user at a
// namespace. Both governing roles are resolved with the same walk; if either
// user has no governing role there, the check fails closed.
func (s *Service) CanManageUser(ctx context.Context, actorUserID, targetUserID, namespaceID string) (bool, error) {
	actorRole, _, err := s.GoverningRole(ctx, actorUserID, namespaceID)
	if err != nil {
		return false, err
	}
	if actorRole == nil {
		return false, nil
	}

	targetRole, _, err := s.GoverningRole(ctx, targetUserID, namespaceID)
	if err != nil {
		return false, err
	}
	if targetRole == nil {
		return false, nil
	}
	return s.levels.CanManage(actorRole.Name, targetRole.Name), nil
}

// assignmentsAlong fetches the user's assignments for every namespace in the
// ancestor chain with a single indexed lookup.
func (s *Service) assignmentsAlong(ctx context.Context, userID string, chain []Namespace) (map[string]UserNamespaceRole, error) {
	ids := make([]string, len(chain))
	for i, ns := range chain {
		ids[i] = ns.ID
	}

	var rows []UserNamespaceRole
	err := dbkit.WithErr1(s.db.NewSelect().Model(&rows).
		Where("user_id = ? AND namespace_id IN (?)", userID, bun.In(ids)).
		Scan(ctx), "AssignmentsAlong").Err()
	if err != nil {
		return nil, err
	}

	byNamespace := make(map[string]UserNamespaceRole, len(rows))
	for _, row := range rows {
		byNamespace[row.NamespaceID] = row
	}
	return byNamespace, nil
}

// nearestAssignment walks the ancestor chain (target first, root last) and
// picks the first namespace with an assignment. Pure function over
// pre-fetched data; the walk itself never touches storage.
func nearestAssignment(chain []Namespace, byNamespace map[string]UserNamespaceRole) (*UserNamespaceRole, *Namespace) {
	for i := range chain {
		if row, ok := byNamespace[chain[i].ID]; ok {
			return &row, &chain[i]
		}
	}
	return nil, nil
}
