package authkit

import (
	"context"

	"github.com/fernandezvara/dbkit"
)

// ============================================================================
// ROLE ASSIGNMENTS
// ============================================================================

// Assign gives a user a role at a namespace. A user holds at most one role
// per namespace, so assigning over an existing assignment replaces it. The
// actor (from context) must hold a governing role at the namespace that
// strictly outranks the role being assigned, and when an assignment is being
// replaced, the role being displaced as well; use AssignDirect for seeding
// and bootstrap flows that have no actor yet.
//
// Example:
//
//	ctx = authkit.WithActorID(ctx, adminID)
//	err := service.Assign(ctx, targetUserID, team.ID, managerRole.ID)
func (s *Service) Assign(ctx context.Context, userID, namespaceID, roleID string) error {
	actorID := GetActorID(ctx)
	if actorID == "" {
		return NewError(ErrNoActorID, "actor ID required for role assignment")
	}

	allowed, err := s.CanAssignRoleAt(ctx, actorID, namespaceID, roleID)
	if err != nil {
		return err
	}
	if !allowed {
		return NewError(ErrCannotAssign, "actor cannot assign this role").
			WithNamespace(namespaceID).
			WithRole(roleID).
			WithActor(actorID)
	}

	previous, err := s.RoleOf(ctx, userID, namespaceID)
	if err != nil {
		return err
	}
	if previous != nil {
		allowed, err = s.CanAssignRoleAt(ctx, actorID, namespaceID, previous.ID)
		if err != nil {
			return err
		}
		if !allowed {
			return NewError(ErrCannotAssign, "actor cannot replace the current role").
				WithNamespace(namespaceID).
				WithRole(previous.ID).
				WithActor(actorID)
		}
	}

	return s.assign(ctx, userID, namespaceID, roleID)
}

// AssignDirect assigns a role without the actor authority check. Intended for
// seeding the first administrator and migration tooling; everything else
// should go through Assign.
func (s *Service) AssignDirect(ctx context.Context, userID, namespaceID, roleID string) error {
	return s.assign(ctx, userID, namespaceID, roleID)
}

func (s *Service) assign(ctx context.Context, userID, namespaceID, roleID string) error {
	if _, err := s.GetUser(ctx, userID); err != nil {
		return err
	}
	if _, err := s.GetNamespace(ctx, namespaceID); err != nil {
		return err
	}
	role, err := s.GetRole(ctx, roleID)
	if err != nil {
		return err
	}

	previous, err := s.RoleOf(ctx, userID, namespaceID)
	if err != nil {
		return err
	}

	assignment := &UserNamespaceRole{
		UserID:      userID,
		NamespaceID: namespaceID,
		RoleID:      roleID,
	}

	result, err := s.db.NewInsert().Model(assignment).
		On("CONFLICT (user_id, namespace_id) DO UPDATE").
		Set("role_id = EXCLUDED.role_id").
		Set("updated_at = current_timestamp").
		Exec(ctx)
	err = dbkit.WithErr(result, err, "AssignRole").Err()
	if err != nil {
		return NewError(ErrDatabaseError, "failed to upsert role assignment").
			WithNamespace(namespaceID).
			WithRole(roleID).
			WithUser(userID)
	}

	entry := &AuditEntry{
		ActorID:      GetActorID(ctx),
		Action:       AuditActionAssigned,
		TargetUserID: userID,
		NamespaceID:  namespaceID,
		RoleID:       roleID,
		NewRole:      role.Name,
	}
	if previous != nil {
		entry.PreviousRole = previous.Name
	}
	s.auditFromContext(ctx, entry)

	return nil
}

// Unassign removes a user's role at a namespace. The actor must outrank the
// role being removed. Removing a non-existent assignment is rejected with
// ErrNotFound.
func (s *Service) Unassign(ctx context.Context, userID, namespaceID string) error {
	actorID := GetActorID(ctx)
	if actorID == "" {
		return NewError(ErrNoActorID, "actor ID required for role removal")
	}

	current, err := s.RoleOf(ctx, userID, namespaceID)
	if err != nil {
		return err
	}
	if current == nil {
		return NewError(ErrNotFound, "user has no role at this namespace").
			WithNamespace(namespaceID).
			WithUser(userID)
	}

	allowed, err := s.CanAssignRoleAt(ctx, actorID, namespaceID, current.ID)
	if err != nil {
		return err
	}
	if !allowed {
		return NewError(ErrCannotAssign, "actor cannot remove this role").
			WithNamespace(namespaceID).
			WithRole(current.ID).
			WithActor(actorID)
	}

	result, err := s.db.NewDelete().Table("user_namespace_roles").
		Where("user_id = ? AND namespace_id = ?", userID, namespaceID).Exec(ctx)
	if err = dbkit.WithErr(result, err, "UnassignRole").Err(); err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return NewError(ErrNotFound, "user has no role at this namespace").
			WithNamespace(namespaceID).
			WithUser(userID)
	}

	s.auditFromContext(ctx, &AuditEntry{
		ActorID:      actorID,
		Action:       AuditActionUnassigned,
		TargetUserID: userID,
		NamespaceID:  namespaceID,
		RoleID:       current.ID,
		PreviousRole: current.Name,
	})

	return nil
}

// RoleOf returns the role directly assigned to a user at a namespace, or nil
// when there is none. Absence is an answer, not an error; inherited roles
// are the resolver's business, not this lookup's.
func (s *Service) RoleOf(ctx context.Context, userID, namespaceID string) (*Role, error) {
	var assignment UserNamespaceRole
	err := dbkit.WithErr1(s.db.NewSelect().Model(&assignment).
		Where("user_id = ? AND namespace_id = ?", userID, namespaceID).
		Limit(1).Scan(ctx), "RoleOf").Err()
	if err != nil {
		if dbkit.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	role, err := s.GetRole(ctx, assignment.RoleID)
	if err != nil {
		if IsNotFound(err) {
			return nil, NewError(ErrInconsistent, "assignment references a missing role").
				WithUser(userID).
				WithNamespace(namespaceID).
				WithRole(assignment.RoleID)
		}
		return nil, err
	}
	return role, nil
}

// AssignmentsOf lists every (namespace, role) pair directly assigned to a
// user.
func (s *Service) AssignmentsOf(ctx context.Context, userID string) ([]Assignment, error) {
	var rows []UserNamespaceRole
	err := dbkit.WithErr1(s.db.NewSelect().Model(&rows).
		Where("user_id = ?", userID).Scan(ctx), "AssignmentsOf").Err()
	if err != nil {
		return nil, err
	}

	assignments := make([]Assignment, 0, len(rows))
	for _, row := range rows {
		ns, err := s.GetNamespace(ctx, row.NamespaceID)
		if err != nil {
			if IsNotFound(err) {
				return nil, NewError(ErrInconsistent, "assignment references a missing namespace").
					WithUser(userID).
					WithNamespace(row.NamespaceID)
			}
			return nil, err
		}
		role, err := s.GetRole(ctx, row.RoleID)
		if err != nil {
			if IsNotFound(err) {
				return nil, NewError(ErrInconsistent, "assignment references a missing role").
					WithUser(userID).
					WithRole(row.RoleID)
			}
			return nil, err
		}
		assignments = append(assignments, Assignment{Namespace: *ns, Role: *role})
	}
	return assignments, nil
}

// NamespaceMembers lists all direct assignments at a namespace.
func (s *Service) NamespaceMembers(ctx context.Context, namespaceID string) ([]UserNamespaceRole, error) {
	var rows []UserNamespaceRole
	err := dbkit.WithErr1(s.db.NewSelect().Model(&rows).
		Where("namespace_id = ?", namespaceID).Scan(ctx), "NamespaceMembers").Err()
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// auditFromContext fills request metadata from context and writes the audit
// row. Audit failures never fail the mutation they describe.
func (s *Service) auditFromContext(ctx context.Context, entry *AuditEntry) {
	audit := GetAuditContext(ctx)
	entry.IPAddress = audit.IPAddress
	entry.UserAgent = audit.UserAgent
	entry.RequestID = audit.RequestID
	if entry.ActorID == "" {
		entry.ActorID = audit.ActorID
	}

	_, err := s.db.NewInsert().Model(entry.ToModel()).Exec(ctx)
	_ = dbkit.WithErr1(err, "LogAudit").Err()
}
