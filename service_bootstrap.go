package authkit

import (
	"context"

	"github.com/fernandezvara/dbkit"
)

// Bootstrap prepares a fresh database for use: it creates the root namespace
// (idempotent), defines a system role at the root for every name in the level
// registry, and grants the builtin permissions to the most privileged role.
// Run it once after migrations.
//
// Example:
//
//	root, err := service.Bootstrap(ctx, "acme", "acme.example")
func (s *Service) Bootstrap(ctx context.Context, rootName, domain string) (*Namespace, error) {
	root, err := s.GetNamespaceByPath(ctx, rootName)
	switch {
	case err == nil:
		// Already bootstrapped.
	case IsNotFound(err):
		root, err = s.CreateNamespace(ctx, rootName, "", domain)
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	names := s.levels.RoleNames()
	for _, name := range names {
		_, err := s.DefineRole(ctx, name, root.ID, RoleSpec{
			DisplayName: name,
			IsSystem:    true,
		})
		if err != nil && !IsConflict(err) {
			return nil, err
		}
	}

	if len(names) == 0 {
		return root, nil
	}

	top, err := s.GetRoleByName(ctx, names[0], root.ID)
	if err != nil {
		return nil, err
	}

	var builtins []Permission
	err = s.db.NewSelect().
		Model(&builtins).
		Where("is_system = true").
		Scan(ctx)
	if err != nil {
		return nil, dbkit.WithErr1(err, "Bootstrap").Err()
	}
	for _, perm := range builtins {
		if err := s.GrantPermission(ctx, top.ID, perm.ID); err != nil {
			return nil, err
		}
	}

	return root, nil
}
