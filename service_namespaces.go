package authkit

import (
	"context"
	"strings"

	"github.com/uptrace/bun"

	"github.com/fernandezvara/dbkit"
)

// ============================================================================
// NAMESPACE TREE
// ============================================================================

// CreateNamespace creates a namespace under the given parent. Pass an empty
// parentID only when creating the singleton root. Depth and full path are
// computed from the parent; a duplicate (name, parent) or full path is
// rejected with ErrConflict, a missing parent with ErrNotFound.
//
// Example:
//
//	root, _ := service.CreateNamespace(ctx, "acme", "", "")
//	team, err := service.CreateNamespace(ctx, "billing", root.ID, "finance")
func (s *Service) CreateNamespace(ctx context.Context, name, parentID, domain string) (*Namespace, error) {
	if err := validateNamespaceName(name); err != nil {
		return nil, err
	}

	ns := &Namespace{
		Name:   name,
		Domain: domain,
	}

	if parentID == "" {
		// Singleton root: reject if any root already exists.
		exists, err := dbkit.Exists[Namespace](ctx, s.db, func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("parent_id IS NULL")
		})
		if err != nil {
			return nil, dbkit.WithErr1(err, "CreateNamespace").Err()
		}
		if exists {
			return nil, NewError(ErrConflict, "root namespace already exists")
		}
		ns.FullPath = name
		ns.Depth = 0
	} else {
		parent, err := s.GetNamespace(ctx, parentID)
		if err != nil {
			return nil, err
		}
		ns.ParentID = parent.ID
		ns.FullPath = parent.ChildPath(name)
		ns.Depth = parent.Depth + 1

		taken, err := dbkit.Exists[Namespace](ctx, s.db, func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("parent_id = ? AND name = ?", parent.ID, name)
		})
		if err != nil {
			return nil, dbkit.WithErr1(err, "CreateNamespace").Err()
		}
		if taken {
			return nil, NewError(ErrConflict, "sibling with this name already exists").
				WithNamespace(parent.ID)
		}
	}

	result, err := s.db.NewInsert().Model(ns).Exec(ctx)
	err = dbkit.WithErr(result, err, "CreateNamespace").Err()
	if err != nil {
		if dbkit.IsDuplicate(err) {
			return nil, NewError(ErrConflict, "namespace path already exists")
		}
		return nil, err
	}
	return ns, nil
}

// GetNamespace loads a namespace by ID. Returns ErrNotFound if absent.
func (s *Service) GetNamespace(ctx context.Context, id string) (*Namespace, error) {
	var ns Namespace
	err := dbkit.WithErr1(s.db.NewSelect().Model(&ns).Where("ns.id = ?", id).Limit(1).Scan(ctx), "GetNamespace").Err()
	if err != nil {
		if dbkit.IsNotFound(err) {
			return nil, NewError(ErrNotFound, "namespace does not exist").WithNamespace(id)
		}
		return nil, err
	}
	return &ns, nil
}

// GetNamespaceByPath loads a namespace by its materialized full path.
func (s *Service) GetNamespaceByPath(ctx context.Context, fullPath string) (*Namespace, error) {
	var ns Namespace
	err := dbkit.WithErr1(s.db.NewSelect().Model(&ns).Where("full_path = ?", fullPath).Limit(1).Scan(ctx), "GetNamespaceByPath").Err()
	if err != nil {
		if dbkit.IsNotFound(err) {
			return nil, NewError(ErrNotFound, "namespace does not exist")
		}
		return nil, err
	}
	return &ns, nil
}

// Ancestors returns the chain from the namespace itself up to the root,
// target first, root last. The whole chain is fetched with a single indexed
// lookup over the materialized path prefixes rather than one query per level.
func (s *Service) Ancestors(ctx context.Context, id string) ([]Namespace, error) {
	ns, err := s.GetNamespace(ctx, id)
	if err != nil {
		return nil, err
	}

	paths := ancestorPaths(ns.FullPath)
	var chain []Namespace
	err = dbkit.WithErr1(s.db.NewSelect().Model(&chain).Where("full_path IN (?)", bun.In(paths)).Order("depth DESC").Scan(ctx), "Ancestors").Err()
	if err != nil {
		return nil, err
	}

	// Every path prefix must resolve to a stored node, otherwise the tree
	// lost a link somewhere.
	if len(chain) != len(paths) {
		return nil, NewError(ErrInconsistent, "ancestor chain has missing nodes").WithNamespace(id)
	}
	return chain, nil
}

// Descendants returns every namespace strictly below the given one, ordered
// by path. Uses the path-prefix index; no recursion.
func (s *Service) Descendants(ctx context.Context, id string) ([]Namespace, error) {
	ns, err := s.GetNamespace(ctx, id)
	if err != nil {
		return nil, err
	}

	var subtree []Namespace
	err = dbkit.WithErr1(s.db.NewSelect().Model(&subtree).Where("full_path LIKE ?", ns.FullPath+PathSeparator+"%").Order("full_path ASC").Scan(ctx), "Descendants").Err()
	if err != nil {
		return nil, err
	}
	return subtree, nil
}

// MoveNamespace reparents a namespace and recomputes full path and depth for
// it and every descendant. Fails with ErrCycle when the new parent is the
// namespace itself or one of its descendants. The subtree recompute runs in a
// serializable transaction so concurrent readers observe either the old or
// the new tree, never a mix.
func (s *Service) MoveNamespace(ctx context.Context, id, newParentID string) error {
	if id == newParentID {
		return NewError(ErrCycle, "namespace cannot be its own parent").WithNamespace(id)
	}

	return s.mutateTree(ctx, func(db dbkit.IDB) error {
		ns, err := getNamespaceIn(ctx, db, id)
		if err != nil {
			return err
		}
		if ns.IsRoot() {
			return NewError(ErrConflict, "root namespace cannot be moved").WithNamespace(id)
		}
		parent, err := getNamespaceIn(ctx, db, newParentID)
		if err != nil {
			return err
		}
		if ns.IsAncestorOf(parent) {
			return NewError(ErrCycle, "new parent is a descendant of the namespace").
				WithNamespace(id)
		}
		if ns.ParentID == parent.ID {
			return nil // already there
		}

		taken, err := dbkit.Exists[Namespace](ctx, db, func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("parent_id = ? AND name = ?", parent.ID, ns.Name)
		})
		if err != nil {
			return dbkit.WithErr1(err, "MoveNamespace").Err()
		}
		if taken {
			return NewError(ErrConflict, "sibling with this name already exists").
				WithNamespace(parent.ID)
		}

		oldPath := ns.FullPath
		ns.ParentID = parent.ID
		ns.FullPath = parent.ChildPath(ns.Name)
		ns.Depth = parent.Depth + 1

		result, err := db.NewUpdate().Model(ns).
			Column("parent_id", "full_path", "depth").
			WherePK().Exec(ctx)
		if err = dbkit.WithErr(result, err, "MoveNamespace").Err(); err != nil {
			return err
		}

		return rebaseSubtree(ctx, db, oldPath, ns.FullPath, ns.Depth-depthOf(oldPath))
	})
}

// RenameNamespace changes a namespace's name and cascades the full path
// recompute to the whole subtree, inside the same transactional boundary as
// MoveNamespace.
func (s *Service) RenameNamespace(ctx context.Context, id, newName string) error {
	if err := validateNamespaceName(newName); err != nil {
		return err
	}

	return s.mutateTree(ctx, func(db dbkit.IDB) error {
		ns, err := getNamespaceIn(ctx, db, id)
		if err != nil {
			return err
		}
		if ns.Name == newName {
			return nil
		}

		if !ns.IsRoot() {
			taken, err := dbkit.Exists[Namespace](ctx, db, func(q *bun.SelectQuery) *bun.SelectQuery {
				return q.Where("parent_id = ? AND name = ?", ns.ParentID, newName)
			})
			if err != nil {
				return dbkit.WithErr1(err, "RenameNamespace").Err()
			}
			if taken {
				return NewError(ErrConflict, "sibling with this name already exists").
					WithNamespace(ns.ParentID)
			}
		}

		oldPath := ns.FullPath
		ns.Name = newName
		ns.FullPath = replaceLastSegment(oldPath, newName)

		result, err := db.NewUpdate().Model(ns).
			Column("name", "full_path").
			WherePK().Exec(ctx)
		if err = dbkit.WithErr(result, err, "RenameNamespace").Err(); err != nil {
			if dbkit.IsDuplicate(err) {
				return NewError(ErrConflict, "namespace path already exists")
			}
			return err
		}

		return rebaseSubtree(ctx, db, oldPath, ns.FullPath, 0)
	})
}

// SetNamespaceDomain updates the optional domain tag. Domain changes never
// touch paths or depths.
func (s *Service) SetNamespaceDomain(ctx context.Context, id, domain string) error {
	result, err := s.db.NewUpdate().Table("namespaces").
		Set("domain = ?", domain).
		Set("updated_at = current_timestamp").
		Where("id = ?", id).Exec(ctx)
	if err = dbkit.WithErr(result, err, "SetNamespaceDomain").Err(); err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return NewError(ErrNotFound, "namespace does not exist").WithNamespace(id)
	}
	return nil
}

// DeleteNamespace removes a leaf namespace. Deletion is RESTRICT, never
// cascade: a namespace with children, with role assignments, or owning role
// definitions is rejected with ErrConflict.
func (s *Service) DeleteNamespace(ctx context.Context, id string) error {
	return s.mutateTree(ctx, func(db dbkit.IDB) error {
		ns, err := getNamespaceIn(ctx, db, id)
		if err != nil {
			return err
		}

		hasChildren, err := dbkit.Exists[Namespace](ctx, db, func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("parent_id = ?", ns.ID)
		})
		if err != nil {
			return dbkit.WithErr1(err, "DeleteNamespace").Err()
		}
		if hasChildren {
			return NewError(ErrConflict, "namespace has children").WithNamespace(id)
		}

		hasAssignments, err := dbkit.Exists[UserNamespaceRole](ctx, db, func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("namespace_id = ?", ns.ID)
		})
		if err != nil {
			return dbkit.WithErr1(err, "DeleteNamespace").Err()
		}
		if hasAssignments {
			return NewError(ErrConflict, "namespace has active role assignments").WithNamespace(id)
		}

		ownsRoles, err := dbkit.Exists[Role](ctx, db, func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("origin_namespace_id = ?", ns.ID)
		})
		if err != nil {
			return dbkit.WithErr1(err, "DeleteNamespace").Err()
		}
		if ownsRoles {
			return NewError(ErrConflict, "namespace owns role definitions").WithNamespace(id)
		}

		result, err := db.NewDelete().Table("namespaces").Where("id = ?", ns.ID).Exec(ctx)
		return dbkit.WithErr(result, err, "DeleteNamespace").Err()
	})
}

// mutateTree wraps a structural tree mutation in a serializable transaction
// and records it on the transaction monitor.
func (s *Service) mutateTree(ctx context.Context, fn func(db dbkit.IDB) error) error {
	return s.transactionWith(ctx, dbkit.SerializableTxOptions(), fn)
}

// rebaseSubtree rewrites full_path and depth for every node under oldPath
// after a move or rename. depthDelta is zero for renames.
func rebaseSubtree(ctx context.Context, db dbkit.IDB, oldPath, newPath string, depthDelta int) error {
	var subtree []Namespace
	err := dbkit.WithErr1(db.NewSelect().Model(&subtree).Where("full_path LIKE ?", oldPath+PathSeparator+"%").Scan(ctx), "RebaseSubtree").Err()
	if err != nil {
		return err
	}

	for i := range subtree {
		node := &subtree[i]
		node.FullPath = rebasePath(node.FullPath, oldPath, newPath)
		node.Depth += depthDelta

		result, err := db.NewUpdate().Model(node).
			Column("full_path", "depth").
			WherePK().Exec(ctx)
		if err = dbkit.WithErr(result, err, "RebaseSubtree").Err(); err != nil {
			return err
		}
	}
	return nil
}

func getNamespaceIn(ctx context.Context, db dbkit.IDB, id string) (*Namespace, error) {
	var ns Namespace
	err := dbkit.WithErr1(db.NewSelect().Model(&ns).Where("ns.id = ?", id).Limit(1).Scan(ctx), "GetNamespace").Err()
	if err != nil {
		if dbkit.IsNotFound(err) {
			return nil, NewError(ErrNotFound, "namespace does not exist").WithNamespace(id)
		}
		return nil, err
	}
	return &ns, nil
}

// ============================================================================
// PATH MATH
// ============================================================================

// ancestorPaths expands a full path into the paths of the node and all its
// ancestors, most specific first: "a/b/c" -> ["a/b/c", "a/b", "a"].
func ancestorPaths(fullPath string) []string {
	segments := strings.Split(fullPath, PathSeparator)
	paths := make([]string, 0, len(segments))
	for i := len(segments); i > 0; i-- {
		paths = append(paths, strings.Join(segments[:i], PathSeparator))
	}
	return paths
}

// depthOf derives the depth encoded in a full path (root = 0).
func depthOf(fullPath string) int {
	return strings.Count(fullPath, PathSeparator)
}

// rebasePath swaps the oldPrefix of a descendant path for newPrefix.
func rebasePath(path, oldPrefix, newPrefix string) string {
	return newPrefix + strings.TrimPrefix(path, oldPrefix)
}

// replaceLastSegment swaps the final name segment of a path.
func replaceLastSegment(path, name string) string {
	idx := strings.LastIndex(path, PathSeparator)
	if idx < 0 {
		return name
	}
	return path[:idx+1] + name
}

func validateNamespaceName(name string) error {
	if name == "" {
		return NewError(ErrConflict, "namespace name cannot be empty")
	}
	if strings.Contains(name, PathSeparator) {
		return NewError(ErrConflict, "namespace name cannot contain the path separator")
	}
	return nil
}
