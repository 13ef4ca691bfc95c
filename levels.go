package authkit

import (
	"sort"
	"sync"
)

// Level is a privilege rank. Lower means more powerful: an admin at level 1
// outranks a manager at level 2. The total order between levels is what gates
// role assignment and user management, not role names or table position.
type Level int

// LevelSentinel is strictly less privileged than any defined level. Role
// names missing from the registry resolve to it, so an unknown role can never
// outrank a known one.
const LevelSentinel Level = 1<<31 - 1

// MorePrivileged reports whether l strictly outranks other.
func (l Level) MorePrivileged(other Level) bool {
	return l < other
}

// LevelRegistry holds the privilege level for each role name. It is created
// at startup and should be treated as immutable after initialization.
type LevelRegistry struct {
	mu     sync.RWMutex
	levels map[string]Level
}

// NewLevelRegistry creates an empty level registry.
func NewLevelRegistry() *LevelRegistry {
	return &LevelRegistry{
		levels: make(map[string]Level),
	}
}

// DefaultLevels returns a registry preloaded with the built-in hierarchy:
// admin=1, manager=2, customer=3, user=4.
func DefaultLevels() *LevelRegistry {
	return NewLevelRegistry().
		Define("admin", 1).
		Define("manager", 2).
		Define("customer", 3).
		Define("user", 4)
}

// Define registers a role name at a privilege level. Returns the registry for
// fluent chaining.
//
// Example:
//
//	levels := authkit.NewLevelRegistry().
//	    Define("admin", 1).
//	    Define("manager", 2).
//	    Define("support", 3)
func (lr *LevelRegistry) Define(roleName string, level Level) *LevelRegistry {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	lr.levels[roleName] = level
	return lr
}

// LevelOf returns the privilege level for a role name. Unknown role names
// resolve to LevelSentinel.
func (lr *LevelRegistry) LevelOf(roleName string) Level {
	lr.mu.RLock()
	defer lr.mu.RUnlock()

	if level, ok := lr.levels[roleName]; ok {
		return level
	}
	return LevelSentinel
}

// Known reports whether a role name has a defined level.
func (lr *LevelRegistry) Known(roleName string) bool {
	lr.mu.RLock()
	defer lr.mu.RUnlock()
	_, ok := lr.levels[roleName]
	return ok
}

// RoleNames returns all role names with a defined level, most privileged
// first.
func (lr *LevelRegistry) RoleNames() []string {
	lr.mu.RLock()
	defer lr.mu.RUnlock()

	names := make([]string, 0, len(lr.levels))
	for name := range lr.levels {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if lr.levels[names[i]] != lr.levels[names[j]] {
			return lr.levels[names[i]] < lr.levels[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}

// CanAssign reports whether an actor holding actorRole may assign targetRole
// to someone. The rule is strict: the target role must be strictly less
// privileged than the actor's own. An actor can never hand out a role at or
// above its own level.
func (lr *LevelRegistry) CanAssign(actorRole, targetRole string) bool {
	return lr.LevelOf(actorRole).MorePrivileged(lr.LevelOf(targetRole))
}

// CanManage reports whether an actor holding actorRole may manage a user
// holding targetRole. The policy coincides with CanAssign today, but the two
// checks are distinct operations and are evaluated independently.
func (lr *LevelRegistry) CanManage(actorRole, targetRole string) bool {
	return lr.LevelOf(actorRole).MorePrivileged(lr.LevelOf(targetRole))
}

// AssignableRoles filters roles down to those the actor may assign: strictly
// less privileged than the actor's own role.
func (lr *LevelRegistry) AssignableRoles(actorRole string, roles []Role) []Role {
	actorLevel := lr.LevelOf(actorRole)

	var assignable []Role
	for _, role := range roles {
		if actorLevel.MorePrivileged(lr.LevelOf(role.Name)) {
			assignable = append(assignable, role)
		}
	}
	return assignable
}
