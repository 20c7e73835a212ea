package application

import (
	"context"
	"slices"

	"threatgate/internal/domain"
	"threatgate/internal/ports"
)

// PredefinedRoles returns the built-in role catalog.
func PredefinedRoles() []domain.Role {
	return []domain.Role{
		{
			Name:        "admin",
			Permissions: domain.AllPermissions(),
			Description: "Full system access",
		},
		{
			Name: "security_analyst",
			Permissions: []domain.Permission{
				domain.PermissionReadDocuments,
				domain.PermissionReadThreatModels,
				domain.PermissionWriteThreatModels,
			},
			Description: "Can read documents and create threat models",
		},
		{
			Name: "reader",
			Permissions: []domain.Permission{
				domain.PermissionReadDocuments,
				domain.PermissionReadThreatModels,
			},
			Description: "Read-only access",
		},
	}
}

// PermissionGate decides whether a user may perform an action. Decisions are
// boolean; denial is not an error. The role catalog is fixed after
// construction; role assignments and resource grants live for the process
// lifetime only. Mutating calls are not safe for concurrent use - callers
// serialize them.
type PermissionGate struct {
	roles            map[string]domain.Role
	userRoles        map[string]map[string]bool // user_id -> role names
	resourceGrants   map[string]map[string]bool // resource_id -> user_ids
	autoAssignReader bool
	logger           ports.Logger
}

// NewPermissionGate builds a gate with the predefined catalog plus any custom
// roles. When autoAssignReader is true, a user with no roles is assigned
// "reader" on first permission check; otherwise such users are denied
// everything.
func NewPermissionGate(autoAssignReader bool, customRoles []domain.Role, logger ports.Logger) *PermissionGate {
	roles := make(map[string]domain.Role)
	for _, r := range PredefinedRoles() {
		roles[r.Name] = r
	}
	for _, r := range customRoles {
		roles[r.Name] = r
	}
	return &PermissionGate{
		roles:            roles,
		userRoles:        make(map[string]map[string]bool),
		resourceGrants:   make(map[string]map[string]bool),
		autoAssignReader: autoAssignReader,
		logger:           logger,
	}
}

// AssignRole idempotently adds a role to a user. An unknown role name is a
// configuration error, signaled with domain.ErrUnknownRole.
func (g *PermissionGate) AssignRole(userID, roleName string) error {
	if _, ok := g.roles[roleName]; !ok {
		g.logger.Error(context.Background(), "unknown role", "role", roleName)
		return domain.ErrUnknownRole
	}
	if g.userRoles[userID] == nil {
		g.userRoles[userID] = make(map[string]bool)
	}
	g.userRoles[userID][roleName] = true
	g.logger.Info(context.Background(), "role assigned", "user_id", userID, "role", roleName)
	return nil
}

// RevokeRole removes a role from a user. Returns false if the user has no
// assignments at all.
func (g *PermissionGate) RevokeRole(userID, roleName string) bool {
	assigned, ok := g.userRoles[userID]
	if !ok {
		return false
	}
	delete(assigned, roleName)
	g.logger.Info(context.Background(), "role revoked", "user_id", userID, "role", roleName)
	return true
}

// HasPermission reports whether any of the user's roles carries the
// permission. Users without roles are denied unless auto-assign is enabled.
func (g *PermissionGate) HasPermission(userID string, permission domain.Permission) bool {
	assigned := g.userRoles[userID]
	if len(assigned) == 0 {
		if !g.autoAssignReader {
			g.logger.Warn(context.Background(), "user has no roles, denying by default", "user_id", userID)
			return false
		}
		g.logger.Debug(context.Background(), "auto-assigning reader role", "user_id", userID)
		if err := g.AssignRole(userID, "reader"); err != nil {
			return false
		}
		assigned = g.userRoles[userID]
	}
	for roleName := range assigned {
		role, ok := g.roles[roleName]
		if ok && slices.Contains(role.Permissions, permission) {
			return true
		}
	}
	g.logger.Warn(context.Background(), "permission denied", "user_id", userID, "permission", string(permission))
	return false
}

// CheckAccess combines role permissions with per-resource grants. Grants are
// additive and independent of roles.
func (g *PermissionGate) CheckAccess(userID, resourceID string, permission domain.Permission) bool {
	if g.HasPermission(userID, permission) {
		return true
	}
	if g.resourceGrants[resourceID][userID] {
		return true
	}
	g.logger.Warn(context.Background(), "access denied",
		"user_id", userID, "resource_id", resourceID, "permission", string(permission))
	return false
}

func (g *PermissionGate) GrantResourceAccess(userID, resourceID string) {
	if g.resourceGrants[resourceID] == nil {
		g.resourceGrants[resourceID] = make(map[string]bool)
	}
	g.resourceGrants[resourceID][userID] = true
	g.logger.Info(context.Background(), "resource access granted", "user_id", userID, "resource_id", resourceID)
}

func (g *PermissionGate) RevokeResourceAccess(userID, resourceID string) {
	if grants, ok := g.resourceGrants[resourceID]; ok {
		delete(grants, userID)
		g.logger.Info(context.Background(), "resource access revoked", "user_id", userID, "resource_id", resourceID)
	}
}
