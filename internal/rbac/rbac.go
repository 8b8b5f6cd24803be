// Package rbac decides what an address may do to a collection.
package rbac

import "builder/internal/model"

type Role string
type Action string

const (
	RoleViewer  Role = "viewer"
	RoleMinter  Role = "minter"
	RoleManager Role = "manager"
	RoleOwner   Role = "owner"
)

const (
	ActionRead          Action = "read"
	ActionMint          Action = "mint"
	ActionEdit          Action = "edit"
	ActionPublish       Action = "publish"
	ActionManageMinters Action = "manage_minters"
	ActionDelete        Action = "delete"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleOwner:
		return true
	case RoleManager:
		return action == ActionRead || action == ActionEdit || action == ActionMint
	case RoleMinter:
		return action == ActionRead || action == ActionMint
	case RoleViewer:
		return action == ActionRead
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleViewer, RoleMinter, RoleManager, RoleOwner:
		return Role(role)
	default:
		return RoleViewer
	}
}

// RoleFor resolves the strongest role address holds on collection.
func RoleFor(collection model.Collection, address string) Role {
	switch {
	case collection.IsOwner(address):
		return RoleOwner
	case collection.IsManager(address):
		return RoleManager
	case collection.IsMinter(address):
		return RoleMinter
	default:
		return RoleViewer
	}
}

// Allowed is shorthand for Can(RoleFor(collection, address), action).
func Allowed(collection model.Collection, address string, action Action) bool {
	return Can(RoleFor(collection, address), action)
}
