// Package rbac decides what a session may do with a document.
package rbac

import "notespace/client/internal/content"

type Role string
type Action string

const (
	RoleViewer Role = "viewer"
	RoleEditor Role = "editor"
	RoleOwner  Role = "owner"
)

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionShare  Action = "share"
	ActionDelete Action = "delete"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleOwner:
		return true
	case RoleEditor:
		return action == ActionRead || action == ActionWrite
	case RoleViewer:
		return action == ActionRead
	default:
		return false
	}
}

// Normalize maps an unknown role to viewer.
func Normalize(role string) Role {
	switch Role(role) {
	case RoleViewer, RoleEditor, RoleOwner:
		return Role(role)
	default:
		return RoleViewer
	}
}

// Grantable reports whether role can be handed out through sharing.
func Grantable(role string) bool {
	return Role(role) == RoleViewer || Role(role) == RoleEditor
}

// ForDocument resolves the caller's role: owners own, everyone else gets the
// shared role (viewer when unknown).
func ForDocument(owner, user content.ID, shared string) Role {
	if owner != "" && owner == user {
		return RoleOwner
	}
	if shared == "" && owner == "" {
		// no owner information: the document is treated as owned
		return RoleOwner
	}
	return Normalize(shared)
}
