// Package permission maps warehouse roles to permission bitmasks and to the
// OAuth-style scopes carried in access tokens.
//
// # Roles
//
// The standard set built by [NewStandard] mirrors the original backend:
//
//	admin    read, write, update, delete, admin   scopes user, admin, manager
//	manager  read, write, update                  scopes user, manager
//	user     read                                 scopes user
//
// Any role name the manager does not know resolves to the default role
// (user). Role names are matched case-insensitively.
//
// # Architecture boundaries
//
// This package is a pure in-memory data structure with no I/O. It must not
// import wmsauth, jwt or session.
package permission
