package permission

// Permission names.
const (
	Read   = "read"
	Write  = "write"
	Update = "update"
	Delete = "delete"
	Admin  = "admin"
)

// Role names.
const (
	RoleNameAdmin   = "admin"
	RoleNameManager = "manager"
	RoleNameUser    = "user"
)

// Scope names carried in access tokens.
const (
	ScopeAdmin   = "admin"
	ScopeManager = "manager"
	ScopeUser    = "user"
)

// NewStandard returns a frozen manager with the admin, manager and user
// roles. Unknown roles resolve to user.
func NewStandard() (*RoleManager, error) {
	reg := NewRegistry()
	for _, name := range []string{Read, Write, Update, Delete, Admin} {
		if _, err := reg.Register(name); err != nil {
			return nil, err
		}
	}
	reg.Freeze()

	rm := NewRoleManager(reg)
	roles := []struct {
		name   string
		perms  []string
		scopes []string
	}{
		{RoleNameAdmin, []string{Read, Write, Update, Delete, Admin}, []string{ScopeUser, ScopeAdmin, ScopeManager}},
		{RoleNameManager, []string{Read, Write, Update}, []string{ScopeUser, ScopeManager}},
		{RoleNameUser, []string{Read}, []string{ScopeUser}},
	}
	for _, r := range roles {
		if err := rm.RegisterRole(r.name, r.perms, r.scopes); err != nil {
			return nil, err
		}
	}
	if err := rm.SetDefault(RoleNameUser); err != nil {
		return nil, err
	}
	rm.Freeze()
	return rm, nil
}
