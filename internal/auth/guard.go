package auth

// DefaultAdminRoleIDs are the guild roles admitted to admin-only routes when
// none are configured.
var DefaultAdminRoleIDs = []string{
	"1362205859215839322",
	"1362212187145506956",
}

// RoleAllowList is the fixed set of role ids granted admin access.
type RoleAllowList struct {
	roles map[string]struct{}
}

// NewRoleAllowList builds an allow-list. Empty ids are ignored.
func NewRoleAllowList(ids []string) RoleAllowList {
	roles := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			roles[id] = struct{}{}
		}
	}
	return RoleAllowList{roles: roles}
}

// Len returns the number of allowed roles.
func (a RoleAllowList) Len() int {
	return len(a.roles)
}

// Allows reports whether any of the given roles is on the list.
func (a RoleAllowList) Allows(roles []string) bool {
	for _, r := range roles {
		if _, ok := a.roles[r]; ok {
			return true
		}
	}
	return false
}

// RequireLogin admits any authenticated session.
func RequireLogin(s Session) (*SessionUser, error) {
	auth, ok := s.(*Authenticated)
	if !ok || auth == nil {
		return nil, ErrUnauthenticated
	}
	return &auth.User, nil
}

// RequireAdminRole admits authenticated sessions holding an allowed role.
func (a RoleAllowList) RequireAdminRole(s Session) (*SessionUser, error) {
	user, err := RequireLogin(s)
	if err != nil {
		return nil, err
	}
	if !a.Allows(user.Roles) {
		return nil, ErrInsufficientPermissions
	}
	return user, nil
}
