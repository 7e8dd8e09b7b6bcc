package users

// CanManage reports whether actor may edit target's limits and cooldown.
// Admins manage everyone, managers manage users and other managers, plain
// users manage nobody.
func CanManage(actor, target Role) bool {
	switch actor {
	case RoleAdmin:
		return true
	case RoleManager:
		return target == RoleUser || target == RoleManager
	default:
		return false
	}
}

// Visible reports whether target appears in actor's user listing. The
// listing mirrors manageability plus self: everyone sees themselves.
func Visible(actor, target Role, self bool) bool {
	if self {
		return true
	}
	return CanManage(actor, target)
}

// FilterVisible returns the subset of all that actor may see.
func FilterVisible(actorID string, actor Role, all []User) []User {
	out := make([]User, 0, len(all))
	for _, u := range all {
		if Visible(actor, u.Role, u.ID.String() == actorID) {
			out = append(out, u)
		}
	}
	return out
}
