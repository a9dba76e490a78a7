package authz

// LoginPath is where identities without any role are sent.
const LoginPath = "/login"

// rolePrecedence orders roles highest priority first. Only the highest
// matching role determines the redirect destination.
var rolePrecedence = []Role{RoleAdmin, RoleCoach, RoleManager, RolePlayer, RoleParent}

// redirectPaths maps each role to its canonical landing route.
var redirectPaths = map[Role]string{
	RoleAdmin:   "/admin",
	RoleCoach:   "/coach",
	RoleManager: "/manager",
	RolePlayer:  "/player",
	RoleParent:  "/parent",
}

// HighestRole returns the highest-precedence role in the set, or the
// empty role when the set is empty.
func HighestRole(roles RoleSet) Role {
	for _, r := range rolePrecedence {
		if roles.Has(r) {
			return r
		}
	}
	return ""
}

// RedirectPath returns the canonical landing route for a role set. The
// set is expected to be the union of roles across all of an identity's
// team memberships, with the global administrator flag flattened into
// the admin role. An empty set routes to the login page.
func RedirectPath(roles RoleSet) string {
	if r := HighestRole(roles); r != "" {
		return redirectPaths[r]
	}
	return LoginPath
}
