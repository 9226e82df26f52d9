package rbac

const (
	RoleLearner = "learner"
	RoleAdmin   = "admin"
)

const (
	PermSessionCreate  = "session:create"
	PermSessionPlay    = "session:play"
	PermSessionViewOwn = "session:view-own"
	PermSessionViewAll = "session:view-all"
	PermSessionAbandon = "session:abandon"
)

// Default policy. Learners act on their own sessions only; the handlers
// enforce ownership.
var DefaultPolicy = Policy{
	RoleLearner: {
		PermSessionCreate,
		PermSessionPlay,
		PermSessionViewOwn,
	},
	RoleAdmin: {
		"*", // everything
	},
}
