package rbac

import "strings"

const (
	RoleTaker = "taker"
	RoleAdmin = "admin"
)

const (
	PermSessionViewAll = "session:view-all"
	PermResultsViewAll = "results:view-all"
	PermSessionsList   = "sessions:list"
	PermStatsView      = "stats:view"
	PermQuizTake       = "quiz:take"
)

// RolePermissions is the default policy. Takers reach their own session
// through the owner check, not through a permission.
var RolePermissions = map[string][]string{
	RoleTaker: {
		PermQuizTake,
	},
	RoleAdmin: {
		"*", // everything
	},
}

// Checker resolves a role's grants once; grants ending in "*" match by prefix.
type Checker struct {
	exact    map[string]map[string]bool
	prefixes map[string][]string
}

func NewChecker(rp map[string][]string) *Checker {
	if rp == nil {
		rp = RolePermissions
	}
	c := &Checker{exact: map[string]map[string]bool{}, prefixes: map[string][]string{}}
	for role, perms := range rp {
		c.exact[role] = map[string]bool{}
		for _, p := range perms {
			if strings.HasSuffix(p, "*") {
				c.prefixes[role] = append(c.prefixes[role], strings.TrimSuffix(p, "*"))
				continue
			}
			c.exact[role][p] = true
		}
	}
	return c
}

func (c *Checker) Has(role, perm string) bool {
	if c.exact[role][perm] {
		return true
	}
	for _, pre := range c.prefixes[role] {
		if strings.HasPrefix(perm, pre) {
			return true
		}
	}
	return false
}
