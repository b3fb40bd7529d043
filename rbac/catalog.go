package rbac

import (
	"errors"

	"github.com/synergy-framework/blogguard"
	"github.com/synergy-framework/blogguard/policy"
)

func isNotFound(err error) bool {
	return errors.Is(err, blogguard.ErrUserNotFound)
}

// RoleInfo describes one assignable role and the actions it may attempt.
type RoleInfo struct {
	Name    string   `json:"name"`
	Level   int      `json:"level"`
	Actions []string `json:"actions"`
}

// Catalog lists the assignable roles, lowest first, with the actions each
// clears the minimum-role check for. Ownership rules still apply on top.
func Catalog() []RoleInfo {
	roles := []blogguard.Role{blogguard.RoleReader, blogguard.RoleWriter, blogguard.RoleAdmin}
	out := make([]RoleInfo, 0, len(roles))
	for _, r := range roles {
		info := RoleInfo{Name: r.String(), Level: int(r)}
		for _, a := range blogguard.Actions() {
			if r.AtLeast(policy.MinRole(a)) {
				info.Actions = append(info.Actions, a.String())
			}
		}
		out = append(out, info)
	}
	return out
}
