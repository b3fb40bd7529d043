// Package policy implements the role-and-ownership rules that decide every
// action in the platform. Evaluation is pure: no I/O, no shared state.
package policy

import "github.com/synergy-framework/blogguard"

// minRoles is the minimum role per action. Actions missing from the table
// require Admin.
var minRoles = map[blogguard.Action]blogguard.Role{
	blogguard.ActionReadPost: blogguard.RoleAnonymous,

	blogguard.ActionCreatePost:    blogguard.RoleWriter,
	blogguard.ActionEditPost:      blogguard.RoleWriter,
	blogguard.ActionPublishPost:   blogguard.RoleWriter,
	blogguard.ActionUnpublishPost: blogguard.RoleWriter,
	blogguard.ActionDeletePost:    blogguard.RoleWriter,

	blogguard.ActionCreateComment:  blogguard.RoleReader,
	blogguard.ActionEditComment:    blogguard.RoleReader,
	blogguard.ActionDeleteComment:  blogguard.RoleReader,
	blogguard.ActionReplyToComment: blogguard.RoleReader,

	blogguard.ActionManageTaxonomy: blogguard.RoleWriter,
	blogguard.ActionDeleteTaxonomy: blogguard.RoleAdmin,

	blogguard.ActionManageUsers:    blogguard.RoleAdmin,
	blogguard.ActionViewAdminStats: blogguard.RoleAdmin,
}

var ownershipSensitive = map[blogguard.Action]bool{
	blogguard.ActionEditPost:      true,
	blogguard.ActionDeletePost:    true,
	blogguard.ActionEditComment:   true,
	blogguard.ActionDeleteComment: true,
}

// MinRole returns the lowest role that may attempt action.
func MinRole(action blogguard.Action) blogguard.Role {
	if r, ok := minRoles[action]; ok {
		return r
	}
	return blogguard.RoleAdmin
}

// OwnershipSensitive reports whether action is restricted to the resource owner.
func OwnershipSensitive(action blogguard.Action) bool {
	return ownershipSensitive[action]
}

// Can evaluates the rules in precedence order; the first match wins:
//
//  1. Admin is allowed everything.
//  2. A principal below the action's minimum role gets InsufficientRole.
//  3. An ownership-sensitive action with no resource gets MissingResource,
//     and one on a resource owned by someone else gets NotOwner.
//  4. Everything else is allowed.
func Can(p blogguard.Principal, action blogguard.Action, res *blogguard.Resource) blogguard.Decision {
	role := p.Highest()
	if role == blogguard.RoleAdmin {
		return blogguard.Allow()
	}
	if !role.AtLeast(MinRole(action)) {
		return blogguard.Deny(blogguard.ReasonInsufficientRole)
	}
	if OwnershipSensitive(action) {
		if res == nil {
			return blogguard.Deny(blogguard.ReasonMissingResource)
		}
		if p.ID == "" || res.OwnerID != p.ID {
			return blogguard.Deny(blogguard.ReasonNotOwner)
		}
	}
	return blogguard.Allow()
}

// Engine is the default blogguard.Policy.
type Engine struct{}

// New returns the policy engine.
func New() Engine { return Engine{} }

// Can implements blogguard.Policy.
func (Engine) Can(p blogguard.Principal, action blogguard.Action, res *blogguard.Resource) blogguard.Decision {
	return Can(p, action, res)
}

// Authorize is Can returning the denial as an error.
func Authorize(pol blogguard.Policy, p blogguard.Principal, action blogguard.Action, res *blogguard.Resource) error {
	return pol.Can(p, action, res).Err(action, res)
}

var _ blogguard.Policy = Engine{}
