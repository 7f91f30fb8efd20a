package app

import (
	"net/http"

	"github.com/pms-suite/pms/internal/rbac"
	"github.com/pms-suite/pms/internal/shared"
	"github.com/pms-suite/pms/internal/view"
)

// Menu is the full application menu before filtering.
func Menu() []rbac.NavItem {
	return []rbac.NavItem{
		{Label: "Home", Href: "/", Icon: "home", Public: true},
		{Label: "Projects", Href: "/projects", Icon: "folder", Resource: rbac.ResourceProjects},
		{Label: "Tasks", Href: "/tasks", Icon: "check", Resource: rbac.ResourceTasks},
		{Label: "Assistant", Href: "/assistant", Icon: "chat", Resource: rbac.ResourceTasks},
		{Label: "Departments", Href: "/departments", Icon: "building", Resource: rbac.ResourceDepartments},
		{Label: "Users", Href: "/users", Icon: "users", Resource: rbac.ResourceUsers},
		{
			Label:    "Settings",
			Icon:     "cog",
			Resource: rbac.ResourceSettings,
			Children: []rbac.NavItem{
				{Label: "Workspace & labels", Href: "/settings", Resource: rbac.ResourceSettings},
				{Label: "Permissions", Href: "/permissions", Resource: rbac.ResourceSettings},
			},
		},
	}
}

// NewChrome builds the per-request page frame. Routes behind rbac.Middleware
// reuse the identity it resolved; other pages resolve through the navigator.
func NewChrome(nav *rbac.Navigator) view.ChromeFunc {
	return func(r *http.Request) view.Chrome {
		ctx := r.Context()
		if id := rbac.IdentityFromContext(ctx); id != nil {
			return view.Chrome{
				Nav:       navLinks(rbac.FilterFor(id, Menu())),
				SignedIn:  true,
				RoleLabel: id.Role.Label(),
			}
		}
		userID, ok := shared.CurrentUserID(ctx)
		if !ok {
			return view.Chrome{}
		}
		items := nav.Filter(ctx, Menu(), userID)
		return view.Chrome{Nav: navLinks(items), SignedIn: len(items) > 0}
	}
}

func navLinks(items []rbac.NavItem) []view.NavLink {
	links := make([]view.NavLink, 0, len(items))
	for _, item := range items {
		links = append(links, view.NavLink{
			Label:    item.Label,
			Href:     item.Href,
			Icon:     item.Icon,
			Children: navLinks(item.Children),
		})
	}
	return links
}
