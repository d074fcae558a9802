package navigation

import "rewards/internal/domain/role"

// LoginRoute is the public landing route holding the login form.
const LoginRoute = "/"

// Item is one entry of a role's navigation menu.
type Item struct {
	Path  string
	Label string
}

// HomeRoute returns the landing view for a role, used after login and as the
// fallback target for disallowed access.
// PRE: none
// POST: Returns the role's home route, or LoginRoute for an invalid role
func HomeRoute(r role.Role) string {
	switch r {
	case role.Organization:
		return "/org/dashboard"
	case role.Business:
		return "/business/dashboard"
	case role.Staff:
		return "/staff/customers"
	case role.Customer:
		return "/customer/dashboard"
	case role.Admin:
		return "/admin"
	}
	return LoginRoute
}

var menus = map[role.Role][]Item{
	role.Organization: {
		{Path: "/org/dashboard", Label: "Dashboard"},
		{Path: "/org/businesses", Label: "Businesses"},
		{Path: "/business/transactions", Label: "Transactions"},
	},
	role.Business: {
		{Path: "/business/dashboard", Label: "Dashboard"},
		{Path: "/business/pos", Label: "Customers"},
		{Path: "/business/employees", Label: "Employees"},
		{Path: "/business/offers", Label: "Offers"},
		{Path: "/business/rules", Label: "Rule Management"},
		{Path: "/business/points", Label: "Points"},
		{Path: "/business/upload", Label: "Upload Transactions"},
		{Path: "/business/transactions", Label: "Transactions"},
		{Path: "/business/settings", Label: "Settings"},
	},
	// Staff only see customer registration and rule management.
	role.Staff: {
		{Path: "/staff/customers", Label: "Customer Registration"},
		{Path: "/staff/rules", Label: "Rule Management"},
		{Path: "/business/customers/lookup", Label: "Customer Lookup"},
	},
	role.Customer: {
		{Path: "/customer/dashboard", Label: "Dashboard"},
		{Path: "/customer/offers", Label: "Offers"},
		{Path: "/customer/redeem", Label: "Redeem"},
		{Path: "/customer/profile", Label: "Profile"},
	},
	role.Admin: {
		{Path: "/admin", Label: "Provisioning"},
		{Path: "/admin/audit", Label: "Audit Log"},
	},
}

// Menu returns the navigation entries for a role, home route first.
// The returned slice is a copy.
func Menu(r role.Role) []Item {
	items := menus[r]
	out := make([]Item, len(items))
	copy(out, items)
	return out
}
