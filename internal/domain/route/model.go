package route

import (
	"slices"
	"strings"

	"rewards/internal/domain/navigation"
	"rewards/internal/domain/role"
)

// Descriptor is a static route compiled into the app.
type Descriptor struct {
	Path  string
	Title string
	// Roles that may render the route. Empty means public.
	Roles []role.Role
	// Summary is markdown shown on the view.
	Summary string
}

// Public reports whether the route needs no session.
func (d Descriptor) Public() bool {
	return len(d.Roles) == 0
}

// Allows reports whether r is in the route's role set.
func (d Descriptor) Allows(r role.Role) bool {
	return slices.Contains(d.Roles, r)
}

func roles(rs ...role.Role) []role.Role { return rs }

// Table lists every view of the portal.
var Table = []Descriptor{
	{Path: navigation.LoginRoute, Title: "Login"},
	{Path: "/create-org", Title: "Create Organization Account",
		Summary: "Register a new car-wash organization. An administrator reviews each request."},

	{Path: "/admin", Title: "Provisioning", Roles: roles(role.Admin),
		Summary: "Legacy provisioning of organizations and businesses. **Superseded by organization accounts.**"},
	{Path: "/admin/audit", Title: "Audit Log", Roles: roles(role.Admin),
		Summary: "Recent sign-in and sign-out events."},

	{Path: "/org/dashboard", Title: "Organization Dashboard", Roles: roles(role.Organization),
		Summary: "Totals across every business in the organization."},
	{Path: "/org/businesses", Title: "Businesses", Roles: roles(role.Organization),
		Summary: "Locations belonging to the organization."},

	{Path: "/business/dashboard", Title: "Business Dashboard", Roles: roles(role.Business),
		Summary: "Today's washes, points issued and redemptions."},
	{Path: "/business/pos", Title: "Customers", Roles: roles(role.Business),
		Summary: "Point-of-sale customer lookup and registration."},
	{Path: "/business/employees", Title: "Employees", Roles: roles(role.Business),
		Summary: "Staff accounts for this business."},
	{Path: "/business/offers", Title: "Offers", Roles: roles(role.Business),
		Summary: "Redeemable offers and their point costs."},
	{Path: "/business/rules", Title: "Rule Management", Roles: roles(role.Business),
		Summary: "Point-earning rules applied to transactions."},
	{Path: "/business/points", Title: "Points", Roles: roles(role.Business),
		Summary: "Points ledger for all customers."},
	{Path: "/business/upload", Title: "Upload Transactions", Roles: roles(role.Business),
		Summary: "Import transactions from CSV or Excel exports."},
	{Path: "/business/settings", Title: "Settings", Roles: roles(role.Business),
		Summary: "Business profile and program settings."},
	{Path: "/business/transactions", Title: "Transactions", Roles: roles(role.Business, role.Organization),
		Summary: "Transactions grouped by customer."},
	{Path: "/business/customers/lookup", Title: "Customer Lookup", Roles: roles(role.Business, role.Staff),
		Summary: "Find a customer by phone or email."},

	{Path: "/staff/customers", Title: "Customer Registration", Roles: roles(role.Staff),
		Summary: "Register walk-in customers and record visits."},
	{Path: "/staff/rules", Title: "Rule Management", Roles: roles(role.Staff),
		Summary: "Rules currently active at this business."},

	{Path: "/customer/dashboard", Title: "My Rewards", Roles: roles(role.Customer),
		Summary: "Your points balance and recent visits."},
	{Path: "/customer/offers", Title: "Offers", Roles: roles(role.Customer),
		Summary: "Offers you can redeem."},
	{Path: "/customer/redeem", Title: "Redeem", Roles: roles(role.Customer),
		Summary: "Redeem points for an offer."},
	{Path: "/customer/profile", Title: "Profile", Roles: roles(role.Customer),
		Summary: "Contact details and preferences."},
}

var byPath = func() map[string]*Descriptor {
	m := make(map[string]*Descriptor, len(Table))
	for i := range Table {
		m[Table[i].Path] = &Table[i]
	}
	return m
}()

// Lookup finds the descriptor for a request path.
// A single trailing slash is ignored.
// PRE: none
// POST: Returns nil when the path is not a known route
func Lookup(path string) *Descriptor {
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	return byPath[path]
}
