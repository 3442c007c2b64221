package auth

import (
	"fmt"
	"path"
	"slices"
	"sort"
	"strings"
)

// Page tokens with special meaning to the access gate.
const (
	PageLogin  = "login.html"
	PageSignup = "signup.html"
	PageIndex  = "index.html"
	PageUsers  = "users.html"
)

// NavLink is one entry of the navigation menu.
type NavLink struct {
	Page  string `json:"page"`
	Title string `json:"title"`
}

// PageTable maps page tokens to the roles allowed to view them.
// Pages absent from the table are open to any authenticated role.
type PageTable struct {
	perms   map[string][]Role
	public  map[string]bool
	landing string
	login   string
	nav     []NavLink
}

// PageTableOptions groups the inputs of NewPageTable.
type PageTableOptions struct {
	Permissions map[string][]Role
	Public      []string
	Landing     string
	Login       string
	Navigation  []NavLink
}

// NewPageTable builds a table and checks it for redirect loops.
func NewPageTable(opts PageTableOptions) (*PageTable, error) {
	t := &PageTable{
		perms:   make(map[string][]Role, len(opts.Permissions)),
		public:  make(map[string]bool, len(opts.Public)),
		landing: opts.Landing,
		login:   opts.Login,
		nav:     slices.Clone(opts.Navigation),
	}
	if t.landing == "" {
		t.landing = PageIndex
	}
	if t.login == "" {
		t.login = PageLogin
	}
	for page, roles := range opts.Permissions {
		t.perms[page] = slices.Clone(roles)
	}
	for _, page := range opts.Public {
		t.public[page] = true
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// DefaultPageTable returns the inventory application's page permissions.
func DefaultPageTable() *PageTable {
	all := AllRoles()
	stock := []Role{RoleAdmin, RoleInventoryManager}
	t, err := NewPageTable(PageTableOptions{
		Permissions: map[string][]Role{
			PageIndex:         all,
			"products.html":   stock,
			"inventory.html":  stock,
			"branches.html":   stock,
			"invoices.html":   stock,
			"waste.html":      stock,
			"purchases.html":  {RoleAdmin, RolePurchaseManager},
			"cost.html":       all,
			PageUsers:         {RoleAdmin},
		},
		Public:  []string{PageLogin, PageSignup},
		Landing: PageIndex,
		Login:   PageLogin,
		Navigation: []NavLink{
			{Page: PageIndex, Title: "Dashboard"},
			{Page: "products.html", Title: "Products"},
			{Page: "inventory.html", Title: "Inventory"},
			{Page: "branches.html", Title: "Branches"},
			{Page: "invoices.html", Title: "Invoices"},
			{Page: "purchases.html", Title: "Purchases"},
			{Page: "waste.html", Title: "Waste"},
			{Page: "cost.html", Title: "Cost"},
			{Page: PageUsers, Title: "User management"},
		},
	})
	if err != nil {
		panic(err)
	}
	return t
}

// Validate enforces that every role can reach the landing page when it is listed,
// so a denied user is always redirected to a page their role can open.
func (t *PageTable) Validate() error {
	if t.public[t.landing] {
		return fmt.Errorf("landing page %q must not be public", t.landing)
	}
	if !t.public[t.login] {
		return fmt.Errorf("login page %q must be public", t.login)
	}
	for page, roles := range t.perms {
		for _, r := range roles {
			if !r.Valid() {
				return fmt.Errorf("page %q lists unknown role %q", page, r)
			}
		}
	}
	landingRoles, listed := t.perms[t.landing]
	if !listed {
		return nil
	}
	for _, r := range AllRoles() {
		if !slices.Contains(landingRoles, r) {
			return fmt.Errorf("role %q may not view the landing page %q", r, t.landing)
		}
	}
	return nil
}

// IsPublic reports whether page bypasses authentication.
func (t *PageTable) IsPublic(page string) bool { return t.public[page] }

// Landing is where authenticated users are sent by default.
func (t *PageTable) Landing() string { return t.landing }

// Login is where unauthenticated users are sent.
func (t *PageTable) Login() string { return t.login }

// Allows reports whether role may view page.
func (t *PageTable) Allows(page string, role Role) bool {
	roles, listed := t.perms[page]
	if !listed {
		return true
	}
	return slices.Contains(roles, role)
}

// Roles returns the roles listed for page and whether the page is listed at all.
func (t *PageTable) Roles(page string) ([]Role, bool) {
	roles, ok := t.perms[page]
	return slices.Clone(roles), ok
}

// Pages returns all listed page tokens in sorted order.
func (t *PageTable) Pages() []string {
	pages := make([]string, 0, len(t.perms))
	for p := range t.perms {
		pages = append(pages, p)
	}
	sort.Strings(pages)
	return pages
}

// Navigation returns the full navigation menu.
func (t *PageTable) Navigation() []NavLink { return slices.Clone(t.nav) }

// VisibleLinks filters the navigation menu to the pages role may view.
// Links the role cannot follow are hidden rather than disabled.
func (t *PageTable) VisibleLinks(role Role) []NavLink {
	out := make([]NavLink, 0, len(t.nav))
	for _, l := range t.nav {
		if t.Allows(l.Page, role) {
			out = append(out, l)
		}
	}
	return out
}

// PageToken maps a request path such as "/pages/products.html" to its page token.
// The empty path maps to the landing page.
func PageToken(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	base := path.Base(p)
	if base == "." || base == "/" || base == "" {
		return PageIndex
	}
	return base
}
