// Package permissions declares every admin route so the admin group can
// refuse anything registered without a matching entry.
package permissions

import "strings"

// Definition describes one admin endpoint.
type Definition struct {
	Key    string `json:"key"`
	Method string `json:"method"`
	Path   string `json:"path"`
	Label  string `json:"label"`
	Module string `json:"module"`
}

// Key builds the lookup key for a method and a gin route pattern.
func Key(method, path string) string {
	return strings.ToUpper(strings.TrimSpace(method)) + " " + strings.TrimSpace(path)
}

func def(method, path, label, module string) Definition {
	return Definition{Key: Key(method, path), Method: method, Path: path, Label: label, Module: module}
}

var definitions = []Definition{
	def("GET", "/v0/admin/me", "Current admin", "Account"),
	def("GET", "/v0/admin/mfa/status", "MFA status", "Account"),
	def("POST", "/v0/admin/mfa/totp/prepare", "Prepare TOTP", "Account"),
	def("POST", "/v0/admin/mfa/totp/confirm", "Confirm TOTP", "Account"),
	def("POST", "/v0/admin/mfa/totp/disable", "Disable TOTP", "Account"),

	def("GET", "/v0/admin/dashboard/kpi", "Dashboard KPI", "Dashboard"),
	def("GET", "/v0/admin/dashboard/top-products", "Top products", "Dashboard"),

	def("GET", "/v0/admin/products", "List products", "Products"),
	def("POST", "/v0/admin/products", "Create product", "Products"),
	def("GET", "/v0/admin/products/:id", "Get product", "Products"),
	def("PUT", "/v0/admin/products/:id", "Update product", "Products"),
	def("DELETE", "/v0/admin/products/:id", "Delete product", "Products"),

	def("GET", "/v0/admin/classes", "List classes", "Classes"),
	def("POST", "/v0/admin/classes", "Create class", "Classes"),
	def("GET", "/v0/admin/classes/:id", "Get class", "Classes"),
	def("PUT", "/v0/admin/classes/:id", "Update class", "Classes"),
	def("DELETE", "/v0/admin/classes/:id", "Delete class", "Classes"),
	def("POST", "/v0/admin/classes/:id/lessons", "Create lesson", "Classes"),
	def("PUT", "/v0/admin/lessons/:id", "Update lesson", "Classes"),
	def("DELETE", "/v0/admin/lessons/:id", "Delete lesson", "Classes"),

	def("GET", "/v0/admin/plans", "List plans", "Catalog"),
	def("POST", "/v0/admin/plans", "Create plan", "Catalog"),
	def("PUT", "/v0/admin/plans/:id", "Update plan", "Catalog"),
	def("DELETE", "/v0/admin/plans/:id", "Delete plan", "Catalog"),
	def("GET", "/v0/admin/sliders", "List sliders", "Catalog"),
	def("POST", "/v0/admin/sliders", "Create slider", "Catalog"),
	def("PUT", "/v0/admin/sliders/:id", "Update slider", "Catalog"),
	def("DELETE", "/v0/admin/sliders/:id", "Delete slider", "Catalog"),

	def("GET", "/v0/admin/mock-tests", "List mock tests", "Mock tests"),
	def("POST", "/v0/admin/mock-tests", "Create mock test", "Mock tests"),
	def("GET", "/v0/admin/mock-tests/:id", "Get mock test", "Mock tests"),
	def("PUT", "/v0/admin/mock-tests/:id", "Update mock test", "Mock tests"),
	def("DELETE", "/v0/admin/mock-tests/:id", "Delete mock test", "Mock tests"),
	def("GET", "/v0/admin/mock-tests/:id/registrations", "List registrations", "Mock tests"),
	def("PUT", "/v0/admin/registrations/:id", "Adjust attempt limit", "Mock tests"),

	def("GET", "/v0/admin/users", "List users", "Users"),
	def("PUT", "/v0/admin/users/:id", "Update user", "Users"),
	def("POST", "/v0/admin/users/:id/access", "Grant access", "Users"),

	def("GET", "/v0/admin/orders", "List orders", "Sales"),
	def("GET", "/v0/admin/purchases", "List purchases", "Sales"),

	def("GET", "/v0/admin/settings", "List settings", "Settings"),
	def("PUT", "/v0/admin/settings/:key", "Update setting", "Settings"),

	def("POST", "/v0/admin/media", "Upload media", "Media"),
	def("DELETE", "/v0/admin/media/*key", "Delete media", "Media"),

	def("GET", "/v0/admin/permissions", "List admin routes", "Account"),
}

// Definitions returns a copy of the declared admin routes.
func Definitions() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	return out
}

// DefinitionMap indexes the declared routes by key.
func DefinitionMap() map[string]Definition {
	out := make(map[string]Definition, len(definitions))
	for _, d := range definitions {
		out[d.Key] = d
	}
	return out
}
