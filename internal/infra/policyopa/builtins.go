package policyopa

import "github.com/open-policy-agent/opa/ast"

// allowedBuiltins keeps authorization rules pure: no http.send, time or
// randomness, so a decision depends only on its input.
var allowedBuiltins = map[string]struct{}{
	"concat":     {},
	"contains":   {},
	"count":      {},
	"endswith":   {},
	"eq":         {},
	"equal":      {},
	"lower":      {},
	"neq":        {},
	"object.get": {},
	"split":      {},
	"sprintf":    {},
	"startswith": {},
	"trim":       {},
	"upper":      {},
}

func filterBuiltins(builtins []*ast.Builtin) []*ast.Builtin {
	allowed := make([]*ast.Builtin, 0, len(builtins))
	for _, builtin := range builtins {
		if _, ok := allowedBuiltins[builtin.Name]; !ok {
			continue
		}
		allowed = append(allowed, builtin)
	}
	return allowed
}
