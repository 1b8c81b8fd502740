package policyopa

import "github.com/open-policy-agent/opa/ast"

// actionPolicyBuiltins is everything the action policy needs: membership by
// iteration over input.allowed_actions and input.sensitive_actions, equality
// against input.action, and count over the deny set. Operator bundles get the
// same surface, so a policy can never reach the clock, randomness, the
// network or string formatting that would make a decision unreproducible.
var actionPolicyBuiltins = map[string]struct{}{
	ast.Count.Name:    {},
	ast.Equal.Name:    {},
	ast.NotEqual.Name: {},
	ast.Equality.Name: {},
	ast.Assign.Name:   {},
}

func allowedBuiltin(name string) bool {
	_, ok := actionPolicyBuiltins[name]
	return ok
}

// restrictCapabilities drops every builtin outside the action policy surface
// so the compiler rejects calls to them as undefined functions.
func restrictCapabilities(caps *ast.Capabilities) *ast.Capabilities {
	kept := make([]*ast.Builtin, 0, len(actionPolicyBuiltins))
	for _, builtin := range caps.Builtins {
		if allowedBuiltin(builtin.Name) {
			kept = append(kept, builtin)
		}
	}
	caps.Builtins = kept
	return caps
}
