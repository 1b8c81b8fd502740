package policyopa

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/open-policy-agent/opa/ast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/domain"
)

func baseInput() domain.ActionPolicyInput {
	return domain.ActionPolicyInput{
		Action:           domain.ActionInitiateTransfer,
		Role:             string(domain.RoleCustomer),
		AllowedActions:   domain.RoleCustomer.Actions(),
		SensitiveActions: domain.SensitiveActions(),
	}
}

func TestDefaultEngineAllowsPermittedAction(t *testing.T) {
	engine, err := NewDefaultEngine(context.Background())
	require.NoError(t, err)

	first, err := engine.Evaluate(context.Background(), baseInput())
	require.NoError(t, err)
	second, err := engine.Evaluate(context.Background(), baseInput())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.True(t, first.Result.Allow)
	assert.Empty(t, first.Result.Deny)
	assert.NotEmpty(t, first.BundleHash)
	assert.Equal(t, engine.BundleHash(), first.BundleHash)
}

func TestDefaultEngineDenies(t *testing.T) {
	engine, err := NewDefaultEngine(context.Background())
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(in *domain.ActionPolicyInput)
		want   []string
	}{
		{
			name:   "action outside role",
			mutate: func(in *domain.ActionPolicyInput) { in.Action = domain.ActionRotateCAKeys },
			want:   []string{domain.PolicyDenyActionNotAllowed},
		},
		{
			name:   "sensitive without reverification",
			mutate: func(in *domain.ActionPolicyInput) { in.RequiresReauth = true },
			want:   []string{domain.PolicyDenyReauthRequired},
		},
		{
			name: "both",
			mutate: func(in *domain.ActionPolicyInput) {
				in.AllowedActions = nil
				in.RequiresReauth = true
			},
			want: []string{domain.PolicyDenyActionNotAllowed, domain.PolicyDenyReauthRequired},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := baseInput()
			tt.mutate(&in)
			out, err := engine.Evaluate(context.Background(), in)
			require.NoError(t, err)
			assert.False(t, out.Result.Allow)
			codes := make([]string, 0, len(out.Result.Deny))
			for _, d := range out.Result.Deny {
				codes = append(codes, d.Code)
			}
			assert.Equal(t, tt.want, codes)
		})
	}
}

func TestReauthOnlyAppliesToSensitiveActions(t *testing.T) {
	engine, err := NewDefaultEngine(context.Background())
	require.NoError(t, err)

	in := baseInput()
	in.Action = domain.ActionViewAccounts
	in.RequiresReauth = true
	out, err := engine.Evaluate(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, out.Result.Allow)
}

func TestEngineFromBundlePath(t *testing.T) {
	dir := t.TempDir()
	data, err := defaultBundle.ReadFile("policy/authz.rego")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "authz.rego"), data, 0o644))

	engine, err := NewEngineFromBundlePath(context.Background(), dir)
	require.NoError(t, err)
	def, err := NewDefaultEngine(context.Background())
	require.NoError(t, err)
	assert.Equal(t, def.BundleHash(), engine.BundleHash())
}

func TestEngineRejectsForbiddenBuiltins(t *testing.T) {
	for _, expr := range []string{
		"time.now_ns()",
		`http.send({"method": "get", "url": "https://example.com"})`,
		"rand.intn(10)",
		`sprintf("%s", [input.action]) == "x"`,
		`lower(input.action) == "x"`,
		`startswith(input.action, "view")`,
	} {
		t.Run(expr, func(t *testing.T) {
			dir := t.TempDir()
			content := `package certauth.authz
result := {"allow": true, "deny": []} {
  ` + expr + `
}`
			require.NoError(t, os.WriteFile(filepath.Join(dir, "policy.rego"), []byte(content), 0o644))
			_, err := NewEngineFromBundlePath(context.Background(), dir)
			assert.Error(t, err)
		})
	}
}

func TestBundleHashIgnoresNonNormativeFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "authz.rego"), []byte("package certauth.authz"), 0o644))
	before, err := ComputeBundleHashFromPath(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("notes"), 0o644))
	after, err := ComputeBundleHashFromPath(dir)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "data.json"), []byte(`{}`), 0o644))
	changed, err := ComputeBundleHashFromPath(dir)
	require.NoError(t, err)
	assert.NotEqual(t, before, changed)
}

func TestActionPolicyBuiltinsCoverDefaultPolicy(t *testing.T) {
	compiler := ast.NewCompiler().WithCapabilities(restrictCapabilities(ast.CapabilitiesForThisVersion()))
	data, err := defaultBundle.ReadFile("policy/authz.rego")
	require.NoError(t, err)
	module, err := ast.ParseModule("authz.rego", string(data))
	require.NoError(t, err)

	compiler.Compile(map[string]*ast.Module{"authz.rego": module})
	require.False(t, compiler.Failed(), "%v", compiler.Errors)
	require.NoError(t, assertNoForbiddenBuiltins(compiler))

	assert.True(t, allowedBuiltin("count"))
	assert.False(t, allowedBuiltin("sprintf"))
}
