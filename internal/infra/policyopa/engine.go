package policyopa

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/domain"
)

const defaultQuery = "data.certauth.authz.result"

//go:embed policy/*.rego
var defaultBundle embed.FS

type Engine struct {
	query      rego.PreparedEvalQuery
	bundleHash string
}

// NewDefaultEngine compiles the built-in action policy.
func NewDefaultEngine(ctx context.Context) (*Engine, error) {
	bundleHash, err := ComputeBundleHashFromFS(defaultBundle, "policy")
	if err != nil {
		return nil, err
	}
	var modules []func(*rego.Rego)
	err = fs.WalkDir(defaultBundle, "policy", func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil || d.IsDir() {
			return walkErr
		}
		data, err := fs.ReadFile(defaultBundle, path)
		if err != nil {
			return err
		}
		modules = append(modules, rego.Module(path, string(data)))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return newEngine(ctx, bundleHash, modules...)
}

// NewEngineFromBundlePath compiles an operator supplied bundle directory in
// place of the built-in policy.
func NewEngineFromBundlePath(ctx context.Context, bundlePath string) (*Engine, error) {
	bundleHash, err := ComputeBundleHashFromPath(bundlePath)
	if err != nil {
		return nil, err
	}
	return newEngine(ctx, bundleHash, rego.Load([]string{bundlePath}, nil))
}

func newEngine(ctx context.Context, bundleHash string, sources ...func(*rego.Rego)) (*Engine, error) {
	compiler := ast.NewCompiler().WithCapabilities(restrictCapabilities(ast.CapabilitiesForThisVersion()))

	opts := []func(*rego.Rego){
		rego.Query(defaultQuery),
		rego.Compiler(compiler),
		rego.StrictBuiltinErrors(true),
	}
	opts = append(opts, sources...)
	prepared, err := rego.New(opts...).PrepareForEval(ctx)
	if err != nil {
		return nil, err
	}
	if err := assertNoForbiddenBuiltins(compiler); err != nil {
		return nil, err
	}
	return &Engine{query: prepared, bundleHash: bundleHash}, nil
}

func (e *Engine) BundleHash() string {
	return e.bundleHash
}

func (e *Engine) Evaluate(ctx context.Context, input domain.ActionPolicyInput) (domain.PolicyEvaluation, error) {
	if e == nil {
		return domain.PolicyEvaluation{}, errors.New("policy engine is nil")
	}
	if input.AllowedActions == nil {
		input.AllowedActions = []string{}
	}
	if input.SensitiveActions == nil {
		input.SensitiveActions = []string{}
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return domain.PolicyEvaluation{}, err
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return domain.PolicyEvaluation{}, errors.New("empty policy result")
	}
	result, err := decodePolicyResult(results[0].Expressions[0].Value)
	if err != nil {
		return domain.PolicyEvaluation{}, err
	}
	normalizePolicyResult(&result)
	return domain.PolicyEvaluation{
		BundleHash: e.bundleHash,
		Result:     result,
	}, nil
}

func decodePolicyResult(value any) (domain.PolicyResult, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return domain.PolicyResult{}, err
	}
	var result domain.PolicyResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return domain.PolicyResult{}, err
	}
	return result, nil
}

func normalizePolicyResult(result *domain.PolicyResult) {
	if result == nil {
		return
	}
	if len(result.Deny) > 0 {
		result.Allow = false
	}
	sort.Slice(result.Deny, func(i, j int) bool {
		if result.Deny[i].Code == result.Deny[j].Code {
			return result.Deny[i].Message < result.Deny[j].Message
		}
		return result.Deny[i].Code < result.Deny[j].Code
	})
}

func assertNoForbiddenBuiltins(compiler *ast.Compiler) error {
	if compiler == nil {
		return errors.New("policy compiler is nil")
	}
	forbidden := make(map[string]struct{})
	for _, module := range compiler.Modules {
		ast.WalkTerms(module, func(term *ast.Term) bool {
			call, ok := term.Value.(ast.Call)
			if !ok || len(call) == 0 || call[0] == nil {
				return false
			}
			name := call[0].Value.String()
			if _, ok := ast.BuiltinMap[name]; !ok {
				return false
			}
			if allowedBuiltin(name) {
				return false
			}
			forbidden[name] = struct{}{}
			return false
		})
	}
	if len(forbidden) == 0 {
		return nil
	}
	names := make([]string, 0, len(forbidden))
	for name := range forbidden {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Errorf("forbidden builtins: %s", strings.Join(names, ", "))
}
