package policyopa

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"docflow/internal/domain"
	"docflow/internal/usecase"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
)

const defaultQuery = "data.docflow.authz.allow"

//go:embed policy/authz.rego
var defaultModule string

// Engine evaluates usecase.PolicyInput against a rego module. The module is
// compiled once with a restricted builtin set.
type Engine struct {
	query      rego.PreparedEvalQuery
	policyHash string
}

// NewEngine loads the rego files under policyPath, or the embedded default
// module when policyPath is empty.
func NewEngine(ctx context.Context, policyPath string) (*Engine, error) {
	capabilities := ast.CapabilitiesForThisVersion()
	capabilities.Builtins = filterBuiltins(capabilities.Builtins)
	compiler := ast.NewCompiler().WithCapabilities(capabilities)

	options := []func(*rego.Rego){
		rego.Query(defaultQuery),
		rego.Compiler(compiler),
		rego.StrictBuiltinErrors(true),
	}
	var policyHash string
	if strings.TrimSpace(policyPath) == "" {
		options = append(options, rego.Module("docflow/authz.rego", defaultModule))
		policyHash = sha256Hex([]byte(defaultModule))
	} else {
		hash, err := ComputePolicyHashFromPath(policyPath)
		if err != nil {
			return nil, err
		}
		options = append(options, rego.Load([]string{policyPath}, nil))
		policyHash = hash
	}

	prepared, err := rego.New(options...).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare policy: %w", err)
	}
	if err := assertNoForbiddenBuiltins(compiler); err != nil {
		return nil, err
	}
	return &Engine{query: prepared, policyHash: policyHash}, nil
}

func (e *Engine) PolicyHash() string {
	return e.policyHash
}

func (e *Engine) Authorize(ctx context.Context, in usecase.PolicyInput) error {
	if e == nil {
		return errors.New("policy engine is nil")
	}
	if in.Actor.ID == "" {
		return domain.Errorf(domain.KindUnauthorized, "actor is required for %s", in.Action)
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(policyInput(in)))
	if err != nil {
		return fmt.Errorf("evaluate policy: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return errors.New("empty policy result")
	}
	allowed, ok := results[0].Expressions[0].Value.(bool)
	if !ok {
		return fmt.Errorf("policy result is %T, want bool", results[0].Expressions[0].Value)
	}
	if !allowed {
		return domain.Errorf(domain.KindForbidden, "%s denied for actor %s", in.Action, in.Actor.ID)
	}
	return nil
}

func policyInput(in usecase.PolicyInput) map[string]any {
	roles := in.Actor.Roles
	if roles == nil {
		roles = []string{}
	}
	input := map[string]any{
		"action": string(in.Action),
		"actor": map[string]any{
			"id":     in.Actor.ID,
			"roles":  roles,
			"scopes": in.Actor.Scopes,
		},
	}
	if in.Document != nil {
		input["document"] = map[string]any{
			"id":       in.Document.ID,
			"owner_id": in.Document.OwnerID,
			"status":   string(in.Document.Status),
		}
	}
	if in.Review != nil {
		input["review"] = map[string]any{
			"id":             in.Review.ID,
			"document_id":    in.Review.DocumentID,
			"reviewer_id":    in.Review.ReviewerID,
			"assigned_by_id": in.Review.AssignedByID,
			"state":          string(in.Review.State()),
		}
	}
	return input
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
			if _, ok := allowedBuiltins[name]; ok {
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

var _ usecase.Policy = (*Engine)(nil)
