package policy

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
	"github.com/open-policy-agent/opa/storage"
	"github.com/open-policy-agent/opa/storage/inmem"
	"github.com/rs/zerolog"
)

// Guard evaluates Rego policies before destructive fleet operations.
type Guard struct {
	mu       sync.RWMutex
	policies map[string]*compiledPolicy
	store    storage.Store
	logger   zerolog.Logger
	now      func() time.Time
}

// compiledPolicy is a policy with its deny query prepared.
type compiledPolicy struct {
	policy *Policy
	query  rego.PreparedEvalQuery
}

// NewGuard creates a guard with the built-in policies and the policies found
// under paths (.rego or .json files, or directories of them).
func NewGuard(ctx context.Context, logger zerolog.Logger, paths []string) (*Guard, error) {
	g := &Guard{
		policies: make(map[string]*compiledPolicy),
		store:    inmem.New(),
		logger:   logger.With().Str("component", "teardown-guard").Logger(),
		now:      time.Now,
	}

	builtins := BuiltinPolicies()
	for i := range builtins {
		if err := g.compileAndStorePolicy(ctx, &builtins[i]); err != nil {
			return nil, fmt.Errorf("failed to compile built-in policy %s: %w", builtins[i].Name, err)
		}
	}

	if len(paths) > 0 {
		if err := g.LoadPolicies(ctx, paths); err != nil {
			return nil, err
		}
	}

	return g, nil
}

// LoadPolicies loads and compiles policy files.
func (g *Guard) LoadPolicies(ctx context.Context, paths []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	policies, err := NewLoader(g.logger).LoadFromPaths(ctx, paths)
	if err != nil {
		return fmt.Errorf("failed to load policies: %w", err)
	}

	for i := range policies {
		if err := g.compileAndStorePolicy(ctx, &policies[i]); err != nil {
			return fmt.Errorf("failed to compile policy %s: %w", policies[i].Name, err)
		}
	}

	g.logger.Debug().
		Int("count", len(policies)).
		Msg("Policies loaded")

	return nil
}

// Check evaluates every enabled policy against req. A policy that fails to
// evaluate denies the request.
func (g *Guard) Check(ctx context.Context, req Request) (*Decision, error) {
	start := g.now()
	if req.Timestamp.IsZero() {
		req.Timestamp = start
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	decision := &Decision{Allowed: true}

	for _, name := range g.policyNames() {
		cp := g.policies[name]
		if !cp.policy.Enabled {
			continue
		}
		decision.EvaluatedPolicies = append(decision.EvaluatedPolicies, name)

		violations, err := g.evaluatePolicy(ctx, cp, req)
		if err != nil {
			return nil, fmt.Errorf("policy %s: %w", name, err)
		}

		for _, v := range violations {
			if v.Severity.blocks() {
				decision.Allowed = false
				decision.Violations = append(decision.Violations, v)
			} else {
				decision.Warnings = append(decision.Warnings, v)
			}
		}
	}

	decision.Duration = time.Since(start)

	g.logger.Debug().
		Str("operation", string(req.Operation)).
		Str("group", req.Group).
		Bool("allowed", decision.Allowed).
		Int("violations", len(decision.Violations)).
		Dur("duration", decision.Duration).
		Msg("Policy evaluation completed")

	return decision, nil
}

// policyNames returns the policy names in a stable order.
func (g *Guard) policyNames() []string {
	names := make([]string, 0, len(g.policies))
	for name := range g.policies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// evaluatePolicy evaluates a single compiled policy.
func (g *Guard) evaluatePolicy(ctx context.Context, cp *compiledPolicy, req Request) ([]Violation, error) {
	results, err := cp.query.Eval(ctx, rego.EvalInput(req))
	if err != nil {
		return nil, fmt.Errorf("policy evaluation error: %w", err)
	}

	var violations []Violation
	for _, result := range results {
		if len(result.Expressions) == 0 {
			continue
		}
		// The deny rule is a set, surfaced as a slice.
		if denySet, ok := result.Expressions[0].Value.([]interface{}); ok {
			for _, d := range denySet {
				violations = append(violations, createViolation(cp.policy, d, req))
			}
		}
	}

	return violations, nil
}

// createViolation creates a Violation from a deny set entry.
func createViolation(policy *Policy, result interface{}, req Request) Violation {
	violation := Violation{
		Policy:   policy.Name,
		Group:    req.Group,
		Severity: policy.Severity,
	}

	switch v := result.(type) {
	case string:
		violation.Message = v
	case map[string]interface{}:
		if msg, ok := v["message"].(string); ok {
			violation.Message = msg
		}
		if sev, ok := v["severity"].(string); ok {
			violation.Severity = Severity(sev)
		}
		if group, ok := v["group"].(string); ok {
			violation.Group = group
		}
	default:
		violation.Message = fmt.Sprintf("%v", result)
	}

	return violation
}

// compileAndStorePolicy compiles a policy and stores it.
func (g *Guard) compileAndStorePolicy(ctx context.Context, policy *Policy) error {
	module, err := ast.ParseModule(policy.Name, policy.Rego)
	if err != nil {
		return fmt.Errorf("failed to parse policy: %w", err)
	}

	r := rego.New(
		rego.Module(policy.Name, policy.Rego),
		rego.Store(g.store),
		rego.Query(module.Package.Path.String()+".deny"),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("failed to prepare query: %w", err)
	}

	g.policies[policy.Name] = &compiledPolicy{
		policy: policy,
		query:  query,
	}

	g.logger.Debug().
		Str("policy", policy.Name).
		Msg("Policy compiled successfully")

	return nil
}

// ListPolicies returns all loaded policies.
func (g *Guard) ListPolicies() []Policy {
	g.mu.RLock()
	defer g.mu.RUnlock()

	policies := make([]Policy, 0, len(g.policies))
	for _, name := range g.policyNames() {
		policies = append(policies, *g.policies[name].policy)
	}
	return policies
}

// DisablePolicy disables a policy by name.
func (g *Guard) DisablePolicy(name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	cp, exists := g.policies[name]
	if !exists {
		return fmt.Errorf("policy not found: %s", name)
	}

	cp.policy.Enabled = false
	g.logger.Info().Str("policy", name).Msg("Policy disabled")
	return nil
}

// Summary renders a decision for terminal output.
func (d *Decision) Summary() string {
	if d.Allowed && len(d.Warnings) == 0 {
		return "allowed"
	}
	var b strings.Builder
	if d.Allowed {
		b.WriteString("allowed with warnings")
	} else {
		b.WriteString("denied")
	}
	for _, v := range d.Violations {
		fmt.Fprintf(&b, "\n  [%s] %s: %s", v.Severity, v.Policy, v.Message)
	}
	for _, v := range d.Warnings {
		fmt.Fprintf(&b, "\n  [%s] %s: %s", v.Severity, v.Policy, v.Message)
	}
	return b.String()
}
