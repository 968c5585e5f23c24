package privacy

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"google.golang.org/protobuf/proto"

	"github.com/syssam/pgproto"
)

// Policy decision sentinel errors.
//
// These errors are used as return values from rules to indicate how the
// policy evaluation should proceed. Use errors.Is() to check for them:
//
//	if errors.Is(err, privacy.Allow) { ... }
//	if errors.Is(err, privacy.Deny) { ... }
//	if errors.Is(err, privacy.Skip) { ... }
var (
	// Allow may be returned by rules to indicate that the policy
	// evaluation should terminate with an allow decision.
	Allow = errors.New("pgproto/privacy: allow rule")

	// Deny may be returned by rules to indicate that the policy
	// evaluation should terminate with a deny decision.
	Deny = errors.New("pgproto/privacy: deny rule")

	// Skip may be returned by rules to indicate that the policy
	// evaluation should continue to the next rule.
	Skip = errors.New("pgproto/privacy: skip rule")
)

// Allowf returns a formatted wrapped Allow decision.
func Allowf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Allow)...)
}

// Denyf returns a formatted wrapped Deny decision.
func Denyf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Deny)...)
}

// Skipf returns a formatted wrapped Skip decision.
func Skipf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Skip)...)
}

// Verb is one of the five CRUD service operations.
type Verb string

// Service verbs.
const (
	Create Verb = "create"
	Get    Verb = "get"
	Update Verb = "update"
	Delete Verb = "delete"
	List   Verb = "list"
)

// Mutation reports whether the verb writes.
func (v Verb) Mutation() bool {
	return v == Create || v == Update || v == Delete
}

// Operation is the subject of a policy decision.
type Operation struct {
	// Entity is the entity message name, e.g. "Person".
	Entity string
	// Verb is the service operation.
	Verb Verb
	// ID is the row identifier for Get, Update and Delete.
	ID any
	// Message is the request message being served.
	Message proto.Message
}

// Rule decides whether an operation is allowed.
type Rule interface {
	Eval(context.Context, Operation) error
}

// RuleFunc is an adapter which allows the use of ordinary functions as rules.
type RuleFunc func(context.Context, Operation) error

// Eval returns f(ctx, op).
func (f RuleFunc) Eval(ctx context.Context, op Operation) error {
	return f(ctx, op)
}

// AlwaysAllowRule returns a rule that always returns an Allow decision.
func AlwaysAllowRule() Rule {
	return fixedDecision{Allow}
}

// AlwaysDenyRule returns a rule that always returns a Deny decision.
func AlwaysDenyRule() Rule {
	return fixedDecision{Deny}
}

// ContextRule creates a rule from a context evaluation function.
// Returning nil is equivalent to returning Skip.
func ContextRule(eval func(context.Context) error) Rule {
	return RuleFunc(func(ctx context.Context, _ Operation) error {
		return eval(ctx)
	})
}

// OnVerbs evaluates the given rule only for the given verbs.
func OnVerbs(rule Rule, verbs ...Verb) Rule {
	return RuleFunc(func(ctx context.Context, op Operation) error {
		if slices.Contains(verbs, op.Verb) {
			return rule.Eval(ctx, op)
		}
		return Skip
	})
}

// OnMutation evaluates the given rule only for Create, Update and Delete.
func OnMutation(rule Rule) Rule {
	return OnVerbs(rule, Create, Update, Delete)
}

// DenyVerbsRule returns a rule denying the given verbs.
func DenyVerbsRule(verbs ...Verb) Rule {
	rule := RuleFunc(func(_ context.Context, op Operation) error {
		return Denyf("pgproto/privacy: operation %s is not allowed", op.Verb)
	})
	return OnVerbs(rule, verbs...)
}

// AllowVerbsRule returns a rule allowing the given verbs.
func AllowVerbsRule(verbs ...Verb) Rule {
	rule := RuleFunc(func(context.Context, Operation) error {
		return Allow
	})
	return OnVerbs(rule, verbs...)
}

// Policy is an ordered list of rules. The first rule returning a decision
// other than Skip ends the evaluation.
type Policy []Rule

// Eval evaluates the policy. A decision attached to the context takes
// precedence over the rules. Returns nil when the operation is allowed.
func (p Policy) Eval(ctx context.Context, op Operation) error {
	if decision, ok := DecisionFromContext(ctx); ok {
		return decision
	}
	for _, rule := range p {
		switch decision := rule.Eval(ctx, op); {
		case decision == nil || errors.Is(decision, Skip):
		case errors.Is(decision, Allow):
			return nil
		default:
			return decision
		}
	}
	return nil
}

// Authorize evaluates the policy and converts a denial into a
// *pgproto.PermissionError.
func (p Policy) Authorize(ctx context.Context, op Operation) error {
	if err := p.Eval(ctx, op); err != nil {
		return pgproto.NewPermissionError(op.Entity, string(op.Verb), err)
	}
	return nil
}

type decisionCtxKey struct{}

// DecisionContext creates a new context from the given parent context with
// a policy decision attached to it.
func DecisionContext(parent context.Context, decision error) context.Context {
	if decision == nil || errors.Is(decision, Skip) {
		return parent
	}
	return context.WithValue(parent, decisionCtxKey{}, decision)
}

// DecisionFromContext retrieves the policy decision from the context.
func DecisionFromContext(ctx context.Context) (error, bool) {
	decision, ok := ctx.Value(decisionCtxKey{}).(error)
	if ok && errors.Is(decision, Allow) {
		decision = nil
	}
	return decision, ok
}

type fixedDecision struct {
	decision error
}

func (f fixedDecision) Eval(context.Context, Operation) error {
	return f.decision
}
