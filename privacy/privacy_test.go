package privacy_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/pgproto"
	"github.com/syssam/pgproto/privacy"
)

// TestDecisionErrors tests the decision error types and formatting.
func TestDecisionErrors(t *testing.T) {
	tests := []struct {
		name      string
		decision  error
		wantAllow bool
		wantDeny  bool
		wantSkip  bool
	}{
		{name: "allow_decision", decision: privacy.Allow, wantAllow: true},
		{name: "deny_decision", decision: privacy.Deny, wantDeny: true},
		{name: "skip_decision", decision: privacy.Skip, wantSkip: true},
		{name: "allowf_formatted", decision: privacy.Allowf("user %s allowed", "admin"), wantAllow: true},
		{name: "denyf_formatted", decision: privacy.Denyf("user %s denied", "guest"), wantDeny: true},
		{name: "skipf_formatted", decision: privacy.Skipf("rule %d skipped", 1), wantSkip: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantAllow, errors.Is(tt.decision, privacy.Allow))
			assert.Equal(t, tt.wantDeny, errors.Is(tt.decision, privacy.Deny))
			assert.Equal(t, tt.wantSkip, errors.Is(tt.decision, privacy.Skip))
		})
	}
}

func TestAlwaysRules(t *testing.T) {
	ctx := context.Background()
	op := privacy.Operation{Entity: "Person", Verb: privacy.Get}
	assert.ErrorIs(t, privacy.AlwaysAllowRule().Eval(ctx, op), privacy.Allow)
	assert.ErrorIs(t, privacy.AlwaysDenyRule().Eval(ctx, op), privacy.Deny)
}

func TestContextRule(t *testing.T) {
	type key struct{}
	rule := privacy.ContextRule(func(ctx context.Context) error {
		if ctx.Value(key{}) != nil {
			return privacy.Allow
		}
		return privacy.Skip
	})
	op := privacy.Operation{Entity: "Person", Verb: privacy.List}
	assert.ErrorIs(t, rule.Eval(context.Background(), op), privacy.Skip)
	assert.ErrorIs(t, rule.Eval(context.WithValue(context.Background(), key{}, 1), op), privacy.Allow)
}

func TestOnVerbs(t *testing.T) {
	ctx := context.Background()
	rule := privacy.OnVerbs(privacy.AlwaysDenyRule(), privacy.Delete)
	assert.ErrorIs(t, rule.Eval(ctx, privacy.Operation{Verb: privacy.Delete}), privacy.Deny)
	assert.ErrorIs(t, rule.Eval(ctx, privacy.Operation{Verb: privacy.Get}), privacy.Skip)

	mutation := privacy.OnMutation(privacy.AlwaysDenyRule())
	for _, v := range []privacy.Verb{privacy.Create, privacy.Update, privacy.Delete} {
		assert.True(t, v.Mutation())
		assert.ErrorIs(t, mutation.Eval(ctx, privacy.Operation{Verb: v}), privacy.Deny)
	}
	for _, v := range []privacy.Verb{privacy.Get, privacy.List} {
		assert.False(t, v.Mutation())
		assert.ErrorIs(t, mutation.Eval(ctx, privacy.Operation{Verb: v}), privacy.Skip)
	}
}

func TestVerbsRules(t *testing.T) {
	ctx := context.Background()
	deny := privacy.DenyVerbsRule(privacy.Update, privacy.Delete)
	err := deny.Eval(ctx, privacy.Operation{Verb: privacy.Update})
	assert.ErrorIs(t, err, privacy.Deny)
	assert.Contains(t, err.Error(), "operation update is not allowed")
	assert.ErrorIs(t, deny.Eval(ctx, privacy.Operation{Verb: privacy.Get}), privacy.Skip)

	allow := privacy.AllowVerbsRule(privacy.Get)
	assert.ErrorIs(t, allow.Eval(ctx, privacy.Operation{Verb: privacy.Get}), privacy.Allow)
	assert.ErrorIs(t, allow.Eval(ctx, privacy.Operation{Verb: privacy.Create}), privacy.Skip)
}

func TestPolicyEval(t *testing.T) {
	ctx := context.Background()
	op := privacy.Operation{Entity: "Person", Verb: privacy.Create}

	t.Run("empty allows", func(t *testing.T) {
		assert.NoError(t, privacy.Policy{}.Eval(ctx, op))
	})
	t.Run("all skip allows", func(t *testing.T) {
		p := privacy.Policy{privacy.ContextRule(func(context.Context) error { return nil })}
		assert.NoError(t, p.Eval(ctx, op))
	})
	t.Run("first decision wins", func(t *testing.T) {
		p := privacy.Policy{privacy.AlwaysAllowRule(), privacy.AlwaysDenyRule()}
		assert.NoError(t, p.Eval(ctx, op))
		p = privacy.Policy{privacy.AlwaysDenyRule(), privacy.AlwaysAllowRule()}
		assert.ErrorIs(t, p.Eval(ctx, op), privacy.Deny)
	})
	t.Run("custom error stops evaluation", func(t *testing.T) {
		boom := errors.New("boom")
		p := privacy.Policy{privacy.RuleFunc(func(context.Context, privacy.Operation) error { return boom }), privacy.AlwaysAllowRule()}
		assert.ErrorIs(t, p.Eval(ctx, op), boom)
	})
}

func TestDecisionContext(t *testing.T) {
	ctx := context.Background()
	op := privacy.Operation{Entity: "Person", Verb: privacy.Delete}
	deny := privacy.Policy{privacy.AlwaysDenyRule()}

	allowed := privacy.DecisionContext(ctx, privacy.Allow)
	assert.NoError(t, deny.Eval(allowed, op))
	decision, ok := privacy.DecisionFromContext(allowed)
	assert.True(t, ok)
	assert.NoError(t, decision)

	denied := privacy.DecisionContext(ctx, privacy.Denyf("maintenance"))
	assert.ErrorIs(t, privacy.Policy{privacy.AlwaysAllowRule()}.Eval(denied, op), privacy.Deny)

	assert.Equal(t, ctx, privacy.DecisionContext(ctx, privacy.Skip))
	assert.Equal(t, ctx, privacy.DecisionContext(ctx, nil))
	_, ok = privacy.DecisionFromContext(ctx)
	assert.False(t, ok)
}

func TestAuthorize(t *testing.T) {
	ctx := context.Background()
	op := privacy.Operation{Entity: "Person", Verb: privacy.Update}

	require.NoError(t, privacy.Policy{privacy.AlwaysAllowRule()}.Authorize(ctx, op))

	err := privacy.Policy{privacy.AlwaysDenyRule()}.Authorize(ctx, op)
	require.Error(t, err)
	assert.True(t, pgproto.IsPermissionError(err))
	assert.ErrorIs(t, err, pgproto.ErrPermission)
	assert.ErrorIs(t, err, privacy.Deny)
	var perr *pgproto.PermissionError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "Person", perr.Entity)
	assert.Equal(t, "update", perr.Op)
}
