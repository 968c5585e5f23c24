// Package privacy decides whether a caller may perform a CRUD operation on
// an entity. Generated services evaluate the policy before validating the
// request or touching storage.
//
// # Rule Evaluation
//
// A Policy is an ordered list of rules evaluated until one returns a final
// decision:
//
//   - Allow: grants access and stops evaluation
//   - Deny: denies access and stops evaluation
//   - Skip: continues to the next rule
//
// A policy whose rules all skip allows the operation. End a policy with
// AlwaysDenyRule to deny by default:
//
//	policy := privacy.Policy{
//	    privacy.DenyIfNoViewer(),
//	    privacy.AllowVerbsRule(privacy.Get, privacy.List),
//	    privacy.HasRole("admin"),
//	    privacy.OnMutation(privacy.IsOwner("owner_id")),
//	    privacy.AlwaysDenyRule(),
//	}
//
// # Context Integration
//
// The viewer is stored in the context:
//
//	ctx = privacy.WithViewer(ctx, &privacy.SimpleViewer{UserID: "u1", Roles: []string{"user"}})
//
// A decision attached with DecisionContext overrides every rule, which is
// useful for trusted internal callers.
//
// # Errors
//
// Policy.Authorize wraps a denial in a *pgproto.PermissionError, which the
// crud package converts to codes.PermissionDenied.
package privacy
