package privacy

import (
	"context"
	"fmt"
	"slices"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// Viewer represents the authenticated caller of a request.
type Viewer interface {
	// GetID returns the viewer's unique identifier.
	GetID() string
	// GetRoles returns the viewer's roles.
	GetRoles() []string
	// GetTenantID returns the viewer's tenant identifier, or "".
	GetTenantID() string
}

type viewerCtxKey struct{}

// WithViewer returns a new context with the viewer attached.
func WithViewer(ctx context.Context, viewer Viewer) context.Context {
	return context.WithValue(ctx, viewerCtxKey{}, viewer)
}

// ViewerFromContext retrieves the viewer from the context, or nil.
func ViewerFromContext(ctx context.Context) Viewer {
	v, _ := ctx.Value(viewerCtxKey{}).(Viewer)
	return v
}

// SimpleViewer is a basic implementation of the Viewer interface.
type SimpleViewer struct {
	UserID   string
	Roles    []string
	TenantID string
}

// GetID returns the user ID.
func (v *SimpleViewer) GetID() string { return v.UserID }

// GetRoles returns the user's roles.
func (v *SimpleViewer) GetRoles() []string { return v.Roles }

// GetTenantID returns the tenant ID.
func (v *SimpleViewer) GetTenantID() string { return v.TenantID }

// DenyIfNoViewer returns a rule that denies access if no viewer is present.
//
//	privacy.Policy{
//	    privacy.DenyIfNoViewer(),
//	    privacy.HasRole("admin"),
//	    privacy.AlwaysDenyRule(),
//	}
func DenyIfNoViewer() Rule {
	return ContextRule(func(ctx context.Context) error {
		if ViewerFromContext(ctx) == nil {
			return Denyf("pgproto/privacy: viewer required")
		}
		return Skip
	})
}

// HasRole returns a rule that allows access if the viewer has the role.
func HasRole(role string) Rule {
	return HasAnyRole(role)
}

// HasAnyRole returns a rule that allows access if the viewer has any of the roles.
func HasAnyRole(roles ...string) Rule {
	return ContextRule(func(ctx context.Context) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Skip
		}
		for _, role := range roles {
			if slices.Contains(viewer.GetRoles(), role) {
				return Allow
			}
		}
		return Skip
	})
}

// IsOwner returns a rule that allows the operation when the named proto
// field of the request, or of its entity, equals the viewer's ID.
//
//	privacy.OnMutation(privacy.IsOwner("owner_id"))
func IsOwner(field string) Rule {
	return RuleFunc(func(ctx context.Context, op Operation) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Skip
		}
		value, ok := fieldValue(op.Message, field)
		if !ok {
			return Skip
		}
		if value == viewer.GetID() {
			return Allow
		}
		return Skip
	})
}

// TenantRule returns a rule denying the operation when the named field
// does not match the viewer's tenant.
func TenantRule(field string) Rule {
	return RuleFunc(func(ctx context.Context, op Operation) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil || viewer.GetTenantID() == "" {
			return Skip
		}
		value, ok := fieldValue(op.Message, field)
		if !ok {
			return Skip
		}
		if value == viewer.GetTenantID() {
			return Allow
		}
		return Denyf("pgproto/privacy: tenant mismatch")
	})
}

// RequireTenant returns a rule denying every operation of a viewer without tenant.
func RequireTenant() Rule {
	return ContextRule(func(ctx context.Context) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Denyf("pgproto/privacy: viewer required for tenant-scoped operation")
		}
		if viewer.GetTenantID() == "" {
			return Denyf("pgproto/privacy: tenant required")
		}
		return Skip
	})
}

// entityField is the request field carrying the entity in Create and Update requests.
const entityField = "entity"

// fieldValue returns the populated field of m, or of m's entity, rendered as a string.
func fieldValue(m proto.Message, name string) (string, bool) {
	if m == nil {
		return "", false
	}
	msg := m.ProtoReflect()
	if !msg.IsValid() {
		return "", false
	}
	if v, ok := scalarField(msg, name); ok {
		return v, true
	}
	fd := msg.Descriptor().Fields().ByName(entityField)
	if fd == nil || fd.Message() == nil || !msg.Has(fd) {
		return "", false
	}
	return scalarField(msg.Get(fd).Message(), name)
}

func scalarField(msg protoreflect.Message, name string) (string, bool) {
	fd := msg.Descriptor().Fields().ByName(protoreflect.Name(name))
	if fd == nil || fd.IsList() || fd.IsMap() || fd.Message() != nil || !msg.Has(fd) {
		return "", false
	}
	v := msg.Get(fd)
	if fd.Kind() == protoreflect.BytesKind {
		return string(v.Bytes()), true
	}
	return fmt.Sprint(v.Interface()), true
}
