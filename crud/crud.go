// Package crud implements the request flow shared by generated services.
//
// Every operation runs its phases in a fixed order: the privacy policy is
// evaluated first, then the request is validated, and only then is storage
// touched. Errors are returned in the pgproto taxonomy; services convert
// them with Status at the RPC boundary.
package crud

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"

	"github.com/syssam/pgproto"
	"github.com/syssam/pgproto/dialect/sql"
	"github.com/syssam/pgproto/privacy"
	"github.com/syssam/pgproto/storage"
	"github.com/syssam/pgproto/validate"
)

// Handler binds an entity's relation and storage to a policy.
type Handler[E proto.Message] struct {
	// Entity is the entity message name used in errors and policy operations.
	Entity   string
	Relation storage.Relation[E]
	Storage  storage.Storage[E]
	Policy   privacy.Policy
	Log      *zap.Logger
	// ViewerSetting names the session setting, such as "app.viewer", that
	// carries the id of the context viewer to every storage statement. Row
	// level security policies read it with current_setting. Empty disables it.
	ViewerSetting string
}

func (h *Handler[E]) logger() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}

// Authorize evaluates the handler policy for the operation.
func (h *Handler[E]) Authorize(ctx context.Context, verb privacy.Verb, id any, req proto.Message) error {
	return h.Policy.Authorize(ctx, privacy.Operation{Entity: h.Entity, Verb: verb, ID: id, Message: req})
}

// storageContext returns the context storage statements run under.
func (h *Handler[E]) storageContext(ctx context.Context) context.Context {
	if h.ViewerSetting == "" {
		return ctx
	}
	v := privacy.ViewerFromContext(ctx)
	if v == nil {
		return ctx
	}
	return sql.WithVar(ctx, h.ViewerSetting, v.GetID())
}

// Prepare extracts and validates the entity of a create or update request.
type Prepare[E proto.Message] func(context.Context) (E, error)

// Check validates a request without an entity payload.
type Check func(context.Context) error

// Validator records the failures of v in res.
type Validator[M proto.Message] func(ctx context.Context, v M, res *validate.Result)

// Validate runs the validators over req and returns the accumulated failures
// as a *pgproto.ValidationError named after the request message.
func Validate[M proto.Message](ctx context.Context, req M, validators ...Validator[M]) error {
	res := validate.New(string(req.ProtoReflect().Descriptor().Name()))
	Into(ctx, res, req, validators...)
	return res.Err()
}

// Into runs the validators over v, recording failures in res.
func Into[M proto.Message](ctx context.Context, res *validate.Result, v M, validators ...Validator[M]) {
	for _, fn := range validators {
		if fn != nil {
			fn(ctx, v, res)
		}
	}
}

// Get returns the entity identified by id.
func Get[E proto.Message](ctx context.Context, h *Handler[E], req proto.Message, id any) (E, error) {
	var zero E
	if err := h.Authorize(ctx, privacy.Get, id, req); err != nil {
		return zero, err
	}
	q := sql.Select().
		From(h.Relation.Table()).
		Where(sql.ParamEQ(h.Relation.ID(), id)).
		Limit(1)
	for e, err := range h.Storage.Query(h.storageContext(ctx), q) {
		return e, err
	}
	return zero, pgproto.NewNotFoundError(h.Entity, id)
}

// Create stores the entity produced by prepare.
func Create[E proto.Message](ctx context.Context, h *Handler[E], req proto.Message, prepare Prepare[E]) (E, error) {
	var zero E
	if err := h.Authorize(ctx, privacy.Create, nil, req); err != nil {
		return zero, err
	}
	e, err := prepare(ctx)
	if err != nil {
		return zero, err
	}
	return h.Storage.Create(h.storageContext(ctx), e)
}

// Update writes the entity produced by prepare over the row identified by
// id. The predicates restrict which rows may be updated.
func Update[E proto.Message](ctx context.Context, h *Handler[E], req proto.Message, id any, prepare Prepare[E], sparse bool, where ...sql.Predicate) (E, error) {
	var zero E
	if err := h.Authorize(ctx, privacy.Update, id, req); err != nil {
		return zero, err
	}
	e, err := prepare(ctx)
	if err != nil {
		return zero, err
	}
	return h.Storage.Update(h.storageContext(ctx), id, e, sparse, where...)
}

// Delete removes the row identified by id.
func Delete[E proto.Message](ctx context.Context, h *Handler[E], req proto.Message, id any, check Check, where ...sql.Predicate) error {
	if err := h.Authorize(ctx, privacy.Delete, id, req); err != nil {
		return err
	}
	if check != nil {
		if err := check(ctx); err != nil {
			return err
		}
	}
	return h.Storage.Delete(h.storageContext(ctx), id, where...)
}

// List streams every entity matched by q, converting each with wrap.
func List[E proto.Message, R any](ctx context.Context, h *Handler[E], req proto.Message, check Check, q *sql.SelectBuilder, stream grpc.ServerStreamingServer[R], wrap func(E) *R) error {
	if err := h.Authorize(ctx, privacy.List, nil, req); err != nil {
		return err
	}
	if check != nil {
		if err := check(ctx); err != nil {
			return err
		}
	}
	n := 0
	for e, err := range h.Storage.Query(h.storageContext(ctx), q) {
		if err != nil {
			return err
		}
		if err := stream.Send(wrap(e)); err != nil {
			return err
		}
		n++
	}
	h.logger().Debug("list streamed", zap.String("entity", h.Entity), zap.Int("entities", n))
	return nil
}
