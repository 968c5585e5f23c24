package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenService(t *testing.T) {
	generator := newGenerator(t, "public", personTable(t))
	person := generator.Graph().Nodes[0]
	src := source(t, NewDialect(generator).GenService(person))

	t.Run("hooks", func(t *testing.T) {
		assert.Contains(t, src, "type Hooks struct {")
		assert.Regexp(t, `PreSave\s+func\(context\.Context, \*pb\.Person\) \(\*pb\.Person, error\)`, src)
		assert.Regexp(t, `ValidateList\s+crud\.Validator\[\*pb\.ListPersonRequest\]`, src)
		assert.Regexp(t, `ValidateEntity\s+crud\.Validator\[\*pb\.Person\]`, src)
	})

	t.Run("service type", func(t *testing.T) {
		assert.Contains(t, src, "pb.UnimplementedPersonServiceServer")
		assert.Regexp(t, `Storage\s+storage\.Storage\[\*pb\.Person\]`, src)
		assert.Regexp(t, `Policy\s+privacy\.Policy`, src)
		assert.Contains(t, src, "var _ pb.PersonServiceServer = (*Service)(nil)")
		assert.Contains(t, src, "func NewService(store storage.Storage[*pb.Person], policy privacy.Policy) *Service {")
		assert.Regexp(t, `Log:\s+zap\.NewNop\(\),`, src)
		assert.Regexp(t, `Entity:\s+Label,`, src)
		assert.Regexp(t, `Relation:\s+Person\{\},`, src)
		assert.Regexp(t, `ViewerSetting\s+string`, src)
		assert.Regexp(t, `ViewerSetting:\s+s\.ViewerSetting,`, src)
	})

	t.Run("unary methods", func(t *testing.T) {
		assert.Contains(t, src, "func (s *Service) Create(ctx context.Context, req *pb.CreatePersonRequest) (*pb.CreatePersonResponse, error) {")
		assert.Contains(t, src, "e, err := crud.Create(ctx, s.handler(), req, func(ctx context.Context) (*pb.Person, error) {")
		assert.Contains(t, src, "return e, s.ValidateCreate(ctx, req, e)")
		assert.Contains(t, src, "id, err := s.ID(req)")
		assert.Contains(t, src, "e, err := crud.Get(ctx, s.handler(), req, id)")
		assert.Contains(t, src, "return nil, crud.Status(s.Log, err)")
		assert.Contains(t, src, "return &pb.DeletePersonResponse{}, nil")
	})

	t.Run("qualifiers restrict update and delete", func(t *testing.T) {
		assert.Contains(t, src, "var where []sql.Predicate")
		assert.Contains(t, src, "where = append(where, ByNameQualifiers(req.GetByName())...)")
		assert.Contains(t, src, "}, req.GetSparse(), where...)")
		assert.Contains(t, src, "}, where...); err != nil {")
	})

	t.Run("list streams", func(t *testing.T) {
		assert.Contains(t, src, "func (s *Service) List(req *pb.ListPersonRequest, stream grpc.ServerStreamingServer[pb.ListPersonResponse]) error {")
		assert.Contains(t, src, "err := crud.List(stream.Context(), s.handler(), req, check, s.Query(req), stream, wrap)")
		assert.Contains(t, src, "return crud.Status(s.Log, err)")
	})

	t.Run("query", func(t *testing.T) {
		assert.Contains(t, src, "q := sql.Select().From(Table)")
		assert.Contains(t, src, "if n := req.GetLimit(); n > 0 {")
		assert.Contains(t, src, "q = q.Limit(int(n))")
		assert.Contains(t, src, "q = q.Offset(int(req.GetOffset()))")
		assert.Contains(t, src, "q = q.Where(ByNameQualifiers(req.GetByName())...)")
	})

	t.Run("identifier and entity", func(t *testing.T) {
		assert.Contains(t, src, "func (s *Service) ID(req proto.Message) (any, error) {")
		assert.Contains(t, src, "case *pb.UpdatePersonRequest:")
		assert.Contains(t, src, "return wire.UUID(req.GetId()), nil")
		assert.Contains(t, src, `return nil, fmt.Errorf("person: no identifier in %T", req)`)
		assert.Contains(t, src, `return nil, pgproto.NewValidationError(string(req.ProtoReflect().Descriptor().Name()), "entity is required")`)
		assert.Contains(t, src, "return s.Hooks.PreSave(ctx, e)")
	})

	t.Run("validators", func(t *testing.T) {
		assert.Contains(t, src, "res := validate.New(string(req.ProtoReflect().Descriptor().Name()))")
		assert.Contains(t, src, `res.Check(req.GetLimit() >= 0, "limit must not be negative")`)
		assert.Contains(t, src, `res.Check(req.GetOffset() >= 0, "offset must not be negative")`)
		assert.Contains(t, src, "crud.Into(ctx, res, req, s.Hooks.ValidateUpdate)")
		assert.Contains(t, src, "crud.Into(ctx, res, e, s.Hooks.ValidateEntity)")
		assert.Contains(t, src, "func (s *Service) ValidateDelete(ctx context.Context, req *pb.DeletePersonRequest) error {")
	})
}

func TestGenServiceWithoutQualifiers(t *testing.T) {
	generator := newGenerator(t, "audit", itemTable(t))
	src := source(t, NewDialect(generator).GenService(generator.Graph().Nodes[0]))

	assert.NotContains(t, src, "where")
	assert.Contains(t, src, "}, req.GetSparse())")
	assert.Contains(t, src, "}); err != nil {")
	assert.Contains(t, src, "return req.GetId(), nil")
}
