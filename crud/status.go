package crud

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/syssam/pgproto"
	"github.com/syssam/pgproto/dialect/sql"
)

// Status converts err to a gRPC status error. Read and write failures are
// reported with a generic message; their cause is only logged.
func Status(log *zap.Logger, err error) error {
	if err == nil {
		return nil
	}
	if log == nil {
		log = zap.NewNop()
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	var (
		perr *pgproto.PermissionError
		verr *pgproto.ValidationError
		nerr *pgproto.NotFoundError
	)
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request canceled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	case errors.As(err, &perr):
		return status.Errorf(codes.PermissionDenied, "%s on %s is not allowed", perr.Op, perr.Entity)
	case errors.As(err, &verr):
		return invalid(verr)
	case errors.As(err, &nerr):
		return status.Errorf(codes.NotFound, "%s not found", nerr.Label())
	case sql.IsUniqueConstraintError(err):
		log.Debug("constraint violation", zap.Error(err))
		return status.Error(codes.AlreadyExists, "entity already exists")
	case sql.IsConstraintError(err):
		log.Debug("constraint violation", zap.Error(err))
		return status.Error(codes.FailedPrecondition, "constraint violation")
	case pgproto.IsReadError(err):
		log.Error("read failed", zap.Error(err))
		return status.Error(codes.Internal, "read failed")
	case pgproto.IsWriteError(err):
		log.Error("write failed", zap.Error(err))
		return status.Error(codes.Internal, "write failed")
	default:
		log.Error("request failed", zap.Error(err))
		return status.Error(codes.Internal, "internal error")
	}
}

func invalid(verr *pgproto.ValidationError) error {
	st := status.New(codes.InvalidArgument, verr.Error())
	br := &errdetails.BadRequest{}
	for _, m := range verr.Messages {
		br.FieldViolations = append(br.FieldViolations, &errdetails.BadRequest_FieldViolation{
			Field:       verr.Shape,
			Description: m,
		})
	}
	if len(br.FieldViolations) == 0 {
		return st.Err()
	}
	detailed, err := st.WithDetails(br)
	if err != nil {
		return st.Err()
	}
	return detailed.Err()
}
