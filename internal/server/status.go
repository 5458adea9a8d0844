package server

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/medorders/internal/common"
)

const errorDomain = "medorders"

var kindToCode = map[error]codes.Code{
	common.ErrInvalidRequestShape:    codes.InvalidArgument,
	common.ErrUnknownEntityReference: codes.NotFound,
	common.ErrUnreadableDocument:     codes.FailedPrecondition,
	common.ErrIncompleteExtraction:   codes.FailedPrecondition,
	common.ErrMalformedModelOutput:   codes.FailedPrecondition,
	common.ErrInferenceUnavailable:   codes.Unavailable,
	common.ErrConstraintViolation:    codes.Aborted,
}

// toStatus maps a domain error onto a gRPC status. Only the domain message
// reaches the caller; anything unclassified becomes a bare Internal.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request cancelled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "request timed out")
	}

	var de *common.DomainError
	if !errors.As(err, &de) {
		return status.Error(codes.Internal, "internal error")
	}
	code, ok := kindToCode[de.Kind]
	if !ok {
		code = codes.Internal
	}

	st := status.New(code, de.Message)
	info := &errdetails.ErrorInfo{Reason: de.Code(), Domain: errorDomain, Metadata: map[string]string{}}
	switch {
	case de.Path != "":
		info.Metadata["path"] = de.Path
	case de.Entity != "":
		info.Metadata["entity"] = de.Entity
		info.Metadata["missing_ids"] = joinInts(de.MissingIDs)
	case de.Kind == common.ErrUnreadableDocument:
		info.Metadata["chars"] = strconv.Itoa(de.Chars)
	}
	withDetails, err := st.WithDetails(info)
	if len(de.Fields) > 0 {
		br := &errdetails.BadRequest{}
		for _, f := range de.Fields {
			br.FieldViolations = append(br.FieldViolations, &errdetails.BadRequest_FieldViolation{Field: f, Description: de.Message})
		}
		withDetails, err = st.WithDetails(info, br)
	}
	if err == nil {
		st = withDetails
	}
	return st.Err()
}

func joinInts(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}
