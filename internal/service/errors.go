package service

import (
	"context"
	"errors"

	"connectrpc.com/connect"

	"github.com/mmynk/tripledger/internal/apperr"
)

// codeFor maps the ledger error taxonomy onto Connect codes.
func codeFor(err error) connect.Code {
	switch {
	case errors.Is(err, context.Canceled):
		return connect.CodeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return connect.CodeDeadlineExceeded
	}
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return connect.CodeInvalidArgument
	case apperr.KindConflict:
		return connect.CodeFailedPrecondition
	case apperr.KindAuthorization:
		return connect.CodePermissionDenied
	case apperr.KindNotFound:
		return connect.CodeNotFound
	case apperr.KindTransient:
		return connect.CodeUnavailable
	default:
		// Invariant violations and unclassified failures.
		return connect.CodeInternal
	}
}

func toConnectError(err error) *connect.Error {
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return connectErr
	}
	return connect.NewError(codeFor(err), err)
}

func unauthenticated() *connect.Error {
	return connect.NewError(connect.CodeUnauthenticated, errors.New("no acting member in request"))
}
