package errorbank_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"

	"github.com/gcs-commerce/orderhub/pkg/errorbank"
)

func TestKindMappings(t *testing.T) {
	cases := []struct {
		name   string
		err    *errorbank.AppError
		status int
		code   codes.Code
	}{
		{"bad request", errorbank.BadRequest("bad input"), http.StatusBadRequest, codes.InvalidArgument},
		{"conflict", errorbank.Conflict("taken"), http.StatusConflict, codes.AlreadyExists},
		{"not found", errorbank.NotFound("missing"), http.StatusNotFound, codes.NotFound},
		{"precondition failed", errorbank.PreconditionFailed("stale"), http.StatusPreconditionFailed, codes.FailedPrecondition},
		{"unprocessable", errorbank.Unprocessable("malformed"), http.StatusUnprocessableEntity, codes.FailedPrecondition},
		{"internal", errorbank.Internal("boom"), http.StatusInternalServerError, codes.Internal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.status, tc.err.StatusCode())
			assert.Equal(t, tc.code, tc.err.GRPCCode())
		})
	}
}

func TestNilReceiverDefaults(t *testing.T) {
	var appErr *errorbank.AppError
	assert.Equal(t, http.StatusInternalServerError, appErr.StatusCode())
	assert.Equal(t, codes.Internal, appErr.GRPCCode())
	assert.Equal(t, errorbank.KindInternal, appErr.Kind())
	assert.Equal(t, "<nil>", appErr.Error())
}

func TestEmptyMessageFallsBackToKind(t *testing.T) {
	appErr := errorbank.New(errorbank.KindConflict, "")
	assert.Equal(t, "conflict", appErr.Message())
}

func TestWithCauseUnwraps(t *testing.T) {
	cause := errors.New("connection refused")
	appErr := errorbank.Internal("payment call failed", errorbank.WithCause(cause))

	assert.ErrorIs(t, appErr, cause)
	assert.Contains(t, appErr.Error(), "connection refused")
}

func TestDetails(t *testing.T) {
	appErr := errorbank.PreconditionFailed(
		"stale version",
		errorbank.WithDetail("rejectedVersion", int64(3)),
		errorbank.WithDetails(map[string]any{"currentVersion": int64(7)}),
	)

	assert.Equal(t, int64(3), appErr.Details()["rejectedVersion"])
	assert.Equal(t, int64(7), appErr.Details()["currentVersion"])
}

func TestFrom(t *testing.T) {
	appErr := errorbank.NotFound("missing")
	assert.Same(t, appErr, errorbank.From(appErr))

	wrapped := errorbank.From(errors.New("plain"))
	require.NotNil(t, wrapped)
	assert.Equal(t, errorbank.KindInternal, wrapped.Kind())

	assert.Nil(t, errorbank.From(nil))
}

func TestFromUnwrapsNestedAppError(t *testing.T) {
	inner := errorbank.Conflict("number taken")
	outer := errorbank.Internal("create failed", errorbank.WithCause(inner))

	var appErr *errorbank.AppError
	require.True(t, errors.As(outer, &appErr))
	assert.Equal(t, errorbank.KindInternal, appErr.Kind())
}
