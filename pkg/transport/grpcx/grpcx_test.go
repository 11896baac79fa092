package grpcx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/jocax/qollective-sub002/pkg/qerrors"
)

func TestCodeToErrorCode_IsBijective(t *testing.T) {
	require.Equal(t, len(codeToErrorCode), len(errorCodeToCode), "every gRPC code must map to a unique error code")
	for code, errCode := range codeToErrorCode {
		back, ok := errorCodeToCode[errCode]
		require.True(t, ok, "error code %q has no inverse entry", errCode)
		assert.Equal(t, code, back, "round trip through the inverse table must recover the original code")
	}
}

func TestJSONToStruct_RoundTripsThroughStructToJSON(t *testing.T) {
	in := []byte(`{"meta":{"request_id":"r1"},"payload":"hello"}`)

	s, err := jsonToStruct(in)
	require.NoError(t, err)

	out, err := structToJSON(s)
	require.NoError(t, err)

	assert.JSONEq(t, string(in), string(out))
}

func TestJSONToStruct_RejectsInvalidJSON(t *testing.T) {
	_, err := jsonToStruct([]byte(`not json`))
	require.Error(t, err)
	assert.Equal(t, qerrors.KindSerialization, qerrors.KindOf(err))
}

func TestMapStatusToError_MarksTransientCodesRetryable(t *testing.T) {
	cases := []struct {
		code      codes.Code
		retryable bool
	}{
		{codes.Unavailable, true},
		{codes.ResourceExhausted, true},
		{codes.DeadlineExceeded, true},
		{codes.InvalidArgument, false},
		{codes.PermissionDenied, false},
	}
	for _, c := range cases {
		st := status.New(c.code, "boom")
		err := mapStatusToError(st)
		assert.Equal(t, c.retryable, qerrors.IsRetryable(err), "code %v", c.code)
	}
}

func TestMapStatusToError_UnmappedCodeFallsBackToUnknown(t *testing.T) {
	st := status.New(codes.Code(999), "mystery")
	err := mapStatusToError(st)
	remote, ok := err.(*qerrors.RemoteError)
	require.True(t, ok)
	assert.Equal(t, "unknown", remote.Code)
	assert.Contains(t, remote.Message, "mystery")
}

func TestErrorCodeToStatus_RoundTripsThroughCodeToErrorCode(t *testing.T) {
	for code, errCode := range codeToErrorCode {
		if code == codes.OK {
			continue
		}
		err := ErrorCodeToStatus(errCode, "msg")
		st, ok := status.FromError(err)
		require.True(t, ok)
		assert.Equal(t, code, st.Code())
	}
}

func TestErrorCodeToStatus_UnknownErrorCodeMapsToCodesUnknown(t *testing.T) {
	err := ErrorCodeToStatus("not_a_real_code", "msg")
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.Unknown, st.Code())
}
