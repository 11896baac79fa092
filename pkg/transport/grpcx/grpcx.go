// Package grpcx implements the gRPC transport (SPEC_FULL.md §4.4.2): each
// logical method is a unary call carrying the envelope as a structpb.Struct
// side-band message, with status codes mapped to envelope error codes via
// a fixed, bijective table.
package grpcx

import (
	"context"
	"encoding/json"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/jocax/qollective-sub002/pkg/config"
	"github.com/jocax/qollective-sub002/pkg/qerrors"
	"github.com/jocax/qollective-sub002/pkg/transport"
)

// codeToErrorCode and its inverse implement the bijective mapping between
// gRPC status codes and envelope error.code values (spec.md §4.4.2).
var codeToErrorCode = map[codes.Code]string{
	codes.OK:                 "ok",
	codes.Canceled:           "canceled",
	codes.Unknown:            "unknown",
	codes.InvalidArgument:    "validation",
	codes.DeadlineExceeded:   "timeout",
	codes.NotFound:           "not_found",
	codes.AlreadyExists:      "already_exists",
	codes.PermissionDenied:   "forbidden",
	codes.ResourceExhausted:  "rate_limited",
	codes.FailedPrecondition: "failed_precondition",
	codes.Aborted:            "aborted",
	codes.OutOfRange:         "out_of_range",
	codes.Unimplemented:      "unsupported_scheme",
	codes.Internal:           "internal",
	codes.Unavailable:        "connection_failed",
	codes.DataLoss:           "integrity",
	codes.Unauthenticated:    "unauthorized",
}

var errorCodeToCode = invert(codeToErrorCode)

func invert(m map[codes.Code]string) map[string]codes.Code {
	out := make(map[string]codes.Code, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}

// ClientTransport dispatches unary gRPC calls. The method name is derived
// from the endpoint path (e.g. grpc://host:port/package.Service/Method).
type ClientTransport struct {
	conn *grpc.ClientConn
	cfg  config.GRPCClientConfig
}

// Dial opens a ClientConn according to cfg's TLS mode.
func Dial(cfg config.GRPCClientConfig) (*ClientTransport, error) {
	creds := insecure.NewCredentials()
	if cfg.TLS.Enabled {
		tlsCreds, err := buildTransportCredentials(cfg)
		if err != nil {
			return nil, err
		}
		creds = tlsCreds
	}
	conn, err := grpc.NewClient(cfg.Target, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, qerrors.ConnectionFailed("dial "+cfg.Target, err)
	}
	return &ClientTransport{conn: conn, cfg: cfg}, nil
}

func buildTransportCredentials(cfg config.GRPCClientConfig) (credentials.TransportCredentials, error) {
	if cfg.TLS.Mode == config.TLSSkipVerify {
		return credentials.NewTLS(nil), nil
	}
	return credentials.NewClientTLSFromFile(cfg.TLS.CAFile, cfg.TLS.ServerName)
}

// Dispatch invokes ep.URL.Path as a unary gRPC method, marshaling the
// envelope JSON into a structpb.Struct request and converting the
// structpb.Struct reply back to envelope JSON.
func (c *ClientTransport) Dispatch(ctx context.Context, ep transport.Endpoint, envJSON []byte, timeout time.Duration) ([]byte, error) {
	req, err := jsonToStruct(envJSON)
	if err != nil {
		return nil, err
	}

	callCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var reply structpb.Struct
	method := ep.URL.Path
	if err := c.conn.Invoke(callCtx, method, req, &reply); err != nil {
		st, ok := status.FromError(err)
		if !ok {
			return nil, qerrors.ConnectionFailed("invoke "+method, err)
		}
		return nil, mapStatusToError(st)
	}

	return structToJSON(&reply)
}

func mapStatusToError(st *status.Status) error {
	code, ok := codeToErrorCode[st.Code()]
	if !ok {
		code = "unknown"
	}
	retryable := st.Code() == codes.Unavailable || st.Code() == codes.ResourceExhausted || st.Code() == codes.DeadlineExceeded
	return qerrors.Remote(code, st.Message(), nil, retryable)
}

// ErrorCodeToStatus is the server-side half of the bijective mapping,
// exported so a server handler can translate an envelope error code back
// into the gRPC status it returns.
func ErrorCodeToStatus(errorCode string, message string) error {
	code, ok := errorCodeToCode[errorCode]
	if !ok {
		code = codes.Unknown
	}
	return status.Error(code, message)
}

func jsonToStruct(data []byte) (*structpb.Struct, error) {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, qerrors.Serialization("decode envelope for grpc struct", err)
	}
	msg, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, qerrors.Serialization("build grpc struct", err)
	}
	return msg, nil
}

func structToJSON(msg *structpb.Struct) ([]byte, error) {
	data, err := json.Marshal(msg.AsMap())
	if err != nil {
		return nil, qerrors.Serialization("encode grpc struct reply", err)
	}
	return data, nil
}

// Close releases the underlying ClientConn.
func (c *ClientTransport) Close() error { return c.conn.Close() }
