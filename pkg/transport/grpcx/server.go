package grpcx

import (
	"context"
	"crypto/tls"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/jocax/qollective-sub002/pkg/config"
)

// Handler processes one normalized envelope (as JSON bytes) and returns
// the response envelope, the server-side mirror of ClientTransport.Dispatch.
type Handler func(ctx context.Context, envJSON []byte) ([]byte, error)

// NewServer builds a *grpc.Server with a single generic "Send" unary
// method registered under serviceName, carrying the envelope as a
// structpb.Struct the way ClientTransport.Dispatch produces one
// (spec.md §4.4.2). Real deployments with a compiled .proto would
// register additional methods the same way.
func NewServer(cfg config.GRPCServerConfig, serviceName string, handler Handler) (*grpc.Server, error) {
	var opts []grpc.ServerOption
	if cfg.TLS.Enabled {
		creds, err := serverCredentials(cfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, grpc.Creds(creds))
	}

	srv := grpc.NewServer(opts...)
	desc := &grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*any)(nil),
		Methods: []grpc.MethodDesc{
			{
				MethodName: "Send",
				Handler: func(_ any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
					var req structpb.Struct
					if err := dec(&req); err != nil {
						return nil, err
					}
					reqJSON, err := structToJSON(&req)
					if err != nil {
						return nil, err
					}
					run := func(ctx context.Context, _ any) (any, error) {
						respJSON, err := handler(ctx, reqJSON)
						if err != nil {
							return nil, err
						}
						return jsonToStruct(respJSON)
					}
					if interceptor == nil {
						return run(ctx, &req)
					}
					info := &grpc.UnaryServerInfo{Server: nil, FullMethod: "/" + serviceName + "/Send"}
					return interceptor(ctx, &req, info, run)
				},
			},
		},
		Streams: []grpc.StreamDesc{},
	}
	srv.RegisterService(desc, nil)
	return srv, nil
}

func serverCredentials(cfg config.GRPCServerConfig) (credentials.TransportCredentials, error) {
	cert, err := tls.LoadX509KeyPair(cfg.TLS.CertFile, cfg.TLS.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("loading server cert/key: %w", err)
	}
	tlsCfg := &tls.Config{Certificates: []tls.Certificate{cert}}
	if cfg.TLS.Mode == config.TLSMutual {
		tlsCfg.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return credentials.NewTLS(tlsCfg), nil
}
