// Package rest implements the REST request/reply transport (SPEC_FULL.md
// §4.4.1): a gorilla/mux server accepting either a full-envelope JSON body
// or body-as-payload with header-projected metadata, and an http.Client
// transport that speaks the same projection on the way out.
package rest

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/jocax/qollective-sub002/pkg/codec"
	"github.com/jocax/qollective-sub002/pkg/config"
	"github.com/jocax/qollective-sub002/pkg/envelope"
	"github.com/jocax/qollective-sub002/pkg/qerrors"
	"github.com/jocax/qollective-sub002/pkg/transport"
)

// envelopeWire is the minimal shape needed to move meta/payload/error
// between the header-projection and full-JSON representations without
// committing to a concrete payload type.
type envelopeWire struct {
	Meta    *envelope.Meta  `json:"meta"`
	Payload json.RawMessage `json:"payload"`
	Error   *envelope.Error `json:"error,omitempty"`
}

// ClientTransport dispatches outbound REST calls. It satisfies
// transport.Transport and transport.PureTransport.
type ClientTransport struct {
	httpClient *http.Client
	cfg        config.RESTConfig
}

// NewClientTransport builds a REST client transport from cfg's TLS mode.
func NewClientTransport(cfg config.RESTConfig) (*ClientTransport, error) {
	tlsConfig, err := buildTLSConfig(cfg.TLS)
	if err != nil {
		return nil, err
	}
	return &ClientTransport{
		httpClient: &http.Client{
			Timeout:   cfg.RequestTimeout,
			Transport: &http.Transport{TLSClientConfig: tlsConfig},
		},
		cfg: cfg,
	}, nil
}

// Dispatch sends one full-envelope request and returns the full-envelope
// response body (spec.md §4.4.1).
func (c *ClientTransport) Dispatch(ctx context.Context, ep transport.Endpoint, envJSON []byte, timeout time.Duration) ([]byte, error) {
	var w envelopeWire
	if err := json.Unmarshal(envJSON, &w); err != nil {
		return nil, qerrors.Serialization("decode outbound envelope", err)
	}

	headers, _, err := codec.EncodeHeaders(w.Meta, false)
	if err != nil {
		return nil, err
	}

	method := http.MethodPost
	reqCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var body io.Reader
	if c.cfg.PreferEnvelopeJSON {
		headers.Set("Content-Type", codec.ContentTypeJSON)
		headers.Set("Accept", codec.ContentTypeJSON)
		body = bytes.NewReader(envJSON)
	} else {
		headers.Set("Content-Type", codec.ContentTypeJSON)
		body = bytes.NewReader(w.Payload)
	}

	req, err := http.NewRequestWithContext(reqCtx, method, ep.Raw, body)
	if err != nil {
		return nil, qerrors.ConnectionFailed(ep.Raw, err)
	}
	req.Header = headers

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if reqCtx.Err() != nil {
			return nil, qerrors.Timeout(fmt.Sprintf("request to %s exceeded %s", ep.Raw, timeout))
		}
		return nil, qerrors.ConnectionFailed(ep.Raw, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, qerrors.ConnectionFailed(ep.Raw, err)
	}

	if resp.StatusCode >= 500 {
		return nil, qerrors.ConnectionFailed(ep.Raw, fmt.Errorf("status %d", resp.StatusCode))
	}

	if resp.Header.Get("Content-Type") == codec.ContentTypeJSON && isEnvelopeJSON(respBody) {
		return respBody, nil
	}

	respMeta, err := codec.DecodeHeaders(resp.Header, nil)
	if err != nil {
		return nil, err
	}
	out := envelopeWire{Meta: respMeta, Payload: respBody}
	return json.Marshal(out)
}

// DispatchPure sends payload as the raw request body with no envelope
// wrapping or projected headers (spec.md §4.4.6).
func (c *ClientTransport) DispatchPure(ctx context.Context, ep transport.Endpoint, payload []byte, timeout time.Duration) ([]byte, error) {
	reqCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, ep.Raw, bytes.NewReader(payload))
	if err != nil {
		return nil, qerrors.ConnectionFailed(ep.Raw, err)
	}
	req.Header.Set("Content-Type", codec.ContentTypeJSON)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, qerrors.ConnectionFailed(ep.Raw, err)
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func isEnvelopeJSON(data []byte) bool {
	var probe struct {
		Meta json.RawMessage `json:"meta"`
	}
	return json.Unmarshal(data, &probe) == nil && probe.Meta != nil
}

func buildTLSConfig(cfg config.TLSConfig) (*tls.Config, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	tlsCfg := &tls.Config{ServerName: cfg.ServerName}
	switch cfg.Mode {
	case config.TLSSkipVerify:
		tlsCfg.InsecureSkipVerify = true
	case config.TLSCustomCA, config.TLSMutual:
		if cfg.CAFile != "" {
			pool := x509.NewCertPool()
			pem, err := os.ReadFile(cfg.CAFile)
			if err != nil {
				return nil, fmt.Errorf("reading ca_file %s: %w", cfg.CAFile, err)
			}
			if !pool.AppendCertsFromPEM(pem) {
				return nil, fmt.Errorf("ca_file %s contained no usable certificates", cfg.CAFile)
			}
			tlsCfg.RootCAs = pool
		}
		if cfg.Mode == config.TLSMutual {
			cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
			if err != nil {
				return nil, fmt.Errorf("loading client cert/key: %w", err)
			}
			tlsCfg.Certificates = []tls.Certificate{cert}
		}
	}
	return tlsCfg, nil
}

// Handler is the server-side callback invoked once a request has been
// normalized to a full envelope (spec.md §4.4.1).
type Handler func(ctx context.Context, envJSON []byte) ([]byte, error)

// Server wires a gorilla/mux router to Handler, accepting either
// representation on the way in and responding with whichever the client
// requested via Accept (spec.md §4.4.1).
type Server struct {
	router  *mux.Router
	cfg     config.RESTConfig
	limiter *rate.Limiter
}

// NewServer constructs a REST server bound to cfg. Inbound requests are
// admitted at up to cfg.MaxInFlightRequests per second, with a burst of the
// same size; requests beyond that are rejected with Backpressure rather
// than queued indefinitely (spec.md §4.4.1 backpressure).
func NewServer(cfg config.RESTConfig) *Server {
	limit := rate.Limit(cfg.MaxInFlightRequests)
	if cfg.MaxInFlightRequests <= 0 {
		limit = rate.Inf
	}
	return &Server{
		router:  mux.NewRouter(),
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, max(cfg.MaxInFlightRequests, 1)),
	}
}

// Router exposes the underlying *mux.Router for additional route
// registration (health checks, pprof, etc).
func (s *Server) Router() *mux.Router { return s.router }

// HandleFunc registers handler at path for method, normalizing the
// incoming request to a full envelope before invoking it.
func (s *Server) HandleFunc(path, method string, handler Handler) {
	s.router.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeError(w, qerrors.Backpressure(fmt.Sprintf("rest server at capacity (max_in_flight_requests=%d)", s.cfg.MaxInFlightRequests)))
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
		defer cancel()

		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, qerrors.Validation("reading request body", err))
			return
		}

		var envJSON []byte
		if isEnvelopeJSON(body) {
			envJSON = body
		} else {
			meta, err := codec.DecodeHeaders(r.Header, r.URL.Query())
			if err != nil {
				writeError(w, err)
				return
			}
			codec.AttachProtocolExtension(meta, r.Header)
			envJSON, err = json.Marshal(envelopeWire{Meta: meta, Payload: body})
			if err != nil {
				writeError(w, qerrors.Serialization("normalize request envelope", err))
				return
			}
		}

		respJSON, err := handler(ctx, envJSON)
		if err != nil {
			writeError(w, err)
			return
		}

		if r.Header.Get("Accept") == codec.ContentTypeJSON || s.cfg.PreferEnvelopeJSON {
			w.Header().Set("Content-Type", codec.ContentTypeJSON)
			w.Write(respJSON)
			return
		}

		var wire envelopeWire
		if err := json.Unmarshal(respJSON, &wire); err != nil {
			writeError(w, qerrors.Serialization("split response envelope", err))
			return
		}
		headers, _, err := codec.EncodeHeaders(wire.Meta, false)
		if err != nil {
			writeError(w, err)
			return
		}
		for k, vs := range headers {
			for _, v := range vs {
				w.Header().Add(k, v)
			}
		}
		w.Header().Set("Content-Type", codec.ContentTypeJSON)
		w.Write(wire.Payload)
	}).Methods(method)
}

func writeError(w http.ResponseWriter, err error) {
	qerr := qerrors.KindOf(err)
	status := http.StatusInternalServerError
	switch qerr {
	case qerrors.KindValidation:
		status = http.StatusBadRequest
	case qerrors.KindUnauthorized:
		status = http.StatusUnauthorized
	case qerrors.KindForbidden:
		status = http.StatusForbidden
	case qerrors.KindCircuitOpen, qerrors.KindBackpressure, qerrors.KindRateLimited:
		status = http.StatusServiceUnavailable
	case qerrors.KindTimeout:
		status = http.StatusGatewayTimeout
	}
	w.Header().Set("Content-Type", codec.ContentTypeJSON)
	w.WriteHeader(status)
	envErr := envelope.Error{Code: string(qerr), Message: err.Error(), HTTPStatusCode: status}
	out, _ := json.Marshal(envelopeWire{Meta: &envelope.Meta{}, Error: &envErr})
	w.Write(out)
}
