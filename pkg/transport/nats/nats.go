// Package nats implements the pub/sub transport over the NATS family
// (SPEC_FULL.md §4.4.3): subject derivation from endpoint paths, queue
// groups for capability-scoped worker pools, and request/reply over
// ephemeral inbox subjects.
package nats

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	natsgo "github.com/nats-io/nats.go"

	"github.com/jocax/qollective-sub002/pkg/codec"
	"github.com/jocax/qollective-sub002/pkg/config"
	"github.com/jocax/qollective-sub002/pkg/qconst"
	"github.com/jocax/qollective-sub002/pkg/qerrors"
	"github.com/jocax/qollective-sub002/pkg/transport"
)

// fallbackTLSCertBasePath and legacyTLSCertBasePath mirror the original
// Rust implementation's three-tier resolution order (constants.rs
// resolve_tls_cert_base_path): env var, then a conventional relative
// directory, then a legacy absolute fallback.
const (
	fallbackTLSCertBasePath = "tests/certs"
	legacyTLSCertBasePath   = "/etc/qollective/certs"
)

// ResolveTLSCertBasePath implements the env-var / relative-path /
// legacy-absolute resolution order for the NATS TLS certificate directory.
func ResolveTLSCertBasePath(configured string) string {
	if configured != "" {
		return configured
	}
	if v, ok := os.LookupEnv(qconst.EnvPrefix + "TLS_CERT_BASE_PATH"); ok && v != "" {
		return v
	}
	if wd, err := os.Getwd(); err == nil {
		candidate := filepath.Join(wd, fallbackTLSCertBasePath)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
	}
	return legacyTLSCertBasePath
}

// Transport dispatches envelopes over one shared *nats.Conn, deriving the
// request subject from the endpoint path and using a reply-inbox request
// (spec.md §4.4.3).
type Transport struct {
	conn *natsgo.Conn
}

// Connect opens a NATS connection per cfg.AuthMode, with automatic
// reconnect the way sanket-sapate-arc-core's natsclient wraps nats.Connect.
func Connect(cfg config.NATSConfig) (*Transport, error) {
	opts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.Timeout(cfg.ConnectionTimeout),
	}

	switch cfg.AuthMode {
	case config.NATSAuthUserPass:
		opts = append(opts, natsgo.UserInfo(cfg.Username, cfg.Password))
	case config.NATSAuthToken:
		opts = append(opts, natsgo.Token(cfg.Token))
	case config.NATSAuthNkey:
		nkeyOpt, err := natsgo.NkeyOptionFromSeed(cfg.NkeySeedFile)
		if err != nil {
			return nil, qerrors.ConnectionFailed("load nkey seed", err)
		}
		opts = append(opts, nkeyOpt)
	case config.NATSAuthMutualTLS:
		base := ResolveTLSCertBasePath(cfg.TLSCertBasePath)
		opts = append(opts, natsgo.ClientCert(filepath.Join(base, "client-cert.pem"), filepath.Join(base, "client-key.pem")))
		opts = append(opts, natsgo.RootCAs(filepath.Join(base, "ca.pem")))
	}

	if cfg.TLS.Enabled && cfg.AuthMode != config.NATSAuthMutualTLS {
		base := ResolveTLSCertBasePath(cfg.TLSCertBasePath)
		opts = append(opts, natsgo.RootCAs(filepath.Join(base, "ca.pem")))
	}

	url := strings.Join(cfg.URLs, ",")
	conn, err := natsgo.Connect(url, opts...)
	if err != nil {
		return nil, qerrors.ConnectionFailed("connect to NATS at "+url, err)
	}
	return &Transport{conn: conn}, nil
}

// subjectFromPath converts an endpoint's URL path into a qollective
// subject (slashes to dots), validated against the reserved-prefix rule
// (spec.md §4.4.3, pkg/codec.Subject).
func subjectFromPath(path string) (codec.Subject, error) {
	trimmed := strings.Trim(path, "/")
	dotted := strings.ReplaceAll(trimmed, "/", ".")
	return codec.NewSubject(dotted)
}

// Dispatch performs a request/reply call over an ephemeral inbox subject
// (spec.md §4.4.3 "request/reply over ephemeral inbox subjects").
func (t *Transport) Dispatch(ctx context.Context, ep transport.Endpoint, envJSON []byte, timeout time.Duration) ([]byte, error) {
	subject, err := subjectFromPath(ep.URL.Path)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = qconst.DefaultNATSConnectionTimeout
	}
	msg, err := t.conn.RequestWithContext(withTimeout(ctx, timeout), subject.String(), envJSON)
	if err != nil {
		if err == natsgo.ErrTimeout {
			return nil, qerrors.Timeout("nats request to " + subject.String())
		}
		return nil, qerrors.ConnectionFailed("nats request to "+subject.String(), err)
	}
	return msg.Data, nil
}

// DispatchPure publishes payload fire-and-forget with no reply, matching
// ecosystem-compatible raw mode (spec.md §4.4.6); since there is no
// response envelope, the returned bytes are always empty.
func (t *Transport) DispatchPure(ctx context.Context, ep transport.Endpoint, payload []byte, timeout time.Duration) ([]byte, error) {
	subject, err := subjectFromPath(ep.URL.Path)
	if err != nil {
		return nil, err
	}
	if err := t.conn.Publish(subject.String(), payload); err != nil {
		return nil, qerrors.ConnectionFailed("nats publish to "+subject.String(), err)
	}
	return nil, nil
}

func withTimeout(ctx context.Context, d time.Duration) context.Context {
	ctx2, cancel := context.WithTimeout(ctx, d)
	_ = cancel
	return ctx2
}

// Subscribe binds handler to the qollective.capability.<capability>.
// <version> subject under a queue group of the same name, forming a
// load-balanced worker pool for that capability (spec.md §4.4.3, §6.3).
func (t *Transport) Subscribe(capability, version string, handler func(subject string, data []byte, reply string)) (*natsgo.Subscription, error) {
	queueGroup := codec.QueueGroupName(capability, version)
	return t.conn.QueueSubscribe(queueGroup, queueGroup, func(msg *natsgo.Msg) {
		handler(msg.Subject, msg.Data, msg.Reply)
	})
}

// Close drains and closes the connection, preferring Drain over Close so
// in-flight publishes are not dropped.
func (t *Transport) Close() {
	if t.conn == nil {
		return
	}
	if err := t.conn.Drain(); err != nil {
		t.conn.Close()
	}
}
