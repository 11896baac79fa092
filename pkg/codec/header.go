package codec

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/jocax/qollective-sub002/pkg/envelope"
	"github.com/jocax/qollective-sub002/pkg/qerrors"
)

// Reserved header names (spec.md §6.2). All are prefixed X-Qollective-.
const (
	HeaderPrefix        = "X-Qollective-"
	HeaderRequestID     = HeaderPrefix + "Request-Id"
	HeaderTenant        = HeaderPrefix + "Tenant"
	HeaderVersion       = HeaderPrefix + "Version"
	HeaderTimestamp     = HeaderPrefix + "Timestamp"
	HeaderMeta          = HeaderPrefix + "Meta"
	HeaderTraceID       = HeaderPrefix + "Trace-Id"
	HeaderSpanID        = HeaderPrefix + "Span-Id"
	HeaderUserID        = HeaderPrefix + "User-Id"
	HeaderSessionID     = HeaderPrefix + "Session-Id"
	HeaderCorrelationID = HeaderPrefix + "Correlation-Id"
)

// Equivalent query parameters used as a GET/DELETE fallback when headers
// would exceed implementation limits (spec.md §6.2).
const (
	QueryRequestID     = "request_id"
	QueryTenant        = "tenant"
	QueryVersion       = "version"
	QueryTraceID       = "trace_id"
	QueryUserID        = "user_id"
	QuerySessionID     = "session_id"
	QueryCorrelationID = "correlation_id"
)

// complexMeta is the subset of Meta that is too rich for individual
// headers and travels base64-encoded JSON in a single X-Qollective-Meta
// header instead.
type complexMeta struct {
	Security    *envelope.Security    `json:"security,omitempty"`
	Performance *envelope.Performance `json:"performance,omitempty"`
	Tracing     *envelope.Tracing     `json:"tracing,omitempty"`
	Debug       *envelope.Debug       `json:"debug,omitempty"`
	Monitoring  *envelope.Monitoring  `json:"monitoring,omitempty"`
	Extensions  map[string]any        `json:"extensions,omitempty"`
	OnBehalfOf  *envelope.OnBehalfOf  `json:"on_behalf_of,omitempty"`
}

// EncodeHeaders projects meta onto HTTP headers for the header-projection
// codec (spec.md §4.2, §6.2). When useQuery is true (GET/DELETE), the
// plain scalar fields are mirrored into the returned url.Values instead of
// headers.
func EncodeHeaders(meta *envelope.Meta, useQuery bool) (http.Header, url.Values, error) {
	h := make(http.Header)
	q := make(url.Values)

	setScalar := func(headerName, queryName, value string) {
		if value == "" {
			return
		}
		if useQuery && queryName != "" {
			q.Set(queryName, value)
			return
		}
		h.Set(headerName, value)
	}

	setScalar(HeaderRequestID, QueryRequestID, meta.RequestID)
	setScalar(HeaderTenant, QueryTenant, meta.Tenant)
	setScalar(HeaderVersion, QueryVersion, meta.Version)
	if !meta.Timestamp.IsZero() {
		h.Set(HeaderTimestamp, meta.Timestamp.UTC().Format(time.RFC3339Nano))
	}
	if meta.Tracing != nil {
		setScalar(HeaderTraceID, QueryTraceID, meta.Tracing.TraceID)
		setScalar(HeaderSpanID, "", meta.Tracing.SpanID)
	}
	if meta.Security != nil {
		setScalar(HeaderUserID, QueryUserID, meta.Security.UserID)
		setScalar(HeaderSessionID, QuerySessionID, meta.Security.SessionID)
	}
	if v, ok := meta.Extension("correlation_id"); ok {
		if s, ok := v.(string); ok {
			setScalar(HeaderCorrelationID, QueryCorrelationID, s)
		}
	}

	cm := complexMeta{
		Security:    meta.Security,
		Performance: meta.Performance,
		Tracing:     meta.Tracing,
		Debug:       meta.Debug,
		Monitoring:  meta.Monitoring,
		Extensions:  meta.Extensions,
		OnBehalfOf:  meta.OnBehalfOf,
	}
	raw, err := json.Marshal(cm)
	if err != nil {
		return nil, nil, qerrors.Serialization("encode complex meta header", err)
	}
	if string(raw) != "{}" {
		h.Set(HeaderMeta, base64.StdEncoding.EncodeToString(raw))
	}

	return h, q, nil
}

// DecodeHeaders reconstructs a Meta from HTTP headers and, for GET/DELETE,
// query-parameter fallback. Headers/query take precedence over any
// body-level metadata the caller already parsed (spec.md §4.2).
func DecodeHeaders(h http.Header, q url.Values) (*envelope.Meta, error) {
	meta := &envelope.Meta{}

	get := func(headerName, queryName string) string {
		if v := h.Get(headerName); v != "" {
			return v
		}
		if queryName != "" {
			return q.Get(queryName)
		}
		return ""
	}

	meta.RequestID = get(HeaderRequestID, QueryRequestID)
	meta.Tenant = get(HeaderTenant, QueryTenant)
	meta.Version = get(HeaderVersion, QueryVersion)
	if ts := h.Get(HeaderTimestamp); ts != "" {
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, qerrors.Validation("invalid "+HeaderTimestamp+" header", err)
		}
		meta.Timestamp = parsed
	}

	if raw := h.Get(HeaderMeta); raw != "" {
		decoded, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, qerrors.Validation("invalid "+HeaderMeta+" header encoding", err)
		}
		var cm complexMeta
		if err := json.Unmarshal(decoded, &cm); err != nil {
			return nil, qerrors.Validation("invalid "+HeaderMeta+" header contents", err)
		}
		meta.Security = cm.Security
		meta.Performance = cm.Performance
		meta.Tracing = cm.Tracing
		meta.Debug = cm.Debug
		meta.Monitoring = cm.Monitoring
		meta.Extensions = cm.Extensions
		meta.OnBehalfOf = cm.OnBehalfOf
	}

	if traceID := get(HeaderTraceID, QueryTraceID); traceID != "" {
		if meta.Tracing == nil {
			meta.Tracing = &envelope.Tracing{}
		}
		meta.Tracing.TraceID = traceID
	}
	if spanID := h.Get(HeaderSpanID); spanID != "" {
		if meta.Tracing == nil {
			meta.Tracing = &envelope.Tracing{}
		}
		meta.Tracing.SpanID = spanID
	}
	if userID := get(HeaderUserID, QueryUserID); userID != "" {
		if meta.Security == nil {
			meta.Security = &envelope.Security{}
		}
		meta.Security.UserID = userID
	}
	if sessionID := get(HeaderSessionID, QuerySessionID); sessionID != "" {
		if meta.Security == nil {
			meta.Security = &envelope.Security{}
		}
		meta.Security.SessionID = sessionID
	}
	if correlationID := get(HeaderCorrelationID, QueryCorrelationID); correlationID != "" {
		meta.WithExtension("correlation_id", correlationID)
	}

	if !meta.Security.Valid() {
		return nil, qerrors.Validation("meta.security has an unrecognized auth_method", nil)
	}
	if !meta.Tracing.Valid() {
		return nil, qerrors.Validation("meta.tracing is inconsistent", nil)
	}

	return meta, nil
}

// AttachProtocolExtension records the raw request headers under the
// "protocol" extension so handlers can access bearer tokens and other
// transport-native data (spec.md §6.2).
func AttachProtocolExtension(meta *envelope.Meta, h http.Header) {
	protocol := make(map[string]string, len(h))
	for k := range h {
		protocol[k] = h.Get(k)
	}
	meta.WithExtension("protocol", protocol)
}
