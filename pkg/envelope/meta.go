package envelope

import "time"

// AuthMethod enumerates how a request's caller was authenticated.
type AuthMethod string

const (
	AuthJWT    AuthMethod = "jwt"
	AuthAPIKey AuthMethod = "api_key"
	AuthBasic  AuthMethod = "basic"
	AuthCert   AuthMethod = "cert"
	AuthNone   AuthMethod = "none"
)

// OnBehalfOf carries a delegation record (spec.md §3.2).
type OnBehalfOf struct {
	UserID string   `json:"user_id,omitempty"`
	Roles  []string `json:"roles,omitempty"`
	Issuer string   `json:"issuer,omitempty"`
	Scope  string   `json:"scope,omitempty"`
}

// Security carries the caller's authenticated identity.
type Security struct {
	UserID      string     `json:"user_id,omitempty"`
	SessionID   string     `json:"session_id,omitempty"`
	AuthMethod  AuthMethod `json:"auth_method,omitempty"`
	Permissions []string   `json:"permissions,omitempty"`
	Roles       []string   `json:"roles,omitempty"`
	TenantID    string     `json:"tenant_id,omitempty"`
}

// Valid reports whether the security record's auth method is recognized.
func (s *Security) Valid() bool {
	if s == nil {
		return true
	}
	switch s.AuthMethod {
	case "", AuthJWT, AuthAPIKey, AuthBasic, AuthCert, AuthNone:
		return true
	default:
		return false
	}
}

// Performance carries per-request timing and resource-usage data.
type Performance struct {
	DurationMs       int64             `json:"duration_ms,omitempty"`
	QueueWaitMs      int64             `json:"queue_wait_ms,omitempty"`
	ProcessingStart  *time.Time        `json:"processing_start,omitempty"`
	ProcessingEnd    *time.Time        `json:"processing_end,omitempty"`
	MemoryBytes      int64             `json:"memory_bytes,omitempty"`
	CPUMs            int64             `json:"cpu_ms,omitempty"`
	DBQueries        int64             `json:"db_queries,omitempty"`
	DBTimeMs         int64             `json:"db_time_ms,omitempty"`
	CacheHits        int64             `json:"cache_hits,omitempty"`
	CacheMisses      int64             `json:"cache_misses,omitempty"`
	Custom           map[string]string `json:"custom,omitempty"`
}

// Tracing carries distributed-tracing correlation fields.
type Tracing struct {
	TraceID      string            `json:"trace_id,omitempty"`
	SpanID       string            `json:"span_id,omitempty"`
	ParentSpanID string            `json:"parent_span_id,omitempty"`
	Sampled      bool              `json:"sampled,omitempty"`
	Baggage      map[string]string `json:"baggage,omitempty"`
	Flags        uint32            `json:"flags,omitempty"`
}

// Valid reports whether partially-populated tracing fields are
// self-consistent (spec.md §3.2: a span_id without a trace_id is invalid).
func (t *Tracing) Valid() bool {
	if t == nil {
		return true
	}
	if t.SpanID != "" && t.TraceID == "" {
		return false
	}
	if t.ParentSpanID != "" && t.TraceID == "" {
		return false
	}
	return true
}

// Debug carries developer diagnostics. Populated only when debug mode is on.
type Debug struct {
	SourceFile string   `json:"source_file,omitempty"`
	SourceLine int       `json:"source_line,omitempty"`
	ThreadID   string   `json:"thread_id,omitempty"`
	BuildInfo  string   `json:"build_info,omitempty"`
	Env        string   `json:"env,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

// Monitoring carries service-identity labels for metrics correlation.
type Monitoring struct {
	Service     string            `json:"service,omitempty"`
	Version     string            `json:"version,omitempty"`
	Host        string            `json:"host,omitempty"`
	Region      string            `json:"region,omitempty"`
	Environment string            `json:"environment,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
	Metrics     map[string]float64 `json:"metrics,omitempty"`
}

// Meta is the envelope's metadata header (spec.md §3.2).
type Meta struct {
	RequestID  string       `json:"request_id,omitempty"`
	Timestamp  time.Time    `json:"timestamp,omitempty"`
	Tenant     string       `json:"tenant,omitempty"`
	Version    string       `json:"version,omitempty"`
	OnBehalfOf *OnBehalfOf  `json:"on_behalf_of,omitempty"`
	Security   *Security    `json:"security,omitempty"`
	Performance *Performance `json:"performance,omitempty"`
	Tracing    *Tracing     `json:"tracing,omitempty"`
	Debug      *Debug       `json:"debug,omitempty"`
	Monitoring *Monitoring  `json:"monitoring,omitempty"`

	// Extensions is the only place arbitrary or protocol-specific data is
	// carried. Decoding fills it only from the "extensions" object; other
	// unrecognized meta keys from a peer are dropped, not moved here.
	Extensions map[string]any `json:"extensions,omitempty"`
}

// Clone returns a deep-enough copy of Meta so a frozen envelope can be
// safely handed to multiple transports without aliasing maps/slices.
func (m *Meta) Clone() *Meta {
	if m == nil {
		return nil
	}
	out := *m
	if m.Extensions != nil {
		out.Extensions = make(map[string]any, len(m.Extensions))
		for k, v := range m.Extensions {
			out.Extensions[k] = v
		}
	}
	if m.OnBehalfOf != nil {
		ob := *m.OnBehalfOf
		out.OnBehalfOf = &ob
	}
	if m.Security != nil {
		s := *m.Security
		out.Security = &s
	}
	if m.Performance != nil {
		p := *m.Performance
		out.Performance = &p
	}
	if m.Tracing != nil {
		t := *m.Tracing
		out.Tracing = &t
	}
	if m.Debug != nil {
		d := *m.Debug
		out.Debug = &d
	}
	if m.Monitoring != nil {
		mon := *m.Monitoring
		out.Monitoring = &mon
	}
	return &out
}

// WithExtension returns m with key=value merged into Extensions, creating
// the map if absent. m must not be nil.
func (m *Meta) WithExtension(key string, value any) *Meta {
	if m.Extensions == nil {
		m.Extensions = make(map[string]any)
	}
	m.Extensions[key] = value
	return m
}

// Extension retrieves an extension value by key.
func (m *Meta) Extension(key string) (any, bool) {
	if m == nil || m.Extensions == nil {
		return nil, false
	}
	v, ok := m.Extensions[key]
	return v, ok
}

// normalizeEmpty converts an empty extensions map to nil so that
// decode(encode(e)) treats "empty map" and "absent map" as equal
// (spec.md §8 boundary behavior).
func (m *Meta) normalizeEmpty() {
	if m == nil {
		return
	}
	if len(m.Extensions) == 0 {
		m.Extensions = nil
	}
}
