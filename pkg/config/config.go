// Package config defines the typed configuration tree for qollective
// (SPEC_FULL.md §4.9): per-transport sections, TLS policy, A2A client/server
// tuning, and the security posture, each with a Default and a preset-profile
// constructor, loaded defaults < preset < file < env the way kagent's CLI
// config layers cobra flags over viper-bound environment values.
package config

import "time"

// TLSMode selects how a connection negotiates transport security.
type TLSMode string

const (
	TLSOff        TLSMode = "off"
	TLSSystemCA   TLSMode = "system_ca"
	TLSCustomCA   TLSMode = "custom_ca"
	TLSSkipVerify TLSMode = "skip"
	TLSMutual     TLSMode = "mutual_tls"
)

// TLSConfig is the shared TLS subrecord used by every transport section.
type TLSConfig struct {
	Enabled    bool    `mapstructure:"enabled" toml:"enabled" yaml:"enabled"`
	Mode       TLSMode `mapstructure:"mode" toml:"mode" yaml:"mode"`
	CertFile   string  `mapstructure:"cert_file" toml:"cert_file" yaml:"cert_file"`
	KeyFile    string  `mapstructure:"key_file" toml:"key_file" yaml:"key_file"`
	CAFile     string  `mapstructure:"ca_file" toml:"ca_file" yaml:"ca_file"`
	ServerName string  `mapstructure:"server_name" toml:"server_name" yaml:"server_name"`
}

func defaultTLS() TLSConfig {
	return TLSConfig{Enabled: false, Mode: TLSOff}
}

// RESTConfig configures the REST transport (SPEC_FULL.md §4.4.1).
type RESTConfig struct {
	BindAddress        string        `mapstructure:"bind_address" toml:"bind_address" yaml:"bind_address"`
	Port               int           `mapstructure:"port" toml:"port" yaml:"port"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout" toml:"request_timeout" yaml:"request_timeout"`
	MaxInFlightRequests int          `mapstructure:"max_in_flight_requests" toml:"max_in_flight_requests" yaml:"max_in_flight_requests"`
	PreferEnvelopeJSON bool          `mapstructure:"prefer_envelope_json" toml:"prefer_envelope_json" yaml:"prefer_envelope_json"`
	TLS                TLSConfig     `mapstructure:"tls" toml:"tls" yaml:"tls"`
}

func defaultREST() RESTConfig {
	return RESTConfig{
		BindAddress:         "0.0.0.0",
		Port:                8080,
		RequestTimeout:      30 * time.Second,
		MaxInFlightRequests: 256,
		PreferEnvelopeJSON:  true,
		TLS:                 defaultTLS(),
	}
}

// GRPCClientConfig configures outbound gRPC calls.
type GRPCClientConfig struct {
	Target      string        `mapstructure:"target" toml:"target" yaml:"target"`
	CallTimeout time.Duration `mapstructure:"call_timeout" toml:"call_timeout" yaml:"call_timeout"`
	TLS         TLSConfig     `mapstructure:"tls" toml:"tls" yaml:"tls"`
}

func defaultGRPCClient() GRPCClientConfig {
	return GRPCClientConfig{CallTimeout: 30 * time.Second, TLS: defaultTLS()}
}

// GRPCServerConfig configures the inbound gRPC listener.
type GRPCServerConfig struct {
	BindAddress string    `mapstructure:"bind_address" toml:"bind_address" yaml:"bind_address"`
	Port        int       `mapstructure:"port" toml:"port" yaml:"port"`
	TLS         TLSConfig `mapstructure:"tls" toml:"tls" yaml:"tls"`
}

func defaultGRPCServer() GRPCServerConfig {
	return GRPCServerConfig{BindAddress: "0.0.0.0", Port: 9090, TLS: defaultTLS()}
}

// NATSAuthMode selects a NATS connection's authentication scheme
// (SPEC_FULL.md §4.4.3).
type NATSAuthMode string

const (
	NATSAuthAnonymous NATSAuthMode = "anonymous"
	NATSAuthUserPass  NATSAuthMode = "user_pass"
	NATSAuthToken     NATSAuthMode = "token"
	NATSAuthNkey      NATSAuthMode = "nkey"
	NATSAuthMutualTLS NATSAuthMode = "mutual_tls"
)

// NATSConfig configures the pub/sub transport.
type NATSConfig struct {
	URLs              []string      `mapstructure:"urls" toml:"urls" yaml:"urls"`
	AuthMode          NATSAuthMode  `mapstructure:"auth_mode" toml:"auth_mode" yaml:"auth_mode"`
	Username          string        `mapstructure:"username" toml:"username" yaml:"username"`
	Password          string        `mapstructure:"password" toml:"password" yaml:"password"`
	Token             string        `mapstructure:"token" toml:"token" yaml:"token"`
	NkeySeedFile      string        `mapstructure:"nkey_seed_file" toml:"nkey_seed_file" yaml:"nkey_seed_file"`
	ConnectionTimeout time.Duration `mapstructure:"connection_timeout" toml:"connection_timeout" yaml:"connection_timeout"`
	MaxInboundQueue   int           `mapstructure:"max_inbound_queue" toml:"max_inbound_queue" yaml:"max_inbound_queue"`
	TLSCertBasePath   string        `mapstructure:"tls_cert_base_path" toml:"tls_cert_base_path" yaml:"tls_cert_base_path"`
	TLS               TLSConfig     `mapstructure:"tls" toml:"tls" yaml:"tls"`
}

func defaultNATS() NATSConfig {
	return NATSConfig{
		URLs:              []string{"nats://127.0.0.1:4222"},
		AuthMode:          NATSAuthAnonymous,
		ConnectionTimeout: 10 * time.Second,
		MaxInboundQueue:   1024,
		TLS:               defaultTLS(),
	}
}

// WebSocketConfig configures the WebSocket transport.
type WebSocketConfig struct {
	BindAddress       string        `mapstructure:"bind_address" toml:"bind_address" yaml:"bind_address"`
	Port              int           `mapstructure:"port" toml:"port" yaml:"port"`
	PingInterval      time.Duration `mapstructure:"ping_interval" toml:"ping_interval" yaml:"ping_interval"`
	MaxFrameBytes     int64         `mapstructure:"max_frame_bytes" toml:"max_frame_bytes" yaml:"max_frame_bytes"`
	TLS               TLSConfig     `mapstructure:"tls" toml:"tls" yaml:"tls"`
}

func defaultWebSocket() WebSocketConfig {
	return WebSocketConfig{
		BindAddress:   "0.0.0.0",
		Port:          8081,
		PingInterval:  30 * time.Second,
		MaxFrameBytes: 4 << 20,
		TLS:           defaultTLS(),
	}
}

// A2AClientConfig configures a local A2A client's view of the mesh.
type A2AClientConfig struct {
	PrimaryURL              string        `mapstructure:"primary_url" toml:"primary_url" yaml:"primary_url"`
	Transport               GRPCClientConfig `mapstructure:"transport" toml:"transport" yaml:"transport"`
	DiscoveryTimeout        time.Duration `mapstructure:"discovery_timeout" toml:"discovery_timeout" yaml:"discovery_timeout"`
	MinCapabilityMatchScore float64       `mapstructure:"min_capability_match_score" toml:"min_capability_match_score" yaml:"min_capability_match_score"`
}

func defaultA2AClient() A2AClientConfig {
	return A2AClientConfig{
		Transport:               defaultGRPCClient(),
		DiscoveryTimeout:        5 * time.Second,
		MinCapabilityMatchScore: 0.5,
	}
}

// A2AServerConfig configures registry, router, and health-monitor behavior.
type A2AServerConfig struct {
	MaxAgents                int           `mapstructure:"max_agents" toml:"max_agents" yaml:"max_agents"`
	MaxCapabilitiesPerAgent  int           `mapstructure:"max_capabilities_per_agent" toml:"max_capabilities_per_agent" yaml:"max_capabilities_per_agent"`
	DefaultTTL               time.Duration `mapstructure:"default_ttl" toml:"default_ttl" yaml:"default_ttl"`
	EnableAgentLogging       bool          `mapstructure:"enable_agent_logging" toml:"enable_agent_logging" yaml:"enable_agent_logging"`
	AgentLogSubject          string        `mapstructure:"agent_log_subject" toml:"agent_log_subject" yaml:"agent_log_subject"`
	LoggingAgentCapability   string        `mapstructure:"logging_agent_capability" toml:"logging_agent_capability" yaml:"logging_agent_capability"`
	EnableRoutingMetrics     bool          `mapstructure:"enable_routing_metrics" toml:"enable_routing_metrics" yaml:"enable_routing_metrics"`
	CapabilityQueryTimeout   time.Duration `mapstructure:"capability_query_timeout" toml:"capability_query_timeout" yaml:"capability_query_timeout"`
	CheckInterval            time.Duration `mapstructure:"check_interval" toml:"check_interval" yaml:"check_interval"`
	EnableHealthMetrics      bool          `mapstructure:"enable_health_metrics" toml:"enable_health_metrics" yaml:"enable_health_metrics"`
	FailureThreshold         uint32        `mapstructure:"failure_threshold" toml:"failure_threshold" yaml:"failure_threshold"`
	RecoveryThreshold        uint32        `mapstructure:"recovery_threshold" toml:"recovery_threshold" yaml:"recovery_threshold"`
}

func defaultA2AServer() A2AServerConfig {
	return A2AServerConfig{
		MaxAgents:               10000,
		MaxCapabilitiesPerAgent: 100,
		DefaultTTL:              60 * time.Second,
		AgentLogSubject:         "qollective.a2a.v1.health",
		LoggingAgentCapability:  "logging",
		CapabilityQueryTimeout:  5 * time.Second,
		CheckInterval:           10 * time.Second,
		FailureThreshold:        3,
		RecoveryThreshold:       2,
	}
}

// JWTConfig configures bearer-token tenant/identity extraction.
type JWTConfig struct {
	Enabled         bool     `mapstructure:"enabled" toml:"enabled" yaml:"enabled"`
	Issuer          string   `mapstructure:"issuer" toml:"issuer" yaml:"issuer"`
	Audience        string   `mapstructure:"audience" toml:"audience" yaml:"audience"`
	TenantClaimPath string   `mapstructure:"tenant_claim_path" toml:"tenant_claim_path" yaml:"tenant_claim_path"`
	AllowedPatterns []string `mapstructure:"allowed_patterns" toml:"allowed_patterns" yaml:"allowed_patterns"`
}

// SecurityConfig configures the ambient security posture.
type SecurityConfig struct {
	JWT               JWTConfig `mapstructure:"jwt" toml:"jwt" yaml:"jwt"`
	DebugLoggingOn    bool      `mapstructure:"debug_logging_on" toml:"debug_logging_on" yaml:"debug_logging_on"`
	RequireMutualTLS  bool      `mapstructure:"require_mutual_tls" toml:"require_mutual_tls" yaml:"require_mutual_tls"`
}

func defaultSecurity() SecurityConfig {
	return SecurityConfig{}
}

// MetaConfig controls envelope meta auto-fill behavior.
type MetaConfig struct {
	DefaultVersion string `mapstructure:"default_version" toml:"default_version" yaml:"default_version"`
}

func defaultMeta() MetaConfig {
	return MetaConfig{DefaultVersion: "1.0"}
}

// Environment names the deployment posture a Config was built for; the
// validator uses it to decide which checks are merely warnings.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Config is the root of the typed configuration tree (SPEC_FULL.md §4.9).
type Config struct {
	Environment            Environment      `mapstructure:"environment" toml:"environment" yaml:"environment"`
	TenantExtractionEnabled bool            `mapstructure:"tenant_extraction_enabled" toml:"tenant_extraction_enabled" yaml:"tenant_extraction_enabled"`
	Meta                    MetaConfig       `mapstructure:"meta" toml:"meta" yaml:"meta"`
	REST                    RESTConfig       `mapstructure:"rest" toml:"rest" yaml:"rest"`
	GRPCClient              GRPCClientConfig `mapstructure:"grpc_client" toml:"grpc_client" yaml:"grpc_client"`
	GRPCServer              GRPCServerConfig `mapstructure:"grpc_server" toml:"grpc_server" yaml:"grpc_server"`
	NATS                    NATSConfig       `mapstructure:"nats" toml:"nats" yaml:"nats"`
	WebSocket               WebSocketConfig  `mapstructure:"websocket" toml:"websocket" yaml:"websocket"`
	A2AClient               A2AClientConfig  `mapstructure:"a2a_client" toml:"a2a_client" yaml:"a2a_client"`
	A2AServer               A2AServerConfig  `mapstructure:"a2a_server" toml:"a2a_server" yaml:"a2a_server"`
	Security                SecurityConfig   `mapstructure:"security" toml:"security" yaml:"security"`
}

// Default returns the zero-preset configuration tree: every section's own
// Default, development environment.
func Default() *Config {
	return &Config{
		Environment:             EnvDevelopment,
		TenantExtractionEnabled: false,
		Meta:                    defaultMeta(),
		REST:                    defaultREST(),
		GRPCClient:              defaultGRPCClient(),
		GRPCServer:              defaultGRPCServer(),
		NATS:                    defaultNATS(),
		WebSocket:               defaultWebSocket(),
		A2AClient:               defaultA2AClient(),
		A2AServer:               defaultA2AServer(),
		Security:                defaultSecurity(),
	}
}
