// Package qconst names default values used across Qollective. The A2A
// registry and the NATS transport read their defaults from here; the
// config and supervisor packages set their own literal defaults, some of
// which differ from the values below.
package qconst

import "time"

// Timeouts.
const (
	DefaultAgentTimeout               = 30 * time.Second
	DefaultMCPTimeout                 = 60 * time.Second
	DefaultTransportDetectionTimeout  = 5 * time.Second
	DefaultCapabilityCacheTTL         = 5 * time.Minute
	DefaultCircuitBreakerRecovery     = 60 * time.Second
	DefaultRESTRequestTimeout         = 30 * time.Second
	DefaultGRPCTimeout                = 30 * time.Second
	DefaultNATSConnectionTimeout      = 5 * time.Second
	DefaultNATSReconnectTimeout       = 2 * time.Second
	DefaultNATSRequestTimeout         = 30 * time.Second
	DefaultWebSocketConnectionTimeout = 30 * time.Second
	DefaultWebSocketMessageTimeout    = 10 * time.Second
	DefaultWebSocketPingInterval      = 30 * time.Second
	DefaultTCPKeepAlive               = 75 * time.Second
	DefaultGracefulShutdownTimeout    = 30 * time.Second
	DefaultAgentTTL                   = 300 * time.Second
	DefaultAgentCleanupInterval       = 60 * time.Second
	DefaultJWTRefreshThreshold        = 300 * time.Second
	DefaultSecurityTTL                = 1 * time.Hour
	DefaultNATSAnnouncementInterval   = 30 * time.Second
	DefaultNATSTTL                    = 90 * time.Second
	DefaultGRPCIdleTimeout            = 90 * time.Second
	DefaultGRPCKeepAliveTime          = 60 * time.Second
	DefaultNATSRetryDelay             = 1 * time.Second
	DefaultRESTRetryDelay             = 1 * time.Second
	DefaultRESTMaxRetryDelay          = 30 * time.Second
	DefaultRetryJitterMax             = 1 * time.Second
)

// Endpoint patterns.
const (
	DefaultAgentEndpointPattern    = "https://{agent_name}.qollective.local"
	DefaultExternalAgentPattern    = "https://external-{agent_id}.example.com"
	DefaultMCPServerPattern        = "https://mcp-{server_id}.qollective.local"
	DefaultQollectiveDomain        = "qollective.local"
)

// Pub/sub subject names (§6.3).
const (
	SubjectAgentRegistration     = "qollective.a2a.v1.register"
	SubjectAgentDeregistration   = "qollective.a2a.v1.deregister"
	SubjectAgentHeartbeat        = "qollective.a2a.v1.heartbeat"
	SubjectAgentDiscovery        = "qollective.a2a.v1.discover"
	SubjectAgentCapabilities     = "qollective.a2a.v1.capabilities"
	SubjectAgentHealth           = "qollective.a2a.v1.health"
	SubjectAgentRegistryAnnounce = "qollective.a2a.v1.registry.announce"
	SubjectAgentRegistryEvents   = "qollective.a2a.v1.registry.events"
	SubjectAgentRegistryRegister = "qollective.a2a.v1.registry.register"
	SubjectAgentHealthUpdate     = "qollective.a2a.v1.health.update"
	SubjectAgentDirectPattern    = "qollective.a2a.v1.agent.%s.direct"

	SubjectMCPToolDiscover  = "qollective.mcp.v1.tool.discover"
	SubjectMCPToolExecute   = "qollective.mcp.v1.tool.execute"
	SubjectMCPToolChain     = "qollective.mcp.v1.tool.chain"
	SubjectMCPServerAnnounce = "qollective.mcp.v1.server.announce"
	SubjectMCPServerDiscover = "qollective.mcp.v1.server.discover"
	SubjectMCPCapabilities  = "qollective.mcp.v1.capabilities"
	SubjectMCPHealth        = "qollective.mcp.v1.health"
)

// QueueGroupPattern formats a capability's load-balanced worker-pool name.
const QueueGroupPattern = "qollective.capability.%s.%s"

// Circuit breaker defaults.
const (
	DefaultFailureThreshold = 5
	DefaultMaxRetries       = 3
	DefaultCircuitEnabled   = true
)

// Validation limits.
const (
	MaxAgentNameLength       = 255
	MaxCapabilityNameLength  = 128
	MaxCapabilitiesPerAgent  = 100
	MaxMetadataKeyLength     = 64
	MaxMetadataValueLength   = 1024
)

// Network limits.
const (
	DefaultRESTMaxRequestSize = 1024 * 1024
	DefaultWebSocketMaxFrame  = 1024 * 1024
	DefaultGRPCMaxConnections = 1000
)

// EnvPrefix is the common prefix for every environment-overlay variable.
const EnvPrefix = "QOLLECTIVE_"
