package config

import "time"

// Preset names a named configuration profile (SPEC_FULL.md §4.9).
type Preset string

const (
	PresetDevelopment   Preset = "development"
	PresetStaging       Preset = "staging"
	PresetProduction    Preset = "production"
	PresetDebugging     Preset = "debugging"
	PresetHighPerformance Preset = "high_performance"
)

// FromPreset builds a complete config tree for the named preset, starting
// from Default and overriding the fields that profile changes.
func FromPreset(p Preset) *Config {
	cfg := Default()
	switch p {
	case PresetDevelopment:
		cfg.Environment = EnvDevelopment
		cfg.Security.DebugLoggingOn = true
	case PresetStaging:
		cfg.Environment = EnvStaging
		cfg.TenantExtractionEnabled = true
		cfg.REST.TLS = TLSConfig{Enabled: true, Mode: TLSSystemCA}
		cfg.NATS.TLS = TLSConfig{Enabled: true, Mode: TLSSystemCA}
	case PresetProduction:
		cfg.Environment = EnvProduction
		cfg.TenantExtractionEnabled = true
		cfg.Security.DebugLoggingOn = false
		cfg.Security.RequireMutualTLS = true
		cfg.REST.TLS = TLSConfig{Enabled: true, Mode: TLSMutual}
		cfg.GRPCServer.TLS = TLSConfig{Enabled: true, Mode: TLSMutual}
		cfg.NATS.TLS = TLSConfig{Enabled: true, Mode: TLSMutual}
		cfg.WebSocket.TLS = TLSConfig{Enabled: true, Mode: TLSMutual}
		cfg.A2AServer.EnableHealthMetrics = true
		cfg.A2AServer.EnableRoutingMetrics = true
	case PresetDebugging:
		cfg.Environment = EnvDevelopment
		cfg.Security.DebugLoggingOn = true
		cfg.REST.RequestTimeout = 5 * time.Minute
		cfg.GRPCClient.CallTimeout = 5 * time.Minute
		cfg.A2AServer.EnableAgentLogging = true
	case PresetHighPerformance:
		cfg.Environment = EnvProduction
		cfg.REST.MaxInFlightRequests = 4096
		cfg.NATS.MaxInboundQueue = 16384
		cfg.A2AServer.MaxAgents = 100000
		cfg.A2AServer.CheckInterval = 2 * time.Second
	}
	return cfg
}
