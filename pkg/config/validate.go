package config

import (
	"fmt"
	"os"
)

// ValidationResult collects hard failures and soft warnings produced by
// Validate (SPEC_FULL.md §4.9).
type ValidationResult struct {
	Errors   []string
	Warnings []string
}

// OK reports whether no hard errors were recorded.
func (r ValidationResult) OK() bool { return len(r.Errors) == 0 }

func (r *ValidationResult) addError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) addWarning(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Validate checks cfg against SPEC_FULL.md §4.9's rule set. In strict mode a
// non-empty Errors slice should be treated as a hard failure by the caller;
// in lax mode the caller may proceed and surface ValidationResult as-is.
func Validate(cfg *Config, strict bool) ValidationResult {
	var r ValidationResult

	validatePort(&r, "rest.port", cfg.REST.Port)
	if cfg.REST.BindAddress == "" {
		r.addError("rest.bind_address must not be empty")
	}
	validateTLS(&r, "rest.tls", cfg.REST.TLS)

	validatePort(&r, "grpc_server.port", cfg.GRPCServer.Port)
	validateTLS(&r, "grpc_server.tls", cfg.GRPCServer.TLS)

	validateTLS(&r, "nats.tls", cfg.NATS.TLS)
	if len(cfg.NATS.URLs) == 0 {
		r.addError("nats.urls must contain at least one URL")
	}

	validatePort(&r, "websocket.port", cfg.WebSocket.Port)
	validateTLS(&r, "websocket.tls", cfg.WebSocket.TLS)

	if cfg.TenantExtractionEnabled {
		if cfg.REST.Port == 0 && len(cfg.NATS.URLs) == 0 && cfg.GRPCServer.Port == 0 {
			r.addWarning("tenant_extraction_enabled is set but no transport is configured")
		}
		if cfg.Security.JWT.Enabled && len(cfg.Security.JWT.AllowedPatterns) == 0 {
			r.addError("security.jwt.allowed_patterns must be non-empty when JWT extraction is enabled")
		}
	}

	if cfg.Environment == EnvProduction {
		if cfg.Security.DebugLoggingOn {
			r.addWarning("debug logging is enabled in a production environment")
		}
		if !cfg.REST.TLS.Enabled && cfg.REST.Port != 0 {
			r.addWarning("rest transport is running without TLS in a production environment")
		}
		for _, tls := range []struct {
			name string
			cfg  TLSConfig
		}{
			{"rest.tls", cfg.REST.TLS},
			{"grpc_server.tls", cfg.GRPCServer.TLS},
			{"nats.tls", cfg.NATS.TLS},
			{"websocket.tls", cfg.WebSocket.TLS},
		} {
			if tls.cfg.Enabled && tls.cfg.Mode == TLSSkipVerify {
				r.addWarning("%s uses skip-verification TLS in a production environment", tls.name)
			}
		}
	}

	validateA2A(&r, cfg)

	return r
}

func validatePort(r *ValidationResult, field string, port int) {
	if port == 0 {
		r.addError("%s must be non-zero", field)
	}
}

func validateTLS(r *ValidationResult, field string, tls TLSConfig) {
	if !tls.Enabled {
		return
	}
	if tls.Mode == TLSMutual {
		if tls.CertFile == "" || tls.KeyFile == "" {
			r.addError("%s: mutual_tls requires both cert_file and key_file", field)
		}
	}
	for name, path := range map[string]string{"cert_file": tls.CertFile, "key_file": tls.KeyFile, "ca_file": tls.CAFile} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			r.addError("%s.%s: %s does not exist", field, name, path)
		}
	}
}

func validateA2A(r *ValidationResult, cfg *Config) {
	score := cfg.A2AClient.MinCapabilityMatchScore
	if score < 0 || score > 1 {
		r.addError("a2a_client.min_capability_match_score must be in [0, 1], got %v", score)
	}
	if cfg.A2AServer.FailureThreshold == 0 {
		r.addError("a2a_server.failure_threshold must be non-zero")
	}
	if cfg.A2AServer.RecoveryThreshold == 0 {
		r.addError("a2a_server.recovery_threshold must be non-zero")
	}
	if cfg.A2AClient.PrimaryURL != "" && cfg.A2AClient.Transport.Target != "" &&
		cfg.A2AClient.PrimaryURL != cfg.A2AClient.Transport.Target {
		r.addWarning("a2a_client.primary_url and a2a_client.transport.target disagree")
	}
}
