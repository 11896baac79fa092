// Package env implements the QOLLECTIVE_-prefixed environment overlay
// described in SPEC_FULL.md §4.9: documented variable names map to
// individual config field paths, parsed with typed errors, and merged over
// whatever preset/file layer preceded them.
package env

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jocax/qollective-sub002/pkg/config"
)

// Prefix is the common environment-variable prefix (SPEC_FULL.md §6.4).
const Prefix = "QOLLECTIVE_"

// ParseError reports a typed failure decoding a single environment
// variable, naming the variable so operators can fix it directly.
type ParseError struct {
	Var     string
	Wanted  string
	Value   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("env %s=%q: expected %s", e.Var, e.Value, e.Wanted)
}

// Lookup abstracts os.LookupEnv so the overlay is testable without mutating
// the process environment.
type Lookup func(key string) (string, bool)

// Overlay applies environment variables on top of cfg in place, using
// lookup to resolve each documented name. Only the documented names are
// read; unrecognized QOLLECTIVE_ variables are ignored and reported neither
// as errors nor as warnings.
func Overlay(cfg *config.Config, lookup Lookup) error {
	if v, ok := lookup(Prefix + "TENANT_EXTRACTION"); ok {
		b, err := parseBool(Prefix+"TENANT_EXTRACTION", v)
		if err != nil {
			return err
		}
		cfg.TenantExtractionEnabled = b
	}

	if v, ok := lookup(Prefix + "REST_PORT"); ok {
		n, err := parseInt(Prefix+"REST_PORT", v)
		if err != nil {
			return err
		}
		cfg.REST.Port = n
	}
	if v, ok := lookup(Prefix + "REST_TIMEOUT"); ok {
		d, err := parseDuration(Prefix+"REST_TIMEOUT", v)
		if err != nil {
			return err
		}
		cfg.REST.RequestTimeout = d
	}
	if v, ok := lookup(Prefix + "REST_TLS_ENABLED"); ok {
		b, err := parseBool(Prefix+"REST_TLS_ENABLED", v)
		if err != nil {
			return err
		}
		cfg.REST.TLS.Enabled = b
	}

	if v, ok := lookup(Prefix + "NATS_URLS"); ok {
		cfg.NATS.URLs = parseCSV(v)
	}
	if v, ok := lookup(Prefix + "NATS_TLS_ENABLED"); ok {
		b, err := parseBool(Prefix+"NATS_TLS_ENABLED", v)
		if err != nil {
			return err
		}
		cfg.NATS.TLS.Enabled = b
	}
	if v, ok := lookup(Prefix + "TLS_CERT_BASE_PATH"); ok {
		cfg.NATS.TLSCertBasePath = v
	}

	if v, ok := lookup(Prefix + "GRPC_SERVER_PORT"); ok {
		n, err := parseInt(Prefix+"GRPC_SERVER_PORT", v)
		if err != nil {
			return err
		}
		cfg.GRPCServer.Port = n
	}

	if v, ok := lookup(Prefix + "WEBSOCKET_PORT"); ok {
		n, err := parseInt(Prefix+"WEBSOCKET_PORT", v)
		if err != nil {
			return err
		}
		cfg.WebSocket.Port = n
	}

	if v, ok := lookup(Prefix + "A2A_PRIMARY_URL"); ok {
		cfg.A2AClient.PrimaryURL = normalizeOptional(v)
	}
	if v, ok := lookup(Prefix + "A2A_MIN_CAPABILITY_MATCH_SCORE"); ok {
		f, err := parseFloat(Prefix+"A2A_MIN_CAPABILITY_MATCH_SCORE", v)
		if err != nil {
			return err
		}
		cfg.A2AClient.MinCapabilityMatchScore = f
	}

	if v, ok := lookup(Prefix + "DEBUG_LOGGING"); ok {
		b, err := parseBool(Prefix+"DEBUG_LOGGING", v)
		if err != nil {
			return err
		}
		cfg.Security.DebugLoggingOn = b
	}

	return nil
}

func parseBool(name, v string) (bool, error) {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, &ParseError{Var: name, Wanted: "true/false", Value: v}
	}
	return b, nil
}

func parseInt(name, v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &ParseError{Var: name, Wanted: "number", Value: v}
	}
	return n, nil
}

func parseFloat(name, v string) (float64, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, &ParseError{Var: name, Wanted: "number", Value: v}
	}
	return f, nil
}

func parseDuration(name, v string) (time.Duration, error) {
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, &ParseError{Var: name, Wanted: "duration (e.g. 30s)", Value: v}
	}
	return d, nil
}

func parseCSV(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func normalizeOptional(v string) string {
	if strings.TrimSpace(v) == "" {
		return ""
	}
	return v
}
