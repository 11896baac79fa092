// Command qollectived runs a qollective REST+in-process agent node: it
// loads configuration, starts the A2A registry/router/health monitor, and
// serves the unified envelope endpoints over REST (SPEC_FULL.md §4.3,
// §4.6-§4.8), the way kagent's CLI wires cobra commands over a shared
// config struct.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jocax/qollective-sub002/internal/logging"
	"github.com/jocax/qollective-sub002/pkg/a2a"
	"github.com/jocax/qollective-sub002/pkg/config"
	"github.com/jocax/qollective-sub002/pkg/config/env"
	"github.com/jocax/qollective-sub002/pkg/envelope"
	"github.com/jocax/qollective-sub002/pkg/transport"
	"github.com/jocax/qollective-sub002/pkg/transport/inproc"
	"github.com/jocax/qollective-sub002/pkg/transport/rest"
)

type rootFlags struct {
	preset string
	file   string
	strict bool
}

func main() {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:   "qollectived",
		Short: "qollectived runs a qollective messaging node",
		Long:  "qollectived loads layered configuration and serves the envelope transports it configures.",
	}
	rootCmd.PersistentFlags().StringVar(&flags.preset, "preset", "", "named config preset (development, staging, production, debugging, high_performance)")
	rootCmd.PersistentFlags().StringVar(&flags.file, "config", "", "path to a TOML or YAML config file merged over the preset")
	rootCmd.PersistentFlags().BoolVar(&flags.strict, "strict", false, "fail startup on config validation errors instead of only warning")

	rootCmd.AddCommand(serveCmd(flags), validateConfigCmd(flags), versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(flags *rootFlags) (*config.Config, config.ValidationResult, error) {
	return env.Load(env.LoadOptions{
		Preset:   config.Preset(flags.preset),
		FilePath: flags.file,
		Strict:   flags.strict,
	})
}

func validateConfigCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config",
		Short: "Load and validate configuration without starting any transport",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, result, err := loadConfig(flags)
			for _, w := range result.Warnings {
				fmt.Fprintln(os.Stderr, "warning:", w)
			}
			for _, e := range result.Errors {
				fmt.Fprintln(os.Stderr, "error:", e)
			}
			if err != nil {
				return err
			}
			if !result.OK() {
				return fmt.Errorf("%d configuration error(s)", len(result.Errors))
			}
			fmt.Println("configuration OK")
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the qollectived version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("qollectived (development build)")
		},
	}
}

func serveCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the A2A subsystem and the REST/in-process transports",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, result, err := loadConfig(flags)
			if err != nil {
				return err
			}

			log := logging.NewFromEnv()
			logging.Init(log)
			for _, w := range result.Warnings {
				log.Info("config warning", "warning", w)
			}
			for _, e := range result.Errors {
				log.Info("config error", "error", e)
			}

			registry := a2a.NewRegistry(a2a.RegistryConfig{
				MaxAgents:               cfg.A2AServer.MaxAgents,
				MaxCapabilitiesPerAgent: cfg.A2AServer.MaxCapabilitiesPerAgent,
				DefaultTTL:              cfg.A2AServer.DefaultTTL,
			})
			health := a2a.NewHealthMonitor(a2a.HealthConfig{
				FailureThreshold:  cfg.A2AServer.FailureThreshold,
				RecoveryThreshold: cfg.A2AServer.RecoveryThreshold,
				CheckInterval:     cfg.A2AServer.CheckInterval,
			})
			router := a2a.NewRouter(registry, health, a2a.RouterConfig{
				MinCapabilityScore: cfg.A2AClient.MinCapabilityMatchScore,
			})

			inprocRegistry := inproc.NewRegistry()
			inproc.Register(inprocRegistry, "/ping", func(ctx context.Context, e *envelope.Envelope[string]) (*envelope.Envelope[string], error) {
				return envelope.NewBuilder[string]().WithPayload("pong: " + e.Payload).Build()
			})

			reg := transport.NewRegistry(nil)
			reg.Register(inprocRegistry, "inproc")

			restServer := rest.NewServer(cfg.REST)
			wirePingEndpoint(restServer, reg)
			wireDiscoveryEndpoint(restServer, registry, router)

			httpServer := &http.Server{
				Addr:    fmt.Sprintf("%s:%d", cfg.REST.BindAddress, cfg.REST.Port),
				Handler: restServer.Router(),
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				log.Info("rest server listening", "addr", httpServer.Addr)
				errCh <- httpServer.ListenAndServe()
			}()

			select {
			case <-ctx.Done():
				log.Info("shutting down")
				return httpServer.Shutdown(context.Background())
			case err := <-errCh:
				if err != nil && err != http.ErrServerClosed {
					return err
				}
				return nil
			}
		},
	}
}

// wirePingEndpoint round-trips an inbound REST request through the unified
// sender into the in-process "/ping" handler, exercising both the byte
// boundary (REST) and the by-reference boundary (in-process) from a single
// request (spec.md §4.3, §4.4.5).
func wirePingEndpoint(s *rest.Server, reg *transport.Registry) {
	s.HandleFunc("/ping", http.MethodPost, func(ctx context.Context, envJSON []byte) ([]byte, error) {
		in, err := decodeEnvelope[string](envJSON)
		if err != nil {
			return nil, err
		}
		out, err := transport.Send[string, string](ctx, reg, "inproc://local/ping", in.Payload, transport.SendOptions{})
		if err != nil {
			return nil, err
		}
		return buildEnvelope(out)
	})
}

// wireDiscoveryEndpoint exposes the A2A registry's discover operation and
// the router's single-pick routing decision over REST, so an operator (or
// another node) can exercise capability discovery and load-balancing
// without an A2A client library.
func wireDiscoveryEndpoint(s *rest.Server, registry *a2a.Registry, router *a2a.Router) {
	s.HandleFunc("/a2a/discover", http.MethodPost, func(ctx context.Context, envJSON []byte) ([]byte, error) {
		in, err := decodeEnvelope[a2a.CapabilityQuery](envJSON)
		if err != nil {
			return nil, err
		}
		agents := registry.Discover(in.Payload)
		ids := make([]string, 0, len(agents))
		for _, a := range agents {
			ids = append(ids, a.AgentID)
		}
		return buildEnvelope(strings.Join(ids, ","))
	})

	s.HandleFunc("/a2a/route", http.MethodPost, func(ctx context.Context, envJSON []byte) ([]byte, error) {
		in, err := decodeEnvelope[a2a.CapabilityQuery](envJSON)
		if err != nil {
			return nil, err
		}
		chosen, err := router.Route(in.Payload)
		if err != nil {
			return nil, err
		}
		return buildEnvelope(chosen.AgentID)
	})
}

func decodeEnvelope[T any](data []byte) (*envelope.Envelope[T], error) {
	var e envelope.Envelope[T]
	if err := e.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return &e, nil
}

func buildEnvelope[T any](payload T) ([]byte, error) {
	out, err := envelope.NewBuilder[T]().WithPayload(payload).Build()
	if err != nil {
		return nil, err
	}
	return out.MarshalJSON()
}
