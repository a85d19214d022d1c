// Command mcpserver runs a standalone MCP streamable-HTTP server,
// mirroring the flag-driven wiring of the teacher's cmd/server/main.go
// (flag.String/flag.Bool config, build-collaborators-then-Start,
// signal.Notify-driven graceful shutdown) generalized from mcpdrill's
// control-plane API to an MCP tool/resource/prompt server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bc-dunia/mcpgo/internal/mcpauth"
	"github.com/bc-dunia/mcpgo/internal/mcpserver"
	"github.com/bc-dunia/mcpgo/internal/mcpsession"
	"github.com/bc-dunia/mcpgo/internal/otelmcp"
	"github.com/bc-dunia/mcpgo/internal/streamtransport"
	"github.com/bc-dunia/mcpgo/mcp"
)

func main() {
	addr := flag.String("addr", ":8080", "HTTP server address")
	serviceName := flag.String("service-name", "mcpgo", "service name reported in telemetry and initialize responses")
	serviceVersion := flag.String("service-version", "0.1.0", "service version reported in initialize responses")

	allowedOrigins := flag.String("cors-allowed-origins", "*", "comma-separated list of allowed CORS origins")
	allowCredentials := flag.Bool("cors-allow-credentials", false, "allow credentialed CORS requests")

	jwtEnabled := flag.Bool("auth-enabled", false, "require a bearer JWT on every /mcp request")
	jwtSecret := flag.String("jwt-secret", "", "HMAC secret for bearer JWT validation (required when -auth-enabled)")
	jwtIssuer := flag.String("jwt-issuer", "", "required JWT issuer claim, empty to accept any issuer")

	maxSessions := flag.Int("max-sessions", 10000, "max concurrently live sessions (0 = unlimited)")
	sessionTTL := flag.Int("session-ttl-seconds", 900, "session idle TTL before expiry sweep reclaims it")

	otelEnabled := flag.Bool("otel-enabled", false, "enable OpenTelemetry tracing and metrics")
	otelExporter := flag.String("otel-exporter", "stdout", "telemetry exporter: stdout, otlp-grpc, otlp-http")
	otelEndpoint := flag.String("otel-endpoint", "", "OTLP collector endpoint (for otlp-grpc/otlp-http exporters)")
	otelInsecure := flag.Bool("otel-insecure", true, "disable TLS for the OTLP exporter")
	flag.Parse()

	if *jwtEnabled && *jwtSecret == "" {
		fmt.Fprintln(os.Stderr, "Refusing to start with -auth-enabled and no -jwt-secret")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exporter := parseExporterType(*otelExporter)
	tracer, err := otelmcp.NewTracer(ctx, &otelmcp.Config{
		Enabled:        *otelEnabled,
		ServiceName:    *serviceName,
		ServiceVersion: *serviceVersion,
		ExporterType:   exporter,
		OTLPEndpoint:   *otelEndpoint,
		OTLPInsecure:   *otelInsecure,
		SampleRate:     1.0,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating tracer: %v\n", err)
		os.Exit(1)
	}
	metrics, err := otelmcp.NewMetrics(ctx, &otelmcp.MetricsConfig{
		Enabled:        *otelEnabled,
		ServiceName:    *serviceName,
		ServiceVersion: *serviceVersion,
		ExporterType:   exporter,
		OTLPEndpoint:   *otelEndpoint,
		OTLPInsecure:   *otelInsecure,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating metrics: %v\n", err)
		os.Exit(1)
	}
	if *otelEnabled {
		go func() {
			if err := metrics.RunHostMetricsReporter(ctx); err != nil {
				slog.Error("host_metrics_reporter_failed", "error", err)
			}
		}()
	}

	server := mcpserver.NewServer(*addr, mcpserver.Info{
		Name:         *serviceName,
		Version:      *serviceVersion,
		Instructions: "Reference MCP server built on the streamable HTTP transport.",
	})
	sessionConfig := &mcpsession.Config{
		MaxSessions:          *maxSessions,
		MaxEventsPerSession:  10000,
		SessionTTLSeconds:    *sessionTTL,
		SweepIntervalSeconds: 60,
	}
	server.SetSessionStorage(mcpsession.NewMemoryStoreWithConfig(sessionConfig))
	server.SetSessionConfig(sessionConfig)
	server.SetTransportConfig(&streamtransport.Config{
		Path:                streamtransport.DefaultPath,
		MaxRequestBodyBytes: 1 << 20,
		RequestTimeout:      30 * time.Second,
		HeartbeatInterval:   15 * time.Second,
		SessionPollInterval: 5 * time.Second,
		CORS: streamtransport.CORSConfig{
			AllowedOrigins:   splitAndTrim(*allowedOrigins),
			AllowCredentials: *allowCredentials,
			MaxAge:           10 * time.Minute,
		},
	})
	server.SetTelemetry(tracer, metrics)
	if *jwtEnabled {
		server.SetMiddleware(jwtMiddleware(*jwtSecret, *jwtIssuer).Handler)
	}
	registerDemoTool(server)

	if err := server.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting server: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("mcpgo server listening on %s\n", server.Addr())
	if *jwtEnabled {
		fmt.Println("bearer JWT authentication is enabled ahead of /mcp")
	}

	<-ctx.Done()
	fmt.Println("\nShutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
	}
	if err := tracer.Shutdown(shutdownCtx); err != nil {
		slog.Error("tracer_shutdown_failed", "error", err)
	}
	if err := metrics.Shutdown(shutdownCtx); err != nil {
		slog.Error("metrics_shutdown_failed", "error", err)
	}
	fmt.Println("Server stopped")
}

// jwtMiddleware builds the bearer-auth middleware fronting /mcp.
func jwtMiddleware(secret, issuer string) *mcpauth.Middleware {
	cfg := &mcpauth.Config{Enabled: true, Secret: []byte(secret), Issuer: issuer}
	return mcpauth.NewMiddleware(cfg, mcpauth.NewJWTAuthenticator(cfg))
}

func parseExporterType(name string) otelmcp.ExporterType {
	switch strings.ToLower(name) {
	case "otlp-grpc":
		return otelmcp.ExporterOTLPGRPC
	case "otlp-http":
		return otelmcp.ExporterOTLPHTTP
	case "none", "":
		return otelmcp.ExporterNone
	default:
		return otelmcp.ExporterStdout
	}
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

type echoArgs struct {
	Message string `json:"message"`
}

// registerDemoTool registers a trivial echo tool so a freshly started
// server has something for tools/list and tools/call to exercise.
func registerDemoTool(s *mcpserver.Server) {
	tool, err := mcp.NewToolFromFunc("echo", func(ctx context.Context, a echoArgs) (string, error) {
		return a.Message, nil
	}, mcp.WithDescription("Echoes the message argument back to the caller."))
	if err != nil {
		slog.Error("register_demo_tool_failed", "error", err)
		return
	}
	s.RegisterTool(tool)
}
