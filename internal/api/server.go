package api

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/smazurov/multistream/internal/events"
	"github.com/smazurov/multistream/internal/logging"
	"github.com/smazurov/multistream/internal/restreamer"
	"github.com/smazurov/multistream/internal/units"
	"github.com/smazurov/multistream/internal/updater"
)

// EngineClient is the slice of the engine client the engine endpoints
// use.
type EngineClient interface {
	Ping(ctx context.Context) error
	GetInfo(ctx context.Context) (*restreamer.Info, error)
	ListProcesses(ctx context.Context) ([]restreamer.Process, error)
	CommandProcess(ctx context.Context, processID, command string) error
}

// Options carries the server's dependencies and settings.
type Options struct {
	AuthUsername      string
	AuthPassword      string
	UnitService       *units.Service
	UpdateService     updater.Service
	Engine            EngineClient
	EventBus          *events.Bus
	PrometheusHandler http.Handler // optional /metrics scrape handler
}

// Server is the huma v2 API server over Go 1.22 native routing.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	units      *units.Service
	eventBus   *events.Bus
	options    *Options
	logger     *slog.Logger
}

// NewServer assembles the mux, middleware chain and all routes.
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()

	cors := newCORSPolicy()
	cors.registerPreflight(mux)

	// The scrape endpoint bypasses huma, and with it auth: Prometheus
	// has no business in the OpenAPI doc.
	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}

	api := humago.New(mux, humaConfig())

	s := &Server{
		api:      api,
		mux:      mux,
		units:    opts.UnitService,
		eventBus: opts.EventBus,
		options:  opts,
		logger:   logging.GetLogger("api"),
	}

	// Middleware order: CORS headers first so even auth failures carry
	// them, logging second so it observes the auth outcome.
	api.UseMiddleware(cors.middleware)
	api.UseMiddleware(HTTPLoggingMiddleware)
	if opts.AuthUsername != "" && opts.AuthPassword != "" {
		api.UseMiddleware(s.basicAuth(opts.AuthUsername, opts.AuthPassword))
	}

	s.registerRoutes()
	return s
}

func humaConfig() huma.Config {
	cfg := huma.DefaultConfig("Multistream API", "1.0.0")
	cfg.Info.Description = "Stream unit orchestration API for multi-platform restreaming"
	// Relative paths in the OpenAPI doc work under any host or proxy.
	cfg.Servers = []*huma.Server{}
	cfg.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {Type: "http", Scheme: "basic"},
	}
	return cfg
}

// registerRoutes wires every endpoint group.
func (s *Server) registerRoutes() {
	s.registerSystemRoutes()
	s.registerUnitRoutes()
	s.registerDestinationRoutes()
	s.registerTemplateRoutes()
	s.registerEngineRoutes()
	s.registerUpdateRoutes()
	s.registerSSERoutes()
	s.registerLogRoutes()
	s.registerMetricsRoutes()
}

// GetMux returns the underlying mux, mainly for tests.
func (s *Server) GetMux() *http.ServeMux { return s.mux }

// GetAPI returns the huma API instance.
func (s *Server) GetAPI() huma.API { return s.api }

// Start serves HTTP on addr, blocking until the listener closes.
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting Multistream API server", "addr", addr)
	s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")

	s.httpServer = &http.Server{Addr: addr, Handler: s.mux}
	return s.httpServer.ListenAndServe()
}

// Stop tears the listener down. Close, not Shutdown: SSE streams hold
// their connections open indefinitely, so a graceful drain never
// finishes.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Close()
}

// basicAuth guards every operation that declares a security
// requirement.
func (s *Server) basicAuth(username, password string) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if op := ctx.Operation(); op != nil && len(op.Security) == 0 {
			next(ctx)
			return
		}

		encoded, found := credentialsFrom(ctx)
		if !found {
			s.unauthorized(ctx, "Authentication required")
			return
		}
		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			s.unauthorized(ctx, "Invalid credentials")
			return
		}
		user, pass, ok := strings.Cut(string(decoded), ":")
		if !ok || user != username || pass != password {
			s.unauthorized(ctx, "Invalid credentials")
			return
		}
		next(ctx)
	}
}

// credentialsFrom pulls the base64 user:pass from the Authorization
// header or, for EventSource connections that cannot set headers, from
// the auth query parameter. found is false only when neither carries
// anything.
func credentialsFrom(ctx huma.Context) (string, bool) {
	if h := ctx.Header("Authorization"); h != "" {
		encoded, ok := strings.CutPrefix(h, "Basic ")
		if !ok {
			return "", true
		}
		return encoded, true
	}
	if q := ctx.Query("auth"); q != "" {
		return q, true
	}
	return "", false
}

func (s *Server) unauthorized(ctx huma.Context, message string) {
	ctx.SetHeader("WWW-Authenticate", `Basic realm="Multistream API"`)
	huma.WriteErr(s.api, ctx, http.StatusUnauthorized, message)
}

// withAuth is the security requirement shared by all protected routes.
func withAuth() []map[string][]string {
	return []map[string][]string{{"basicAuth": {}}}
}
