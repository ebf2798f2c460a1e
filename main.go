package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/multistream/cmd"
	"github.com/smazurov/multistream/internal/api"
	"github.com/smazurov/multistream/internal/config"
	"github.com/smazurov/multistream/internal/events"
	"github.com/smazurov/multistream/internal/logging"
	"github.com/smazurov/multistream/internal/metrics/exporters"
	"github.com/smazurov/multistream/internal/restreamer"
	"github.com/smazurov/multistream/internal/units"
	"github.com/smazurov/multistream/internal/units/store"
	"github.com/smazurov/multistream/internal/updater"
	"github.com/smazurov/multistream/internal/version"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`

	// Units settings
	UnitsConfigFile string `help:"Unit definitions file" default:"units.toml" toml:"units.config_file" env:"UNITS_CONFIG_FILE"`

	// Engine settings
	EngineHost         string `help:"Restreamer engine host" default:"localhost" toml:"engine.host" env:"ENGINE_HOST"`
	EnginePort         int    `help:"Restreamer engine API port" default:"8080" toml:"engine.port" env:"ENGINE_PORT"`
	EngineUsername     string `help:"Restreamer engine username" default:"admin" toml:"engine.username" env:"ENGINE_USERNAME"`
	EnginePassword     string `help:"Restreamer engine password" default:"" toml:"engine.password" env:"ENGINE_PASSWORD"`
	EngineUseHTTPS     bool   `help:"Use HTTPS for engine API" default:"false" toml:"engine.use_https" env:"ENGINE_USE_HTTPS"`
	EnginePollInterval string `help:"Engine availability poll interval" default:"10s" toml:"engine.poll_interval" env:"ENGINE_POLL_INTERVAL"`

	// Metrics settings
	MetricsPrometheusEnabled bool `help:"Enable Prometheus /metrics endpoint" default:"true" toml:"metrics.prometheus_enabled" env:"METRICS_PROMETHEUS_ENABLED"`
	MetricsSSEEnabled        bool `help:"Enable SSE metrics stream" default:"true" toml:"metrics.sse_enabled" env:"METRICS_SSE_ENABLED"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Update settings
	UpdateRepository string `help:"GitHub repository for self-update" default:"smazurov/multistream" toml:"update.repository" env:"UPDATE_REPOSITORY"`
	UpdatePrerelease bool   `help:"Include prereleases when checking for updates" default:"false" toml:"update.prerelease" env:"UPDATE_PRERELEASE"`

	// Logging settings
	LoggingLevel      string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat     string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingUnits      string `help:"Unit manager logging level" default:"info" toml:"logging.units" env:"LOGGING_UNITS"`
	LoggingRestreamer string `help:"Engine client logging level" default:"info" toml:"logging.restreamer" env:"LOGGING_RESTREAMER"`
	LoggingAPI        string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingUpdater    string `help:"Updater logging level" default:"info" toml:"logging.updater" env:"LOGGING_UPDATER"`
}

func main() {
	// Create Huma CLI
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, nil); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		// Initialize logging system
		loggingConfig := logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"units":      opts.LoggingUnits,
				"restreamer": opts.LoggingRestreamer,
				"api":        opts.LoggingAPI,
				"updater":    opts.LoggingUpdater,
			},
		}
		logging.Initialize(loggingConfig)

		logger := logging.GetLogger("main")

		// Create event bus for in-process event handling
		eventBus := events.New()

		// Mirror every log entry onto the bus for SSE streaming. The seq
		// number assigned by the ring buffer travels with the event so
		// clients can dedupe against the history replay.
		logging.SetLogCallback(func(entry logging.LogEntry) {
			eventBus.Publish(events.LogEntryEvent{
				Seq:        entry.Seq,
				Timestamp:  entry.Timestamp.UTC().Format(time.RFC3339Nano),
				Level:      entry.Level,
				Module:     entry.Module,
				Message:    entry.Message,
				Attributes: entry.Attributes,
			})
		})

		// Client for the remote Restreamer engine
		engine := restreamer.NewClient(restreamer.Config{
			Host:     opts.EngineHost,
			Port:     opts.EnginePort,
			Username: opts.EngineUsername,
			Password: opts.EnginePassword,
			UseHTTPS: opts.EngineUseHTTPS,
		})

		// Create unit store and manager
		unitStore := store.NewTOML(opts.UnitsConfigFile)
		unitService := units.NewService(units.ServiceOptions{
			Engine: engine,
			Store:  unitStore,
			Bus:    eventBus,
		})

		// Load persisted units and templates at startup. Runtime state is
		// reset to inactive; auto-start units come up in OnStart.
		if loadErr := unitService.LoadFromStore(); loadErr != nil {
			logger.Warn("Failed to load units from store", "error", loadErr)
		}

		// Self-update service (may come back disabled without write access
		// to the binary; the API reports the reason)
		var updateService updater.Service
		if svc, updErr := updater.NewService(&updater.Options{
			Repository: opts.UpdateRepository,
			Prerelease: opts.UpdatePrerelease,
		}); updErr != nil {
			logger.Warn("Update service unavailable", "error", updErr)
		} else {
			updateService = svc
		}

		apiOpts := &api.Options{
			AuthUsername:  opts.AuthUsername,
			AuthPassword:  opts.AuthPassword,
			UnitService:   unitService,
			UpdateService: updateService,
			Engine:        engine,
			EventBus:      eventBus,
		}

		// Add Prometheus handler if enabled
		if opts.MetricsPrometheusEnabled {
			apiOpts.PrometheusHandler = exporters.HTTPHandler()
		}

		server := api.NewServer(apiOpts)

		// Periodic unit metrics over SSE
		var sseExporter *exporters.SSEExporter
		if opts.MetricsSSEEnabled {
			sseExporter = exporters.NewSSEExporter(eventBus)
		}

		pollInterval, parseErr := time.ParseDuration(opts.EnginePollInterval)
		if parseErr != nil {
			pollInterval = 10 * time.Second
		}

		hooks.OnStart(func() {
			// Watch engine availability. When the engine comes back after an
			// outage, reconcile: restart units whose process vanished and
			// bring up auto-start units that never made it.
			engine.StartMonitor(pollInterval, func(available bool) {
				eventBus.Publish(events.EngineStatusEvent{
					Available: available,
					Timestamp: time.Now().UTC().Format(time.RFC3339),
				})
				if !available {
					return
				}
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
				defer cancel()
				if resyncErr := unitService.ResyncEngine(ctx); resyncErr != nil {
					logger.Warn("Engine resync finished with errors", "error", resyncErr)
				}
			})

			if sseExporter != nil {
				sseExporter.Start(context.Background())
			}

			// Bring up auto-start units before accepting requests. Failures
			// are not fatal; the engine monitor retries them on reconnect.
			startCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			if startErr := unitService.StartAll(startCtx); startErr != nil {
				logger.Warn("Some units failed to start", "error", startErr)
			}
			cancel()

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down server")
			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}

			if sseExporter != nil {
				sseExporter.Stop()
			}

			// Stop polling before tearing down units so a reconnect cannot
			// race the shutdown resync.
			engine.Stop()

			// Stop all live units and wait for their monitors to exit
			if closeErr := unitService.Close(); closeErr != nil {
				logger.Error("Error stopping units", "error", closeErr)
			}
		})
	})

	cli.Root().Version = version.String()

	// Add unit management command
	unitCmd := cmd.CreateUnitCmd()
	cli.Root().AddCommand(unitCmd)

	// Add validate command
	validateCmd := cmd.CreateValidateCmd()
	cli.Root().AddCommand(validateCmd)

	// Add update command
	updateCmd := cmd.CreateUpdateCmd()
	cli.Root().AddCommand(updateCmd)

	// Run the CLI
	cli.Run()
}
