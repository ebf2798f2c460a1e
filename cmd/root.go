// Package cmd holds the CLI subcommands that run without the API server:
// unit management against the engine, units-file validation and self-update.
package cmd

import (
	"github.com/smazurov/multistream/internal/config"
	"github.com/smazurov/multistream/internal/logging"
	"github.com/smazurov/multistream/internal/restreamer"
	"github.com/smazurov/multistream/internal/units"
	"github.com/smazurov/multistream/internal/units/store"
)

// engineOptions mirrors the [engine] table of the daemon config file so
// subcommands reach the same engine the server would. The Config field
// names the file for the loader.
type engineOptions struct {
	Config string

	EngineHost     string `toml:"engine.host" env:"ENGINE_HOST"`
	EnginePort     int    `toml:"engine.port" env:"ENGINE_PORT"`
	EngineUsername string `toml:"engine.username" env:"ENGINE_USERNAME"`
	EnginePassword string `toml:"engine.password" env:"ENGINE_PASSWORD"`
	EngineUseHTTPS bool   `toml:"engine.use_https" env:"ENGINE_USE_HTTPS"`
}

// initLogging configures logging for a subcommand. Per-module levels come
// from the [logging] table of the config file; the flags only switch the
// output format.
func initLogging(configFile string, logJSON bool) {
	cfg := config.LoadLoggingConfig(configFile)
	if logJSON {
		cfg.Format = "json"
	}
	logging.Initialize(cfg)
}

// engineConfig loads engine connection settings with the daemon's
// precedence: environment over config file over defaults.
func engineConfig(configFile string) restreamer.Config {
	opts := &engineOptions{
		Config:         configFile,
		EngineHost:     "localhost",
		EnginePort:     8080,
		EngineUsername: "admin",
	}
	if err := config.LoadConfig(opts, nil); err != nil {
		logging.GetLogger("cmd").Warn("Failed to load engine config", "error", err)
	}
	return restreamer.Config{
		Host:     opts.EngineHost,
		Port:     opts.EnginePort,
		Username: opts.EngineUsername,
		Password: opts.EnginePassword,
		UseHTTPS: opts.EngineUseHTTPS,
	}
}

// newUnitService builds a unit manager backed by the given units file.
// engine may be nil for operations that never touch the remote engine.
func newUnitService(unitsFile string, engine units.Engine) (*units.Service, error) {
	unitStore := store.NewTOML(unitsFile)
	svc := units.NewService(units.ServiceOptions{
		Engine: engine,
		Store:  unitStore,
	})
	if err := svc.LoadFromStore(); err != nil {
		return nil, err
	}
	return svc, nil
}
