package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/smazurov/multistream/internal/config"
	"github.com/smazurov/multistream/internal/logging"
	"github.com/smazurov/multistream/internal/restreamer"
	"github.com/smazurov/multistream/internal/units"
	"github.com/smazurov/multistream/internal/units/store"
)

// CreateUnitCmd creates the unit command with its subcommands.
func CreateUnitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unit",
		Short: "Manage stream units",
		Long: `Manage stream units directly from the command line. ` +
			`Lifecycle subcommands talk straight to the Restreamer engine, so they work without the API server running.`,
	}

	cmd.AddCommand(createUnitListCmd())
	cmd.AddCommand(createUnitCreateCmd())
	cmd.AddCommand(createUnitStartCmd())
	cmd.AddCommand(createUnitStopCmd())
	cmd.AddCommand(createUnitWatchCmd())

	return cmd
}

func createUnitListCmd() *cobra.Command {
	var unitsFile string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List configured stream units",
		Run: func(_ *cobra.Command, _ []string) {
			unitStore := store.NewTOML(unitsFile)
			if err := unitStore.Load(); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to load units file %s: %v\n", unitsFile, err)
				os.Exit(1)
			}

			all := unitStore.Units()
			if len(all) == 0 {
				fmt.Println("No units configured")
				return
			}

			fmt.Printf("%-24s %-24s %-14s %s\n", "ID", "NAME", "DESTINATIONS", "AUTO-START")
			for i := range all {
				u := &all[i]
				enabled := len(u.EnabledDestinations())
				fmt.Printf("%-24s %-24s %-14s %t\n",
					u.ID, u.Name, fmt.Sprintf("%d/%d enabled", enabled, len(u.Destinations)), u.AutoStart)
			}
		},
	}

	cmd.Flags().StringVar(&unitsFile, "units", "units.toml", "Path to unit definitions file")

	return cmd
}

func createUnitCreateCmd() *cobra.Command {
	var unitsFile string
	var inputURL string
	var autoStart bool

	cmd := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a stream unit",
		Args:  cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			// Keep stdout clean; service info logs stay hidden.
			logging.Initialize(logging.Config{Level: "warn", Format: "text"})

			svc, err := newUnitService(unitsFile, nil)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to load units file %s: %v\n", unitsFile, err)
				os.Exit(1)
			}

			unit, err := svc.CreateUnit(units.UnitCreateParams{
				Name:      args[0],
				InputURL:  inputURL,
				AutoStart: autoStart,
			})
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to create unit: %v\n", err)
				os.Exit(1)
			}

			fmt.Printf("Created unit %s (%s)\n", unit.ID, unit.Name)
			fmt.Printf("  Input: %s\n", unit.InputURL)
		},
	}

	cmd.Flags().StringVar(&unitsFile, "units", "units.toml", "Path to unit definitions file")
	cmd.Flags().StringVar(&inputURL, "input", "", "Input stream URL (defaults to the local ingest)")
	cmd.Flags().BoolVar(&autoStart, "auto-start", false, "Start the unit on daemon boot")

	return cmd
}

func createUnitStartCmd() *cobra.Command {
	var unitsFile string
	var configFile string
	var logJSON bool

	cmd := &cobra.Command{
		Use:   "start [unit-id]",
		Short: "Start a stream unit on the engine",
		Args:  cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			unitID := args[0]
			initLogging(configFile, logJSON)
			logger := logging.GetLogger("cmd").With("unit_id", unitID)

			client := restreamer.NewClient(engineConfig(configFile))

			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()

			if err := client.Ping(ctx); err != nil {
				logger.Error("Engine is unreachable", "error", err)
				os.Exit(1)
			}

			svc, err := newUnitService(unitsFile, client)
			if err != nil {
				logger.Error("Failed to load units file", "error", err, "units", unitsFile)
				os.Exit(1)
			}

			if err := svc.StartUnit(ctx, unitID); err != nil {
				logger.Error("Failed to start unit", "error", err)
				os.Exit(1)
			}

			unit, err := svc.GetUnit(unitID)
			if err != nil {
				logger.Error("Unit vanished after start", "error", err)
				os.Exit(1)
			}
			fmt.Printf("Unit %s started (process %s)\n", unitID, unit.ProcessReference)
		},
	}

	cmd.Flags().StringVar(&unitsFile, "units", "units.toml", "Path to unit definitions file")
	cmd.Flags().StringVarP(&configFile, "config", "c", "config.toml", "Path to configuration file")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Use JSON log format")

	return cmd
}

func createUnitStopCmd() *cobra.Command {
	var unitsFile string
	var configFile string
	var logJSON bool

	cmd := &cobra.Command{
		Use:   "stop [unit-id]",
		Short: "Stop a stream unit's engine process",
		Args:  cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			unitID := args[0]
			initLogging(configFile, logJSON)
			logger := logging.GetLogger("cmd").With("unit_id", unitID)

			unitStore := store.NewTOML(unitsFile)
			if err := unitStore.Load(); err != nil {
				logger.Error("Failed to load units file", "error", err, "units", unitsFile)
				os.Exit(1)
			}
			known := false
			for _, u := range unitStore.Units() {
				if u.ID == unitID {
					known = true
					break
				}
			}
			if !known {
				logger.Error("Unit not found")
				os.Exit(1)
			}

			client := restreamer.NewClient(engineConfig(configFile))

			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()

			if err := client.Ping(ctx); err != nil {
				logger.Error("Engine is unreachable", "error", err)
				os.Exit(1)
			}

			// The engine process carries the unit id as its reference, so a
			// fresh CLI invocation can find it without runtime state.
			procID, err := client.ResolveProcess(ctx, unitID)
			if err != nil {
				fmt.Printf("Unit %s is not running\n", unitID)
				return
			}
			if err := client.DeleteProcess(ctx, procID); err != nil {
				logger.Error("Failed to stop unit", "error", err)
				os.Exit(1)
			}

			fmt.Printf("Unit %s stopped\n", unitID)
		},
	}

	cmd.Flags().StringVar(&unitsFile, "units", "units.toml", "Path to unit definitions file")
	cmd.Flags().StringVarP(&configFile, "config", "c", "config.toml", "Path to configuration file")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Use JSON log format")

	return cmd
}

func createUnitWatchCmd() *cobra.Command {
	var unitsFile string
	var configFile string
	var logJSON bool

	cmd := &cobra.Command{
		Use:   "watch [unit-id]",
		Short: "Run a stream unit with hot reload",
		Long: `Starts a unit on the engine and keeps it supervised: health monitoring, ` +
			`reconnect and failover run in this process, and edits to the units file restart the unit with the fresh definition.`,
		Args: cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			unitID := args[0]
			initLogging(configFile, logJSON)
			logger := logging.GetLogger("cmd").With("unit_id", unitID)

			logger.Info("Starting watch command", "units", unitsFile)

			client := restreamer.NewClient(engineConfig(configFile))

			svc, err := newUnitService(unitsFile, client)
			if err != nil {
				logger.Error("Failed to load units file", "error", err, "units", unitsFile)
				os.Exit(1)
			}

			current, err := svc.GetUnit(unitID)
			if err != nil {
				logger.Error("Unit not found")
				os.Exit(1)
			}

			startCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
			err = svc.StartUnit(startCtx, unitID)
			cancel()
			if err != nil {
				logger.Error("Failed to start unit", "error", err)
				os.Exit(1)
			}

			// Persistent fields only; runtime state is excluded from TOML.
			definition := func(u *units.StreamUnit) string {
				data, marshalErr := toml.Marshal(u)
				if marshalErr != nil {
					return ""
				}
				return string(data)
			}
			currentDef := definition(current)

			var mu sync.Mutex
			done := make(chan int, 1)

			unitsLoader := func(path string) (map[string]units.StreamUnit, error) {
				s := store.NewTOML(path)
				if loadErr := s.Load(); loadErr != nil {
					return nil, loadErr
				}
				all := s.Units()
				byID := make(map[string]units.StreamUnit, len(all))
				for _, u := range all {
					byID[u.ID] = u
				}
				return byID, nil
			}

			watcher := config.NewConfigWatcher(
				unitsFile,
				unitsLoader,
				logger,
				config.WithDebounce[map[string]units.StreamUnit](1500*time.Millisecond),
			)

			watcher.OnReload(func(all map[string]units.StreamUnit) {
				mu.Lock()
				defer mu.Unlock()

				fresh, exists := all[unitID]
				if !exists {
					logger.Warn("Unit removed from config, shutting down")
					stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
					_ = svc.StopUnit(stopCtx, unitID)
					stopCancel()
					done <- 0
					return
				}

				freshDef := definition(&fresh)
				if freshDef == currentDef {
					logger.Debug("Config reloaded, unit unchanged")
					return
				}

				// Bring up the replacement service before stopping the old
				// one, so a broken file never takes the unit down.
				newSvc, buildErr := newUnitService(unitsFile, client)
				if buildErr != nil {
					logger.Warn("Failed to reload units file", "error", buildErr)
					return
				}

				logger.Info("Unit definition changed, restarting")
				if closeErr := svc.Close(); closeErr != nil {
					logger.Warn("Stop finished with errors", "error", closeErr)
				}

				restartCtx, restartCancel := context.WithTimeout(context.Background(), time.Minute)
				if startErr := newSvc.StartUnit(restartCtx, unitID); startErr != nil {
					logger.Warn("Failed to restart unit", "error", startErr)
				}
				restartCancel()

				svc = newSvc
				currentDef = freshDef
			})

			// Start config watcher (non-fatal if it fails)
			if watchErr := watcher.Start(); watchErr != nil {
				logger.Warn("Failed to start config watcher, hot-reload disabled", "error", watchErr)
			} else {
				defer func() { _ = watcher.Stop() }()
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			exitCode := 0
			select {
			case sig := <-sigCh:
				logger.Info("Received signal, stopping unit", "signal", sig.String())
				mu.Lock()
				if closeErr := svc.Close(); closeErr != nil {
					logger.Warn("Stop finished with errors", "error", closeErr)
					exitCode = 1
				}
				mu.Unlock()
			case code := <-done:
				exitCode = code
			}

			logger.Info("Watch command exiting", "exit_code", exitCode)
			os.Exit(exitCode)
		},
	}

	cmd.Flags().StringVar(&unitsFile, "units", "units.toml", "Path to unit definitions file")
	cmd.Flags().StringVarP(&configFile, "config", "c", "config.toml", "Path to configuration file")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Use JSON log format")

	return cmd
}
