// Package logging wires slog into the outputs a multistream deployment
// actually has: the systemd journal when journald is reachable, stdout
// when it goes somewhere, and always an in-memory ring buffer that the
// API replays to SSE log clients.
//
// Loggers are handed out per module and cached for the process
// lifetime:
//
//	logger := logging.GetLogger("units")
//	logger.Info("unit started", "unit_id", id)
//
// Call Initialize once at startup after configuration is resolved:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text", // or "json"
//		Modules: map[string]string{
//			"units":      "debug",
//			"restreamer": "warn",
//		},
//	})
//
// Loggers obtained before Initialize keep working; Initialize retunes
// their levels in place through shared LevelVars. Module entries in
// Config override the global level for that module only, so a noisy
// subsystem can be silenced or a suspect one turned up without
// touching the rest.
//
// The TOML form of the same configuration:
//
//	[logging]
//	level = "info"
//	format = "text"
//
//	[logging.modules]
//	units = "debug"
//	restreamer = "warn"
//
// On journald systems every record carries structured fields, so the
// usual filters work:
//
//	journalctl -t multistream -f
//	journalctl -t multistream -p err
//	journalctl -t multistream MODULE=units UNIT_ID=unit_1712345678_4821
package logging
