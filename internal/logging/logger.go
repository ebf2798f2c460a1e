package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

// historySize is how many recent entries the ring buffer keeps for
// streaming clients.
const historySize = 1000

// Config selects the global level and output format, plus per-module
// level overrides keyed by module name.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
}

// registry owns every module logger and the shared ring buffer. One
// package-level instance backs the exported functions. Loggers handed
// out before Initialize stay valid: their LevelVars are shared with
// the registry, so Initialize retunes them in place.
type registry struct {
	mu       sync.RWMutex
	loggers  map[string]*slog.Logger
	levels   map[string]*slog.LevelVar
	config   Config
	ready    bool
	buffer   *RingBuffer
	callback LogCallback
}

var reg = &registry{
	loggers: make(map[string]*slog.Logger),
	levels:  make(map[string]*slog.LevelVar),
}

var defaultLevel = &slog.LevelVar{}

// Initialize configures the logging system. Call it once at startup,
// after flags and config files have been read.
func Initialize(config Config) {
	reg.init(config)
}

func (r *registry) init(config Config) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.config = config
	r.ready = true
	r.buffer = NewRingBuffer(historySize)

	base := levelOrDefault(config.Level, slog.LevelInfo)
	defaultLevel.Set(base)

	// Loggers created before this point were built without the ring
	// buffer, so their handler chains are rebuilt.
	for module, lv := range r.levels {
		lv.Set(moduleLevel(config, module, base))
		r.loggers[module] = newModuleLogger(config.Format, lv, module)
	}

	slog.SetDefault(slog.New(buildHandler(config.Format, defaultLevel)))
}

// GetLogger returns the named module logger, creating it on first use.
// The same *slog.Logger is returned for the process lifetime; a later
// Initialize adjusts its level through the shared LevelVar.
func GetLogger(module string) *slog.Logger {
	return reg.logger(module)
}

func (r *registry) logger(module string) *slog.Logger {
	r.mu.RLock()
	l, ok := r.loggers[module]
	r.mu.RUnlock()
	if ok {
		return l
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.loggers[module]; ok {
		return l
	}

	lv := &slog.LevelVar{}
	format := "text"
	level := slog.LevelInfo
	if r.ready {
		format = r.config.Format
		level = moduleLevel(r.config, module, levelOrDefault(r.config.Level, slog.LevelInfo))
	}
	lv.Set(level)

	l = newModuleLogger(format, lv, module)
	r.loggers[module] = l
	r.levels[module] = lv
	return l
}

// GetBuffer returns the ring buffer of recent log history, nil before
// Initialize.
func GetBuffer() *RingBuffer {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return reg.buffer
}

// SetLogCallback registers a callback invoked for every entry written
// to the ring buffer. The API server uses it to stream logs over SSE.
func SetLogCallback(callback LogCallback) {
	reg.mu.Lock()
	reg.callback = callback
	reg.mu.Unlock()
}

// sink returns the buffer and callback a BufferHandler writes to.
func sink() (*RingBuffer, LogCallback) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return reg.buffer, reg.callback
}

func newModuleLogger(format string, level slog.Leveler, module string) *slog.Logger {
	return slog.New(buildHandler(format, level)).With("module", module)
}

// buildHandler assembles the output chain: stdout in the requested
// format, the systemd journal when reachable, and the ring buffer.
func buildHandler(format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	var handlers []slog.Handler
	if stdoutUsable() {
		if format == "json" {
			handlers = append(handlers, slog.NewJSONHandler(os.Stdout, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(os.Stdout, opts))
		}
	}
	if journalAvailable() {
		handlers = append(handlers, NewJournalHandler(level))
	}
	// The buffer handler resolves the ring buffer at write time, so it
	// is safe in chains built before Initialize.
	handlers = append(handlers, NewBufferHandler(level))

	if len(handlers) == 1 {
		return handlers[0]
	}
	return NewMultiHandler(handlers...)
}

// stdoutUsable reports whether stdout goes anywhere: a terminal, pipe,
// socket, or regular file. /dev/null is a device and fails all four.
func stdoutUsable() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	m := fi.Mode()
	return m&(os.ModeCharDevice|os.ModeNamedPipe|os.ModeSocket) != 0 || m.IsRegular()
}

// moduleLevel resolves the effective level for a module under config.
func moduleLevel(config Config, module string, base slog.Level) slog.Level {
	if override, ok := config.Modules[module]; ok {
		return levelOrDefault(override, base)
	}
	return base
}

func levelOrDefault(name string, fallback slog.Level) slog.Level {
	if parsed := parseLevel(name); parsed != nil {
		return *parsed
	}
	return fallback
}

// parseLevel converts a level name to slog.Level, nil when unknown.
func parseLevel(name string) *slog.Level {
	var l slog.Level
	switch strings.ToLower(name) {
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "warn", "warning":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		return nil
	}
	return &l
}
