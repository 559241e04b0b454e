// Package evlog builds the structured logger Socket and HttpParser
// lifecycle transitions are logged through: Lifecycle attaches
// listeners and a parse-error sink, and EventEmitter.SetLogger carries
// only the maxListeners diagnostic. Grounded on nishisan-dev-n-backup's
// internal/logging package: level/format/file selection, stdout+file
// fan-out via io.MultiWriter, same level names and JSON-by-default.
package evlog

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nodecore/evnet"
	"github.com/nodecore/evnet/config"
)

// New builds a slog.Logger from a LoggingConfig, plus an io.Closer the
// caller must invoke on shutdown (a no-op when FilePath is empty).
func New(cfg config.LoggingConfig) (*slog.Logger, io.Closer) {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var w io.Writer = os.Stdout
	closer := io.NopCloser(strings.NewReader(""))

	if cfg.FilePath != "" {
		f, err := os.OpenFile(cfg.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "evlog: could not open log file %q: %v (logging to stdout only)\n", cfg.FilePath, err)
		} else {
			w = io.MultiWriter(os.Stdout, f)
			closer = f
		}
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler), closer
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Lifecycle wraps a *slog.Logger with the event-name vocabulary Socket
// and HttpParser lifecycle transitions are logged under, so call sites
// read as "what happened" rather than repeating slog boilerplate.
type Lifecycle struct {
	log *slog.Logger
}

// NewLifecycle wraps log (nil is replaced with slog.Default()).
func NewLifecycle(log *slog.Logger) *Lifecycle {
	if log == nil {
		log = slog.Default()
	}
	return &Lifecycle{log: log}
}

// Attach registers listeners on sock for "connect", "close", "error",
// and "timeout", logging each at the level appropriate to an operator
// watching the process from the outside. It also installs l's logger
// as sock's EventEmitter logger, so the maxListeners diagnostic goes
// through the same sink.
func (l *Lifecycle) Attach(sock *evnet.Socket) {
	sock.SetLogger(l.log)
	remoteAddr, _ := sock.RemoteAddress()
	remotePort, _ := sock.RemotePort()

	sock.On("connect", func(...interface{}) {
		addr, _ := sock.RemoteAddress()
		port, _ := sock.RemotePort()
		l.log.Debug("socket connected", "remoteAddr", addr, "remotePort", port)
	})
	sock.On("timeout", func(...interface{}) {
		l.log.Debug("socket inactivity timeout", "remoteAddr", remoteAddr, "remotePort", remotePort)
	})
	sock.On("error", func(args ...interface{}) {
		var err error
		if len(args) > 0 {
			err, _ = args[0].(error)
		}
		l.log.Warn("socket error", "error", err, "remoteAddr", remoteAddr, "remotePort", remotePort)
	})
	sock.On("close", func(args ...interface{}) {
		hadError := len(args) > 0 && args[0] == true
		l.log.Debug("socket closed", "hadError", hadError, "remoteAddr", remoteAddr, "remotePort", remotePort)
	})
}

// ParseError logs an HttpParser decode failure at Warn.
func (l *Lifecycle) ParseError(err error) {
	l.log.Warn("http parse error", "error", err)
}

// AttachParser installs l.ParseError as p's parse-error diagnostic
// sink, so malformed messages are logged before the owning socket is
// torn down.
func (l *Lifecycle) AttachParser(p *evnet.HttpParser) {
	p.SetOnParseError(l.ParseError)
}
