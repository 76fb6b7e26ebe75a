// Package logger builds the slog handlers used by the command line tools
// and the HTTP server.
package logger

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/soundprediction/ontoweave/pkg/config"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
)

// persistenceWords mark messages about committed or persisted state.
var persistenceWords = []string{"persist", "committed", "saved", "stitched"}

// ColorHandler is a text handler that colors whole lines: errors red,
// warnings yellow, and persistence messages green.
type ColorHandler struct {
	opts  slog.HandlerOptions
	out   io.Writer
	mu    *sync.Mutex
	// wraps replays WithAttrs and WithGroup calls in order.
	wraps []func(slog.Handler) slog.Handler
}

// NewColorHandler creates a ColorHandler writing to out.
func NewColorHandler(out io.Writer, opts *slog.HandlerOptions) *ColorHandler {
	h := &ColorHandler{out: out, mu: &sync.Mutex{}}
	if opts != nil {
		h.opts = *opts
	}
	return h
}

// Enabled implements slog.Handler
func (h *ColorHandler) Enabled(_ context.Context, level slog.Level) bool {
	threshold := slog.LevelInfo
	if h.opts.Level != nil {
		threshold = h.opts.Level.Level()
	}
	return level >= threshold
}

// Handle implements slog.Handler
func (h *ColorHandler) Handle(ctx context.Context, r slog.Record) error {
	var buf bytes.Buffer
	var inner slog.Handler = slog.NewTextHandler(&buf, &h.opts)
	for _, wrap := range h.wraps {
		inner = wrap(inner)
	}
	if err := inner.Handle(ctx, r); err != nil {
		return err
	}

	line := strings.TrimRight(buf.String(), "\n")
	if color := colorFor(r); color != "" {
		line = color + line + colorReset
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, line+"\n")
	return err
}

// WithAttrs implements slog.Handler
func (h *ColorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.with(func(next slog.Handler) slog.Handler { return next.WithAttrs(attrs) })
}

// WithGroup implements slog.Handler
func (h *ColorHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return h.with(func(next slog.Handler) slog.Handler { return next.WithGroup(name) })
}

func (h *ColorHandler) with(wrap func(slog.Handler) slog.Handler) *ColorHandler {
	c := *h
	c.wraps = append(append([]func(slog.Handler) slog.Handler(nil), h.wraps...), wrap)
	return &c
}

func colorFor(r slog.Record) string {
	switch {
	case r.Level >= slog.LevelError:
		return colorRed
	case r.Level >= slog.LevelWarn:
		return colorYellow
	}
	msg := strings.ToLower(r.Message)
	for _, w := range persistenceWords {
		if strings.Contains(msg, w) {
			return colorGreen
		}
	}
	return ""
}

// ParseLevel maps debug, info, warn and error to slog levels. Unknown
// values give info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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

// NewDefaultLogger creates a colored logger on stderr.
func NewDefaultLogger(level slog.Level) *slog.Logger {
	return slog.New(NewColorHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewHandler builds the handler selected by cfg.Format.
func NewHandler(cfg config.LogConfig, out io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	switch cfg.Format {
	case "json":
		return slog.NewJSONHandler(out, opts)
	case "text":
		return slog.NewTextHandler(out, opts)
	default:
		return NewColorHandler(out, opts)
	}
}

// New creates a logger from cfg.
func New(cfg config.LogConfig, out io.Writer) *slog.Logger {
	return slog.New(NewHandler(cfg, out))
}
