package build

import (
	"context"
	"log/slog"

	"github.com/btcsuite/btclog"
	btclogv2 "github.com/btcsuite/btclog/v2"
)

// HandlerSet fans a single log record out to every handler it wraps. relayd
// constructs one from a stderr console handler and, when -log-dir is set, a
// RotatingLogWriter-backed handler, so every log line reaches both sinks
// through one btclog.Handler.
type HandlerSet struct {
	level btclog.Level
	set   []btclogv2.Handler
}

// NewHandlerSet constructs a HandlerSet over handlers, all initialized to
// the Info level.
func NewHandlerSet(handlers ...btclogv2.Handler) *HandlerSet {
	h := &HandlerSet{set: handlers}
	h.SetLevel(btclog.LevelInfo)

	return h
}

// Enabled reports whether every wrapped handler accepts records at level.
//
// NOTE: this is part of the slog.Handler interface.
func (h *HandlerSet) Enabled(ctx context.Context, level slog.Level) bool {
	return allEnabled(ctx, level, h.set)
}

// Handle dispatches record to every wrapped handler, stopping at the first
// error.
//
// NOTE: this is part of the slog.Handler interface.
func (h *HandlerSet) Handle(ctx context.Context, record slog.Record) error {
	return handleAll(ctx, record, h.set)
}

// WithAttrs returns a reducedSet carrying attrs added to every wrapped
// handler. The result drops back to plain slog.Handler since btclog's
// Handler interface has no WithAttrs of its own.
//
// NOTE: this is part of the slog.Handler interface.
func (h *HandlerSet) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Handler, len(h.set))
	for i, handler := range h.set {
		out[i] = handler.WithAttrs(attrs)
	}
	return &reducedSet{set: out}
}

// WithGroup returns a reducedSet with name appended to every wrapped
// handler's group.
//
// NOTE: this is part of the slog.Handler interface.
func (h *HandlerSet) WithGroup(name string) slog.Handler {
	out := make([]slog.Handler, len(h.set))
	for i, handler := range h.set {
		out[i] = handler.WithGroup(name)
	}
	return &reducedSet{set: out}
}

// SubSystem returns a HandlerSet tagged with the given subsystem on every
// wrapped handler, matching actor.UseLogger/deadletter.UseLogger's
// WithPrefix-per-package convention.
//
// NOTE: this is part of the btclog.Handler interface.
func (h *HandlerSet) SubSystem(tag string) btclogv2.Handler {
	out := make([]btclogv2.Handler, len(h.set))
	for i, handler := range h.set {
		out[i] = handler.SubSystem(tag)
	}
	return &HandlerSet{set: out, level: h.level}
}

// SetLevel changes the level on every wrapped handler.
//
// NOTE: this is part of the btclog.Handler interface.
func (h *HandlerSet) SetLevel(level btclog.Level) {
	for _, handler := range h.set {
		handler.SetLevel(level)
	}
	h.level = level
}

// Level returns the level HandlerSet was last set to.
//
// NOTE: this is part of the btclog.Handler interface.
func (h *HandlerSet) Level() btclog.Level {
	return h.level
}

// WithPrefix returns a HandlerSet with prefix applied to every wrapped
// handler's output.
//
// NOTE: this is part of the btclog.Handler interface.
func (h *HandlerSet) WithPrefix(prefix string) btclogv2.Handler {
	out := make([]btclogv2.Handler, len(h.set))
	for i, handler := range h.set {
		out[i] = handler.WithPrefix(prefix)
	}
	return &HandlerSet{set: out, level: h.level}
}

// Ensure HandlerSet implements btclogv2.Handler at compile time.
var _ btclogv2.Handler = (*HandlerSet)(nil)

// reducedSet is the slog.Handler HandlerSet.WithAttrs/WithGroup fall back
// to: once attrs or a group have been layered on, there is no btclog-level
// operation left to fan out, only the plain slog ones.
type reducedSet struct {
	set []slog.Handler
}

func (r *reducedSet) Enabled(ctx context.Context, level slog.Level) bool {
	return allEnabled(ctx, level, r.set)
}

func (r *reducedSet) Handle(ctx context.Context, record slog.Record) error {
	return handleAll(ctx, record, r.set)
}

func (r *reducedSet) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Handler, len(r.set))
	for i, handler := range r.set {
		out[i] = handler.WithAttrs(attrs)
	}
	return &reducedSet{set: out}
}

func (r *reducedSet) WithGroup(name string) slog.Handler {
	out := make([]slog.Handler, len(r.set))
	for i, handler := range r.set {
		out[i] = handler.WithGroup(name)
	}
	return &reducedSet{set: out}
}

// Ensure reducedSet implements slog.Handler at compile time.
var _ slog.Handler = (*reducedSet)(nil)

// handlerLike is the subset of slog.Handler that both btclogv2.Handler and
// plain slog.Handler satisfy, letting allEnabled/handleAll serve both
// HandlerSet and reducedSet without duplicating the fan-out loop.
type handlerLike interface {
	Enabled(context.Context, slog.Level) bool
	Handle(context.Context, slog.Record) error
}

func allEnabled[H handlerLike](ctx context.Context, level slog.Level, handlers []H) bool {
	for _, handler := range handlers {
		if !handler.Enabled(ctx, level) {
			return false
		}
	}
	return true
}

func handleAll[H handlerLike](ctx context.Context, record slog.Record, handlers []H) error {
	for _, handler := range handlers {
		if err := handler.Handle(ctx, record); err != nil {
			return err
		}
	}
	return nil
}
