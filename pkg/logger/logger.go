// Package logger wraps log/slog for the whole service.
//
// Handlers and services log through WithCtx so their lines carry the
// request ID the middleware attached:
//
//	logger.WithCtx(ctx).Info("order placed", "order_id", order.ID, "total", order.Total)
//
// Outside a request (workers, the scheduler, commands) WithCtx falls back
// to the base logger L.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/shashiranjanraj/foodie/config"
)

// L is the base logger. Configure and EnableMongo replace it.
var L *slog.Logger

// Level is shared by every handler Configure builds, so SetLevel takes
// effect without rebuilding loggers already derived from L.
var Level = new(slog.LevelVar)

var (
	mu    sync.Mutex
	out   io.Writer = os.Stdout
	sinks *MongoHandler
)

func init() {
	Level.Set(slog.LevelDebug)
	L = slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: Level}))
	slog.SetDefault(L)
}

// Configure rebuilds L from LOG_LEVEL (debug, info, warn, error) and
// LOG_FORMAT (text or json). Production defaults to json at info.
func Configure() error {
	level, format := "debug", "text"
	if config.IsProduction() {
		level, format = "info", "json"
	}
	level = config.Get("LOG_LEVEL", level)
	format = strings.ToLower(config.Get("LOG_FORMAT", format))

	if err := SetLevel(level); err != nil {
		return err
	}
	if format != "text" && format != "json" {
		return fmt.Errorf("logger: unknown LOG_FORMAT %q", format)
	}

	mu.Lock()
	defer mu.Unlock()
	base := console(format)
	if sinks != nil {
		install(fanout{base, sinks})
	} else {
		install(base)
	}
	return nil
}

// SetLevel changes the minimum level of the console handler.
func SetLevel(name string) error {
	var l slog.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		return fmt.Errorf("logger: bad LOG_LEVEL %q", name)
	}
	Level.Set(l)
	return nil
}

func console(format string) slog.Handler {
	opts := &slog.HandlerOptions{Level: Level}
	if format == "json" {
		return slog.NewJSONHandler(out, opts)
	}
	return slog.NewTextHandler(out, opts)
}

func install(h slog.Handler) {
	L = slog.New(h)
	slog.SetDefault(L)
}

// EnableMongo keeps WARN and above in MongoDB next to the console output.
func EnableMongo(uri string) error {
	h, err := NewMongoHandler(uri, "foodie", "logs", slog.LevelWarn)
	if err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	sinks = h
	install(fanout{L.Handler(), h})
	return nil
}

// Close flushes the MongoDB sink, if any.
func Close() {
	mu.Lock()
	h := sinks
	sinks = nil
	mu.Unlock()
	if h != nil {
		h.Close()
	}
}

type ctxKey struct{}

// WithCtx returns the logger stored by InjectLogger, or L.
func WithCtx(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return L
	}
	if log, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && log != nil {
		return log
	}
	return L
}

func InjectLogger(ctx context.Context, log *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

func Debug(msg string, args ...any) { L.Debug(msg, args...) }
func Info(msg string, args ...any)  { L.Info(msg, args...) }
func Warn(msg string, args ...any)  { L.Warn(msg, args...) }
func Error(msg string, args ...any) { L.Error(msg, args...) }
