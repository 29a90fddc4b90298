package logger

import (
	"context"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/angelmondragon/gatewaysync/pkg/env"
	"github.com/rs/zerolog"
)

// Options configures the structured logger.
type Options struct {
	ServiceName string
	Level       zerolog.Level
	WarnStack   bool
	Output      io.Writer
}

type Logger struct {
	base      *zerolog.Logger
	warnStack bool
}

type ctxKey struct{}

func New(opts Options) *Logger {
	if opts.Level == zerolog.NoLevel {
		opts.Level = zerolog.InfoLevel
	}

	var output io.Writer = opts.Output
	if output == nil {
		output = os.Stdout
	}
	var format = env.Get("LOG_FORMAT", "json")
	if format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: "15:04:05",
			NoColor:    false,
		}
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano

	logger := zerolog.
		New(output).
		With().
		Timestamp().
		Str("service", opts.ServiceName).
		Logger().
		Level(opts.Level)

	return &Logger{
		base:      &logger,
		warnStack: opts.WarnStack,
	}
}

func ParseLevel(value string) zerolog.Level {
	levelString := strings.ToLower(strings.TrimSpace(value))
	if levelString == "" {
		return zerolog.InfoLevel
	}
	if lvl, err := zerolog.ParseLevel(levelString); err == nil {
		return lvl
	}
	return zerolog.InfoLevel
}

func (l *Logger) loggerFromContext(ctx context.Context) *zerolog.Logger {
	if ctx == nil {
		return l.base
	}
	if entry, ok := ctx.Value(ctxKey{}).(*zerolog.Logger); ok {
		return entry
	}
	return l.base
}

func (l *Logger) attach(ctx context.Context, entry zerolog.Logger) context.Context {
	entr := entry
	return context.WithValue(ctx, ctxKey{}, &entr)
}

func (l *Logger) WithField(ctx context.Context, key string, value any) context.Context {
	entry := l.loggerFromContext(ctx)
	return l.attach(ctx, entry.With().Interface(key, value).Logger())
}

func (l *Logger) WithFields(ctx context.Context, fields map[string]any) context.Context {
	entry := l.loggerFromContext(ctx)
	builder := entry.With()
	for k, v := range fields {
		builder = builder.Interface(k, v)
	}
	return l.attach(ctx, builder.Logger())
}

func (l *Logger) WithRequestID(ctx context.Context, requestID string) context.Context {
	return l.WithField(ctx, "request_id", requestID)
}

func (l *Logger) WithUserID(ctx context.Context, userID string) context.Context {
	return l.WithField(ctx, "user_id", userID)
}

// WithResource tags the context with the mirrored resource kind and its gateway id.
func (l *Logger) WithResource(ctx context.Context, kind, gatewayID string) context.Context {
	return l.WithFields(ctx, map[string]any{
		"resource":   kind,
		"gateway_id": gatewayID,
	})
}

// WithGatewayCall tags the context with the outbound gateway request.
func (l *Logger) WithGatewayCall(ctx context.Context, method, path string) context.Context {
	return l.WithFields(ctx, map[string]any{
		"gateway_method": method,
		"gateway_path":   path,
	})
}

// WithTrackingID attaches the gateway's tracking id. Empty ids are skipped so
// entries never carry a blank tracking_id.
func (l *Logger) WithTrackingID(ctx context.Context, trackingID string) context.Context {
	if trackingID == "" {
		return ctx
	}
	return l.WithField(ctx, "tracking_id", trackingID)
}

// WithJob tags the context with the reconcile job name.
func (l *Logger) WithJob(ctx context.Context, name string) context.Context {
	return l.WithFields(ctx, map[string]any{"job": name, "event": "cron.job"})
}

// WithCompensation marks an entry as a repair record for a remote write the
// mirror failed to persist. payload is the gateway's response; detail carries
// whatever the caller knows about the local failure.
func (l *Logger) WithCompensation(ctx context.Context, kind, gatewayID string, payload, detail any) context.Context {
	ctx = l.WithResource(ctx, kind, gatewayID)
	return l.WithFields(ctx, map[string]any{
		"compensation":   true,
		"remote_payload": payload,
		"error_detail":   detail,
	})
}

func (l *Logger) Debug(ctx context.Context, msg string) {
	l.loggerFromContext(ctx).Debug().Msg(msg)
}

func (l *Logger) Info(ctx context.Context, msg string) {
	l.loggerFromContext(ctx).Info().Msg(msg)
}

func (l *Logger) Warn(ctx context.Context, msg string) {
	event := l.loggerFromContext(ctx).Warn()
	if l.warnStack {
		event = event.Str("stack", stackTrace())
	}
	event.Msg(msg)
}

func (l *Logger) Error(ctx context.Context, msg string, err error) {
	event := l.loggerFromContext(ctx).Error()
	if err != nil {
		event = event.Err(err)
	}
	event.Str("stack", stackTrace()).Msg(msg)
}

func stackTrace() string {
	return strings.TrimSpace(string(debug.Stack()))
}
