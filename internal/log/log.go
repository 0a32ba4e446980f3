package log

import (
	"sync/atomic"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/contrib/bridges/otelzap"
	otellog "go.opentelemetry.io/otel/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var base atomic.Pointer[zap.Logger]

func init() { base.Store(zap.NewNop()) }

// New builds the process logger: JSON to stderr, plus file when set.
func New(level, file string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr"}
	if file != "" {
		cfg.OutputPaths = append(cfg.OutputPaths, file)
	}
	return cfg.Build(zap.AddStacktrace(zapcore.ErrorLevel))
}

// WithExport tees l into an OpenTelemetry logger provider. A nil provider
// returns l unchanged.
func WithExport(l *zap.Logger, lp otellog.LoggerProvider, scope string) *zap.Logger {
	if lp == nil {
		return l
	}
	return l.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, otelzap.NewCore(scope, otelzap.WithLoggerProvider(lp)))
	}))
}

// SetDefault replaces the logger behind L and the request helpers.
func SetDefault(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	base.Store(l)
}

func L() *zap.Logger { return base.Load() }

func requestFields(c *fiber.Ctx, action string, fields map[string]any) []zap.Field {
	out := make([]zap.Field, 0, len(fields)+6)
	out = append(out, zap.String("action", action))
	if c != nil {
		out = append(out,
			zap.String("ip", c.IP()),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
		)
		if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
			out = append(out, zap.String("req_id", rid))
		}
	}
	for k, v := range fields {
		out = append(out, zap.Any(k, v))
	}
	return out
}

func Info(c *fiber.Ctx, action string, fields map[string]any) {
	L().Info(action, requestFields(c, action, fields)...)
}

func Audit(c *fiber.Ctx, action string, fields map[string]any) {
	L().Info(action, append(requestFields(c, action, fields), zap.Bool("audit", true))...)
}

func Security(c *fiber.Ctx, action string, fields map[string]any) {
	L().Warn(action, append(requestFields(c, action, fields), zap.Bool("security", true))...)
}

func Error(c *fiber.Ctx, action string, err error, fields map[string]any) {
	L().Error(action, append(requestFields(c, action, fields), zap.Error(err))...)
}
