package gologger

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

// Resolve uses deterministic precedence provider > logger > nop.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(name, provider, logger)
}

// NewLogger builds the process logger: pretty output, rich go-errors
// attributes and the given level (trace, debug, info, warn, error).
// Unknown levels fall back to info.
func NewLogger(name string, level string) *glog.BaseLogger {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "ghapp"
	}

	levelOption := glog.WithLevel(glog.Info)
	switch NormalizeLevel(level) {
	case "trace":
		levelOption = glog.WithLevel(glog.Trace)
	case "debug":
		levelOption = glog.WithLevel(glog.Debug)
	case "warn":
		levelOption = glog.WithLevel(glog.Warn)
	case "error":
		levelOption = glog.WithLevel(glog.Error)
	}

	return glog.NewLogger(
		glog.WithLoggerTypePretty(),
		levelOption,
		glog.WithName(name),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(goerrors.ToSlogAttributes),
	)
}

func NormalizeLevel(level string) string {
	switch value := strings.ToLower(strings.TrimSpace(level)); value {
	case "trace", "debug", "info", "error":
		return value
	case "warn", "warning":
		return "warn"
	default:
		return "info"
	}
}
