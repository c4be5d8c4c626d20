// Package logging wires log/slog to a lumberjack-backed rotating file
// handler, with one tagged logger per subsystem.
package logging

import (
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/untoldecay/dataplane/internal/config"
)

// Component names tag each subsystem's logger (spec's ambient logging
// section: "one logger per component").
const (
	ComponentAnalyzer = "analyzer"
	ComponentDeploy   = "deploy"
	ComponentAssets   = "assets"
	ComponentAgent    = "agent"
)

var base *slog.Logger

// Init wires the rotating file handler and sets it as the base for
// every For call. Safe to call once at process start; callers that
// skip it (unit tests, package-level helpers run outside a command)
// fall back to slog.Default() in For.
func Init() *slog.Logger {
	dir := config.GetString("log.dir")
	if dir == "" {
		dir = "logs"
	}
	_ = os.MkdirAll(dir, 0o755)

	rotate := &lumberjack.Logger{
		Filename:   filepath.Join(dir, "dataplane.log"),
		MaxSize:    intOrDefault(config.GetInt("log.max-size-mb"), 100),
		MaxBackups: intOrDefault(config.GetInt("log.max-backups"), 7),
		MaxAge:     intOrDefault(config.GetInt("log.max-age-days"), 28),
		Compress:   true,
	}

	handler := slog.NewJSONHandler(rotate, &slog.HandlerOptions{Level: parseLevel(config.GetString("log.level"))})
	base = slog.New(handler)
	return base
}

func intOrDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// For returns the tagged logger for one subsystem. Every record it
// emits carries a "component" group so log lines from the agent
// runtime and the deploy pipeline can be filtered independently from
// one shared file.
func For(component string) *slog.Logger {
	l := base
	if l == nil {
		l = slog.Default()
	}
	return l.With(slog.Group("component", slog.String("name", component)))
}
