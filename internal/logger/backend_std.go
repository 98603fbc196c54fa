package logger

import (
	"log/slog"
	"path/filepath"
	"strconv"
)

// newStdHandler: текст для dev, JSON там, где логи собираются.
func newStdHandler(cfg Config) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:       cfg.level(),
		AddSource:   cfg.AddSource,
		ReplaceAttr: shortSource,
	}
	if cfg.Env.Structured() {
		return slog.NewJSONHandler(cfg.Output, opts)
	}
	return slog.NewTextHandler(cfg.Output, opts)
}

// shortSource сокращает source до file.go:line.
func shortSource(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.SourceKey {
		return a
	}
	src, ok := a.Value.Any().(*slog.Source)
	if !ok || src == nil {
		return a
	}
	return slog.String(slog.SourceKey, filepath.Base(src.File)+":"+strconv.Itoa(src.Line))
}
