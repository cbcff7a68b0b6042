package wast

import (
	"sync"

	"go.uber.org/zap"
)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
)

// Logger returns the wast package's logger instance.
// It uses a no-op logger by default.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			logger = zap.NewNop()
		}
	})
	return logger
}

// SetLogger configures the wast package's logger.
// This must be called before any read operations.
func SetLogger(l *zap.Logger) {
	logger = l
}

func zapModule(m *Module) []zap.Field {
	return []zap.Field{
		zap.String("module", m.Name),
		zap.Int("types", len(m.Types)),
		zap.Int("imports", len(m.Imports)),
		zap.Int("funcs", len(m.Funcs)),
		zap.Int("exports", len(m.Exports)),
		zap.Int("elems", len(m.Elems)),
	}
}
