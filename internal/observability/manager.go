package observability

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/philippevezina/hana-mirror/internal/config"
)

// Manager owns the configured error reporter and its lifecycle.
type Manager struct {
	cfg           *config.ObservabilityConfig
	logger        *zap.Logger
	errorReporter ErrorReporter
}

// NewManager creates a new observability manager with the given configuration.
func NewManager(cfg *config.ObservabilityConfig, logger *zap.Logger) (*Manager, error) {
	m := &Manager{
		cfg:    cfg,
		logger: logger,
	}

	if err := m.initErrorReporter(); err != nil {
		return nil, fmt.Errorf("failed to initialize error reporter: %w", err)
	}

	return m, nil
}

// initErrorReporter initializes the error reporter based on configuration.
func (m *Manager) initErrorReporter() error {
	if !m.cfg.ErrorReporting.Enabled {
		m.logger.Info("Error reporting disabled, using noop reporter")
		m.errorReporter = NewNoopErrorReporter()
		return nil
	}

	switch m.cfg.ErrorReporting.Provider {
	case "sentry":
		reporter, err := NewSentryReporter(&m.cfg.ErrorReporting.Sentry, m.logger)
		if err != nil {
			return fmt.Errorf("failed to create Sentry reporter: %w", err)
		}
		m.errorReporter = reporter
		m.logger.Info("Sentry error reporter initialized",
			zap.String("environment", m.cfg.ErrorReporting.Sentry.Environment))

	case "noop", "":
		m.errorReporter = NewNoopErrorReporter()
		m.logger.Info("Using noop error reporter")

	default:
		return fmt.Errorf("unknown error reporting provider: %s", m.cfg.ErrorReporting.Provider)
	}

	return nil
}

// GetErrorReporter returns the configured error reporter.
func (m *Manager) GetErrorReporter() ErrorReporter {
	return m.errorReporter
}

// Stop gracefully shuts down the error reporter.
func (m *Manager) Stop() error {
	if m.errorReporter == nil {
		return nil
	}

	flushTimeout := 5 * time.Second
	if m.cfg.ErrorReporting.Sentry.FlushTimeout > 0 {
		flushTimeout = m.cfg.ErrorReporting.Sentry.FlushTimeout
	}

	if !m.errorReporter.Flush(flushTimeout) {
		m.logger.Warn("Error reporter flush timed out")
	}

	if err := m.errorReporter.Close(); err != nil {
		return fmt.Errorf("error reporter close error: %w", err)
	}

	m.logger.Info("Observability manager stopped")
	return nil
}
