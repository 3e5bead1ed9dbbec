package console

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/openairt-console/internal/metrics"
	"github.com/codewandler/openairt-console/tool"
)

const DefaultGreeting = "Hello!"

type Option func(*Controller)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// WithAudioDir enables writing completed audio items as WAV files into dir.
func WithAudioDir(dir string) Option {
	return func(c *Controller) {
		c.audioDir = dir
	}
}

// WithGreeting sets the message sent right after connecting. An empty
// greeting disables it.
func WithGreeting(text string) Option {
	return func(c *Controller) {
		c.greeting = text
	}
}

// WithTools replaces the tools registered on every connect.
func WithTools(defs ...tool.Definition) Option {
	return func(c *Controller) {
		c.tools = defs
	}
}

func WithTurnMode(mode TurnMode) Option {
	return func(c *Controller) {
		c.mode = mode
	}
}

// OnChange registers a callback invoked after any observable state change.
// It runs on the goroutine that caused the change and must not block.
func OnChange(fn func()) Option {
	return func(c *Controller) {
		c.onChange = fn
	}
}

func defaults() []Option {
	return []Option{
		WithLogger(slog.New(slog.DiscardHandler)),
		WithMetrics(metrics.New(prometheus.NewRegistry())),
		WithGreeting(DefaultGreeting),
		WithTools(tool.Arithmetic()...),
		WithTurnMode(ModeManual),
	}
}
