package metrics

import (
	"time"

	"github.com/rs/zerolog"
)

// Metrics collector for forward passes and API traffic
type Collector struct {
	logger zerolog.Logger
}

func NewCollector(logger zerolog.Logger) *Collector {
	return &Collector{
		logger: logger,
	}
}

// Track a multi-policy forward pass
func (c *Collector) ForwardPass(mode string, policies int, duration time.Duration, err error) {
	level := zerolog.InfoLevel
	if err != nil {
		level = zerolog.WarnLevel
	}
	c.logger.WithLevel(level).
		Err(err).
		Str("metric", "forward_pass").
		Str("mode", mode).
		Int("policies", policies).
		Dur("duration", duration).
		Bool("ok", err == nil).
		Msg("Forward pass metric")
}

// Track API request metrics
func (c *Collector) APIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	c.logger.Info().
		Str("metric", "api_request").
		Str("method", method).
		Str("endpoint", endpoint).
		Int("status_code", statusCode).
		Dur("duration", duration).
		Msg("API request metric")
}
