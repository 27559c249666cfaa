package metrics

import (
	"fmt"
	"log/slog"

	"github.com/DataDog/datadog-go/statsd"

	"FeedIngestor/internal/ports"
)

// Statsd reports counters to a DogStatsD agent.
type Statsd struct {
	client statsd.ClientInterface
	logger *slog.Logger
}

var _ ports.Metrics = (*Statsd)(nil)

// NewStatsd connects to addr; names are prefixed with namespace.
func NewStatsd(addr, namespace string, log *slog.Logger) (*Statsd, error) {
	client, err := statsd.New(addr, statsd.WithNamespace(namespace))
	if err != nil {
		return nil, fmt.Errorf("statsd client %s: %w", addr, err)
	}
	return &Statsd{client: client, logger: log}, nil
}

// Count implements ports.Metrics. Send failures are logged at debug level.
func (s *Statsd) Count(name string, value int64, tags ...string) {
	if err := s.client.Count(name, value, tags, 1); err != nil && s.logger != nil {
		s.logger.Debug("statsd count", "metric", name, "error", err)
	}
}

// Close flushes buffered metrics.
func (s *Statsd) Close() error {
	return s.client.Close()
}

// Nop discards every metric.
type Nop struct{}

var _ ports.Metrics = Nop{}

// Count implements ports.Metrics.
func (Nop) Count(string, int64, ...string) {}
